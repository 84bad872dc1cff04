package cli

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"txservice/internal/transport"
)

func newCallCmd() *cobra.Command {
	var (
		recipe  recipeSource
		addr    string
		input   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Send a transform to a running server over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := recipe.load()
			if err != nil {
				return err
			}
			raw, err := readInput(cmd, input)
			if err != nil {
				return err
			}
			if len(raw) == 0 {
				return errEmptyInput
			}

			c, err := transport.Dial(addr)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			out, err := c.Transform(ctx, text, string(raw))
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
		},
	}
	recipe.bind(cmd)
	cmd.Flags().StringVar(&addr, "addr", "localhost:7070", "gRPC server address")
	cmd.Flags().StringVarP(&input, "input", "i", "-", "input file, - for stdin")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "call deadline")
	return cmd
}
