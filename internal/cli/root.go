// Package cli implements the txservice command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"txservice/internal/config"
	"txservice/internal/engine"
	"txservice/internal/logging"
	"txservice/internal/wrangle"
)

type options struct {
	configPath string
}

// NewRootCommand builds the txservice command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "txservice",
		Short:         "Apply data-preparation recipes to records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.InitFromEnv()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "service config file (YAML)")

	root.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newValidateCmd(opts),
		newMigrateCmd(),
		newDirectivesCmd(opts),
		newCallCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /transform (and gRPC, stream pipeline when configured)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := engine.Bootstrap(ctx, cfg)
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			return e.Run(ctx)
		},
	}
}

// newService builds the recipe service the offline commands share. Redis
// and the other process-wide resources come from the config file.
func newService(ctx context.Context, opts *options) (*wrangle.Service, func() error, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	logging.Configure(cfg.Log)
	return wrangle.FromConfig(ctx, cfg, nil)
}

// recipeSource reads a recipe given inline or from a file.
type recipeSource struct {
	text string
	file string
}

func (r *recipeSource) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&r.text, "recipe", "r", "", "recipe text")
	cmd.Flags().StringVarP(&r.file, "recipe-file", "f", "", "file holding the recipe")
	cmd.MarkFlagsMutuallyExclusive("recipe", "recipe-file")
	cmd.MarkFlagsOneRequired("recipe", "recipe-file")
}

func (r *recipeSource) load() (string, error) {
	if r.file == "" {
		return r.text, nil
	}
	b, err := os.ReadFile(r.file)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

var errEmptyInput = errors.New("input is empty")
