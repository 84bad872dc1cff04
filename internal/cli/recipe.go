package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"txservice/internal/grammar"
	"txservice/internal/row"
	"txservice/internal/wrangle"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		recipe recipeSource
		input  string
		lines  bool
		pretty bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a recipe over an input file and print the rows as JSON",
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

			svc, closeStore, err := newService(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			out, err := svc.Transform(cmd.Context(), text, inputRows(raw, lines))
			if err != nil {
				return err
			}
			if out == nil {
				out = []*row.Row{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(out)
		},
	}
	recipe.bind(cmd)
	cmd.Flags().StringVarP(&input, "input", "i", "-", "input file, - for stdin")
	cmd.Flags().BoolVar(&lines, "lines", false, "one row per input line")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	return cmd
}

func inputRows(raw []byte, lines bool) []*row.Row {
	if !lines {
		return []*row.Row{row.New(wrangle.BodyField, string(raw))}
	}
	var rows []*row.Row
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), len(raw)+1)
	for sc.Scan() {
		rows = append(rows, row.New(wrangle.BodyField, sc.Text()))
	}
	return rows
}

func newValidateCmd(opts *options) *cobra.Command {
	var recipe recipeSource
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse a recipe against the configured directives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := recipe.load()
			if err != nil {
				return err
			}
			svc, closeStore, err := newService(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			r, err := svc.Compile("validate", text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d directive(s)\n", r.Len())
			if canonical := r.Canonical(); canonical != "" {
				fmt.Fprintln(cmd.OutOrStdout(), canonical)
			}
			return nil
		},
	}
	recipe.bind(cmd)
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var recipe recipeSource
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite a recipe in the current grammar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := recipe.load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), grammar.Migrate(text))
			return nil
		},
	}
	recipe.bind(cmd)
	return cmd
}

func newDirectivesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "directives",
		Short: "List the directives recipes may use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeStore, err := newService(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSCOPE\tUSAGE\tDESCRIPTION")
			for _, info := range svc.Directives() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, info.Scope, info.Usage(), strings.TrimSpace(info.Description))
			}
			return tw.Flush()
		},
	}
}
