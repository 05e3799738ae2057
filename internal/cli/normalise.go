package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NormaliseOptions holds flags for the normalise command.
type NormaliseOptions struct {
	*RootOptions
	Out string
}

// NormaliseResult is the JSON payload of the normalise command.
type NormaliseResult struct {
	Graph   string `json:"graph"`
	Applied int    `json:"applied"`
	SavedTo string `json:"saved_to"`
}

// NewNormaliseCommand creates the normalise command.
func NewNormaliseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NormaliseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "normalise <graph-file>",
		Aliases: []string{"normalize"},
		Short:   "Rewrite a graph until no rule applies",
		Long: `Load a graph, apply the first available rewrite from the active
rulesets until the engine reports there are none left, and save the result.

Without --out the input file is overwritten.

Examples:
  qcore normalise ./graphs/circuit.graph
  qcore normalise ./graphs/circuit.graph --out ./graphs/circuit.normal.graph`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalise(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the normalised graph here")

	return cmd
}

func runNormalise(opts *NormaliseOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := startSession(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close(context.WithoutCancel(ctx))

	c := s.Core()
	g, err := c.LoadGraph(ctx, path)
	if err != nil {
		return WrapEngineError("failed to load graph", err)
	}

	applied, err := c.FastNormalise(ctx, g)
	if err != nil {
		return WrapEngineError("normalisation failed", err)
	}

	out := opts.Out
	if out == "" {
		out = path
	}
	if err := c.SaveGraph(ctx, g, out); err != nil {
		return WrapEngineError("failed to save graph", err)
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(NormaliseResult{Graph: g.Name(), Applied: applied, SavedTo: g.FileName()})
	}
	fmt.Fprintf(f.Writer, "applied %d rewrite(s), saved to %s\n", applied, g.FileName())
	return nil
}
