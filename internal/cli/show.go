package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qcore/internal/graph"
	"github.com/roach88/qcore/internal/harness"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <graph-file>",
		Short: "Load a graph and print its model",
		Long: `Have the engine load a graph file and print the synchronized model:
one line per vertex, edge and bang box.

Examples:
  qcore show ./graphs/bialgebra.graph
  qcore show ./graphs/bialgebra.graph --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runShow(opts *RootOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := startSession(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close(context.WithoutCancel(ctx))

	g, err := s.Core().LoadGraph(ctx, path)
	if err != nil {
		return WrapEngineError("failed to load graph", err)
	}
	g.Lock()
	summary := g.Summarize()
	g.Unlock()

	return printSummary(opts.formatter(cmd), summary)
}

func printSummary(f *OutputFormatter, summary graph.Summary) error {
	if f.Format == "json" {
		return f.Success(summary)
	}
	fmt.Fprintf(f.Writer, "graph %s: %d vertices, %d edges, %d bang boxes\n",
		summary.Name, len(summary.Vertices), len(summary.Edges), len(summary.BangBoxes))
	for _, line := range harness.ModelLines(summary) {
		fmt.Fprintf(f.Writer, "  %s\n", line)
	}
	return nil
}
