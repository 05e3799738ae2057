package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qcore/internal/coreerr"
)

// ConsoleOptions holds flags for the console command.
type ConsoleOptions struct {
	*RootOptions
	Prompt string
}

// NewConsoleCommand creates the console command.
func NewConsoleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConsoleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive engine console",
		Long: `Start the engine and pass console lines through to it.

Each line is sent as one command; a missing ';' is added. Engine errors
are printed and the session continues. "quit" or end of input stops the
engine.

Examples:
  qcore console
  qcore console --engine ./quanto-core --journal ./session.db
  echo 'help;' | qcore console --prompt ""`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Prompt, "prompt", "qcore> ", "prompt printed before each line")

	return cmd
}

func runConsole(opts *ConsoleOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := startSession(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	f := opts.formatter(cmd)
	f.VerboseLog("session %s started", s.ID())

	loopErr := consoleLoop(ctx, opts, cmd, s)
	closeErr := s.Close(context.WithoutCancel(ctx))
	if loopErr != nil {
		return loopErr
	}
	if closeErr != nil {
		return WrapExitError(ExitCommandError, "engine shutdown failed", closeErr)
	}
	return nil
}

func consoleLoop(ctx context.Context, opts *ConsoleOptions, cmd *cobra.Command, s *engineSession) error {
	w := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(w, opts.Prompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.TrimSuffix(line, ";") {
		case "":
			continue
		case "quit", "exit":
			return nil
		}

		out, err := s.Core().ConsoleCommand(ctx, line)
		var ce *coreerr.Error
		switch {
		case err == nil:
			if out != "" {
				fmt.Fprintln(w, out)
			}
		case errors.As(err, &ce) && !ce.Fatal():
			fmt.Fprintf(w, "!!! %s\n", ce.Message)
		default:
			return WrapEngineError("engine failed", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to read input", err)
	}
	fmt.Fprintln(w)
	return nil
}
