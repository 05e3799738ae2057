package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/qcore/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Session string
	Errors  bool
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal <db>",
		Short: "List recorded engine exchanges",
		Long: `Read an exchange journal written with --journal.

Without --session, lists the recorded sessions with their exchange and
error counts. With --session, lists that session's exchanges in order.

Examples:
  qcore journal ./session.db
  qcore journal ./session.db --session 01920000-0000-7000-8000-000000000000
  qcore journal ./session.db --session 01920000-0000-7000-8000-000000000000 --errors --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "show the exchanges of this session")
	cmd.Flags().BoolVar(&opts.Errors, "errors", false, "only exchanges that failed (with --session)")

	return cmd
}

func runJournal(opts *JournalOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Open creates missing files; a journal that is not there is an error here.
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	f := opts.formatter(cmd)
	if opts.Session == "" {
		if opts.Errors {
			return NewExitError(ExitCommandError, "--errors requires --session")
		}
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		if f.Format == "json" {
			return f.Success(sessions)
		}
		if len(sessions) == 0 {
			fmt.Fprintln(f.Writer, "No sessions recorded.")
			return nil
		}
		for _, s := range sessions {
			fmt.Fprintf(f.Writer, "%s  %s  %s  %d exchange(s), %d error(s)\n",
				s.ID, s.StartedAt.Format(time.RFC3339), s.Engine, s.Exchanges, s.Errors)
		}
		return nil
	}

	read := st.ReadSession
	if opts.Errors {
		read = st.ReadErrors
	}
	entries, err := read(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}
	if f.Format == "json" {
		return f.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintf(f.Writer, "No exchanges found for session: %s\n", opts.Session)
		return nil
	}
	for _, e := range entries {
		printEntry(f, e)
	}
	return nil
}

func printEntry(f *OutputFormatter, e store.Entry) {
	status := "ok"
	if e.ErrorCode != "" {
		status = e.ErrorCode
	}
	fmt.Fprintf(f.Writer, "[%d] %s %s (%s)\n", e.Seq, e.Command, status, e.Duration)
	fmt.Fprintf(f.Writer, "  > %s\n", strings.SplitN(e.Request, "\n", 2)[0])
	if f.Verbose && e.Response != "" {
		for _, line := range strings.Split(e.Response, "\n") {
			fmt.Fprintf(f.Writer, "  < %s\n", line)
		}
	}
}
