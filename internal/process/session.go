// Package process owns the spawned engine process and its pipes.
//
// A Session exposes raw byte streams only; framing and protocol belong to
// the channel and protocol packages.
package process

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/roach88/qcore/internal/coreerr"
)

// DefaultExecutable is the engine executable looked up on PATH when no
// path is configured.
const DefaultExecutable = "quanto-core"

// exitProbeWindow bounds how long Exited waits for the reaper goroutine to
// observe an exit that is already in progress. A read error caused by the
// process dying can be seen slightly before Wait returns.
const exitProbeWindow = 50 * time.Millisecond

// Options configures how the engine process is launched.
type Options struct {
	// Path is the executable name or path. Defaults to DefaultExecutable.
	Path string

	// Args are extra command-line arguments. The engine requires none.
	Args []string

	// Env is appended to the current environment.
	Env []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// MergeStderr sends the engine's stderr into the same pipe as stdout.
	// When false, stderr lines are forwarded to Logger.
	MergeStderr bool

	// Logger receives lifecycle events and forwarded stderr lines.
	Logger *slog.Logger
}

// Session is one running engine process.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	logger *slog.Logger

	done    chan struct{}
	mu      sync.Mutex
	exitErr error
}

// Start launches the engine process.
// Returns a PROCESS_START_FAILURE error if the executable cannot be found
// or fails to launch.
func Start(opts Options) (*Session, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = DefaultExecutable
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.CodeProcessStart, "cannot find engine executable "+path, err)
	}

	cmd := exec.Command(resolved, opts.Args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.CodeProcessStart, "create stdin pipe", err)
	}

	// os.Pipe instead of StdoutPipe: Wait must not close the read end while
	// the channel may still be draining it.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.CodeProcessStart, "create stdout pipe", err)
	}
	cmd.Stdout = stdoutW

	var stderrR, stderrW *os.File
	if opts.MergeStderr {
		cmd.Stderr = stdoutW
	} else {
		stderrR, stderrW, err = os.Pipe()
		if err != nil {
			stdoutR.Close()
			stdoutW.Close()
			return nil, coreerr.Wrap(coreerr.CodeProcessStart, "create stderr pipe", err)
		}
		cmd.Stderr = stderrW
	}

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		if stderrR != nil {
			stderrR.Close()
			stderrW.Close()
		}
		return nil, coreerr.Wrap(coreerr.CodeProcessStart, "start engine "+resolved, err)
	}

	// The child holds its own copies of the write ends.
	stdoutW.Close()
	if stderrW != nil {
		stderrW.Close()
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdoutR,
		logger: logger,
		done:   make(chan struct{}),
	}

	logger.Info("process.started", "path", resolved, "pid", cmd.Process.Pid, "merge_stderr", opts.MergeStderr)

	if stderrR != nil {
		go s.stderrLoop(stderrR)
	}
	go s.waitLoop()
	return s, nil
}

// Stdin returns the engine's standard input.
func (s *Session) Stdin() io.Writer {
	return s.stdin
}

// Stdout returns the engine's standard output (and stderr when merged).
func (s *Session) Stdout() io.Reader {
	return s.stdout
}

// Pid returns the engine's process id.
func (s *Session) Pid() int {
	return s.cmd.Process.Pid
}

// Done is closed once the process has exited and been reaped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Exited reports whether the process has exited. It never waits longer
// than a short probe window.
func (s *Session) Exited() bool {
	select {
	case <-s.done:
		return true
	case <-time.After(exitProbeWindow):
		return false
	}
}

// ExitErr returns the error from Wait once the process has exited.
// A nil result with Exited() true means a clean exit.
func (s *Session) ExitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

// WaitTimeout waits up to d for the process to exit.
// Returns true if it exited within the deadline.
func (s *Session) WaitTimeout(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.done:
		return true
	case <-timer.C:
		return false
	}
}

// CloseStdin closes the engine's standard input, which most engines treat
// as a request to exit.
func (s *Session) CloseStdin() error {
	return s.stdin.Close()
}

// Kill forcibly terminates the process. Killing an exited process is a no-op.
func (s *Session) Kill() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	err := s.cmd.Process.Kill()
	if err != nil && errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	if err == nil {
		s.logger.Warn("process.killed", "pid", s.cmd.Process.Pid)
	}
	return err
}

// Release closes the client side of the output pipe. A read blocked on
// Stdout returns os.ErrClosed. Call it once the process has exited or been
// killed.
func (s *Session) Release() error {
	return s.stdout.Close()
}

func (s *Session) waitLoop() {
	err := s.cmd.Wait()
	s.mu.Lock()
	s.exitErr = err
	s.mu.Unlock()
	close(s.done)
	if err != nil {
		s.logger.Info("process.exited", "pid", s.cmd.Process.Pid, "error", err.Error())
	} else {
		s.logger.Info("process.exited", "pid", s.cmd.Process.Pid)
	}
}

func (s *Session) stderrLoop(r io.ReadCloser) {
	defer r.Close()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.logger.Warn("engine.stderr", "message", line)
	}
}
