package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/testutil"
)

// pipeEngine connects a Channel to a scripted engine over OS pipes. Kernel
// buffering lets the engine print its banner before anyone reads it.
func pipeEngine(t *testing.T, e *testutil.Engine, opts ...Option) (*Channel, func()) {
	t.Helper()
	reqR, reqW, err := os.Pipe()
	require.NoError(t, err)
	respR, respW, err := os.Pipe()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Serve(reqR, respW)
		respW.Close()
		reqR.Close()
	}()

	ch := New(respR, reqW, opts...)
	stop := func() {
		reqW.Close()
		<-done
		respR.Close()
	}
	return ch, stop
}

type exitedProbe struct{ exited bool }

func (p exitedProbe) Exited() bool { return p.exited }

func TestExchange_StripsSentinelAndEatsPrompt(t *testing.T) {
	e := &testutil.Engine{Handler: func(line string, _ []string) string {
		switch line {
		case "new_graph;":
			return "g0\n"
		case "graph_xml \"g0\";":
			return "<graph></graph>"
		}
		return "!!! Unknown command: " + line
	}}
	ch, stop := pipeEngine(t, e)
	defer stop()

	ctx := context.Background()
	resp, err := ch.Exchange(ctx, "new_graph;")
	require.NoError(t, err)
	assert.Equal(t, "g0\n", resp)

	resp, err = ch.Exchange(ctx, `graph_xml "g0";`)
	require.NoError(t, err)
	assert.Equal(t, "<graph></graph>", resp)
}

func TestExchange_SendsBlockLines(t *testing.T) {
	var got []string
	e := &testutil.Engine{
		BlockCommands: map[string]bool{"input_graph_xml": true},
		Handler: func(line string, block []string) string {
			got = block
			return "g3"
		},
	}
	ch, stop := pipeEngine(t, e)
	defer stop()

	resp, err := ch.Exchange(context.Background(),
		"input_graph_xml;", "---startblock:42", "<graph>\n</graph>", "---endblock:42")
	require.NoError(t, err)
	assert.Equal(t, "g3", resp)
	assert.Equal(t, []string{"<graph>", "</graph>"}, got)
}

func TestExchange_RejectsEmbeddedNewline(t *testing.T) {
	ch := New(strings.NewReader(""), io.Discard)
	_, err := ch.Exchange(context.Background(), "new_graph;\nquit;")
	require.Error(t, err)
	assert.True(t, coreerr.IsCode(err, coreerr.CodeInvalidArgument))

	closed, _ := ch.Closed()
	assert.False(t, closed, "precondition failures must not close the channel")
}

func TestHandshake_SkipsBanner(t *testing.T) {
	e := &testutil.Engine{
		Banner: "Quantomatic core starting\nloading theories...",
		Handler: func(line string, _ []string) string {
			if line == "new_graph;" {
				return "g0"
			}
			return "!!! Unknown command: garbage_2039483945(0)"
		},
	}
	ch, stop := pipeEngine(t, e)
	defer stop()

	ctx := context.Background()
	require.NoError(t, ch.Handshake(ctx))

	resp, err := ch.Exchange(ctx, "new_graph;")
	require.NoError(t, err)
	assert.Equal(t, "g0", resp)
}

func TestExchange_EOFWithoutLivenessIsCommunicationFailure(t *testing.T) {
	ch := New(strings.NewReader("partial"), io.Discard)

	_, err := ch.Exchange(context.Background(), "new_graph;")
	require.Error(t, err)
	assert.True(t, coreerr.IsCode(err, coreerr.CodeCommunication))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

	_, err = ch.Exchange(context.Background(), "new_graph;")
	require.Error(t, err)
	assert.True(t, coreerr.IsSessionClosed(err))
}

func TestExchange_EOFAfterExitIsProcessTerminated(t *testing.T) {
	ch := New(strings.NewReader(""), io.Discard, WithLiveness(exitedProbe{exited: true}))

	_, err := ch.Exchange(context.Background(), "new_graph;")
	require.Error(t, err)
	assert.True(t, coreerr.IsProcessTerminated(err))

	closed, cause := ch.Closed()
	assert.True(t, closed)
	assert.True(t, coreerr.IsProcessTerminated(cause))

	_, err = ch.Exchange(context.Background(), "new_graph;")
	require.Error(t, err)
	assert.True(t, coreerr.IsSessionClosed(err))
	assert.True(t, coreerr.IsProcessTerminated(errors.Unwrap(err)))
}

func TestExchange_NullByteIsReadFailure(t *testing.T) {
	ch := New(strings.NewReader("g0\x00 \b"), io.Discard, WithLiveness(exitedProbe{}))

	_, err := ch.Exchange(context.Background(), "new_graph;")
	require.Error(t, err)
	assert.True(t, coreerr.IsCode(err, coreerr.CodeCommunication))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestExchange_WriteFailureAfterExit(t *testing.T) {
	ch := New(strings.NewReader(""), failingWriter{}, WithLiveness(exitedProbe{exited: true}))

	_, err := ch.Exchange(context.Background(), "new_graph;")
	require.Error(t, err)
	assert.True(t, coreerr.IsProcessTerminated(err))
}

func TestExchange_SingleFlight(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
	)
	e := &testutil.Engine{Handler: func(line string, _ []string) string {
		mu.Lock()
		received = append(received, line)
		mu.Unlock()
		return "ok:" + line
	}}
	ch, stop := pipeEngine(t, e)
	defer stop()

	const perCaller = 50
	payload := strings.Repeat("x", 4096)
	var wg sync.WaitGroup
	errs := make(chan error, 2*perCaller)
	for caller := 0; caller < 2; caller++ {
		wg.Add(1)
		go func(caller int) {
			defer wg.Done()
			for i := 0; i < perCaller; i++ {
				line := fmt.Sprintf(`echo "%d-%d-%s";`, caller, i, payload)
				resp, err := ch.Exchange(context.Background(), line)
				if err != nil {
					errs <- err
					return
				}
				if resp != "ok:"+line {
					errs <- fmt.Errorf("response mismatch for %d-%d", caller, i)
					return
				}
			}
		}(caller)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	require.Len(t, received, 2*perCaller)
	for _, line := range received {
		assert.True(t, strings.HasPrefix(line, `echo "`), "torn request: %.40q", line)
		assert.True(t, strings.HasSuffix(line, payload+`";`), "torn request: %.40q", line)
	}
}

func TestExchange_ContextCancelledWhileWaitingForLock(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	e := &testutil.Engine{Handler: func(line string, _ []string) string {
		if line == "slow;" {
			close(entered)
			<-release
		}
		return "done"
	}}
	ch, stop := pipeEngine(t, e)
	defer stop()

	slowDone := make(chan error, 1)
	go func() {
		_, err := ch.Exchange(context.Background(), "slow;")
		slowDone <- err
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := ch.Exchange(ctx, "fast;")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-slowDone)

	// The channel is still in sync after the abandoned wait.
	resp, err := ch.Exchange(context.Background(), "fast;")
	require.NoError(t, err)
	assert.Equal(t, "done", resp)
}

type recorderFunc func(Exchange)

func (f recorderFunc) Record(ex Exchange) { f(ex) }

func TestExchange_Recorder(t *testing.T) {
	var got []Exchange
	e := &testutil.Engine{Handler: func(string, []string) string { return "g0" }}
	ch, stop := pipeEngine(t, e, WithRecorder(recorderFunc(func(ex Exchange) {
		got = append(got, ex)
	})))
	defer stop()

	_, err := ch.Exchange(context.Background(), "new_graph;")
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, []string{"new_graph;"}, got[0].Lines)
	assert.Equal(t, "g0", got[0].Response)
	assert.NoError(t, got[0].Err)
}

func TestQuit_ClosesChannel(t *testing.T) {
	e := &testutil.Engine{Handler: func(string, []string) string { return "" }}
	ch, stop := pipeEngine(t, e)
	defer stop()

	require.NoError(t, ch.Quit(context.Background()))

	_, err := ch.Exchange(context.Background(), "new_graph;")
	assert.True(t, coreerr.IsSessionClosed(err))
	assert.True(t, coreerr.IsSessionClosed(ch.Quit(context.Background())))
}

func TestClose(t *testing.T) {
	ch := New(strings.NewReader(""), io.Discard)
	require.NoError(t, ch.Close())

	_, err := ch.Exchange(context.Background(), "new_graph;")
	assert.True(t, coreerr.IsSessionClosed(err))
}

func TestCommandName(t *testing.T) {
	assert.Equal(t, "new_graph", CommandName("new_graph;"))
	assert.Equal(t, "add_vertex", CommandName(`add_vertex "g0" "red";`))
	assert.Equal(t, "", CommandName(""))
}

func TestFake_RecordsAndCloses(t *testing.T) {
	f := NewFake(func(lines []string) (string, error) {
		if lines[0] == "die;" {
			return "", coreerr.New(coreerr.CodeProcessTerminated, "gone")
		}
		return "ok", nil
	})
	ctx := context.Background()

	resp, err := f.Exchange(ctx, "a;", "block")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = f.Exchange(ctx, "die;")
	assert.True(t, coreerr.IsProcessTerminated(err))

	_, err = f.Exchange(ctx, "b;")
	assert.True(t, coreerr.IsSessionClosed(err))

	assert.Equal(t, []string{"a;", "die;"}, f.Requests())
	assert.Equal(t, [][]string{{"a;", "block"}, {"die;"}}, f.Exchanges())
}
