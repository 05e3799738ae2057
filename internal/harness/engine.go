package harness

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// blockTag is the fixed block marker integer used during runs.
const blockTag = 1

// scriptedEngine answers requests from a script's conversation.
type scriptedEngine struct {
	mu         sync.Mutex
	script     []Exchange
	pos        int
	transcript []Entry
	errors     []string
}

func newScriptedEngine(script []Exchange) *scriptedEngine {
	return &scriptedEngine{script: script}
}

// handle implements channel.Handler.
func (e *scriptedEngine) handle(lines []string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reply := e.answer(lines)
	e.transcript = append(e.transcript, Entry{
		Request: append([]string(nil), lines...),
		Reply:   reply,
	})
	return reply, nil
}

func (e *scriptedEngine) answer(lines []string) string {
	if e.pos >= len(e.script) {
		e.errors = append(e.errors, fmt.Sprintf("engine: unscripted request %q", lines[0]))
		return "!!! harness: unscripted request"
	}
	want := e.script[e.pos]
	if lines[0] != want.Request {
		e.errors = append(e.errors, fmt.Sprintf("engine[%d]: got request %q, want %q", e.pos, lines[0], want.Request))
		return "!!! harness: unexpected request"
	}
	if want.Block != nil {
		if got := blockPayload(lines); !slices.Equal(got, want.Block) {
			e.errors = append(e.errors, fmt.Sprintf("engine[%d]: got block %q, want %q", e.pos, got, want.Block))
		}
	}
	e.pos++
	if want.Error != "" {
		return "!!! " + want.Error
	}
	return want.Reply
}

// blockPayload returns the payload lines between the block markers.
func blockPayload(lines []string) []string {
	if len(lines) < 3 || !strings.HasPrefix(lines[1], "---startblock:") {
		return nil
	}
	return strings.Split(strings.Join(lines[2:len(lines)-1], "\n"), "\n")
}

// finish reports mismatches and any conversation left unconsumed.
func (e *scriptedEngine) finish() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	errs := append([]string(nil), e.errors...)
	if left := len(e.script) - e.pos; left > 0 {
		errs = append(errs, fmt.Sprintf("engine: %d scripted exchange(s) never requested, next %q", left, e.script[e.pos].Request))
	}
	return errs
}

func (e *scriptedEngine) requests() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.transcript))
	for i, t := range e.transcript {
		out[i] = t.Request[0]
	}
	return out
}
