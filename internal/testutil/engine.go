package testutil

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	sentinel      = "\b"
	padding       = " "
	defaultPrompt = "quanto:>"
)

// EngineHandler answers a request. block is nil unless the command was
// declared in BlockCommands.
type EngineHandler func(line string, block []string) string

// Engine is a scripted stand-in for the reasoning engine that reads
// requests from an io.Reader and writes framed responses, each followed by
// a framed prompt.
//
// HELO is answered automatically so the channel handshake works; every
// other line goes to Handler. Serve returns when the input ends or a quit
// request arrives.
type Engine struct {
	Handler EngineHandler

	// BlockCommands names commands whose request line is followed by a
	// ---startblock:N / ---endblock:N payload.
	BlockCommands map[string]bool

	// Prompt defaults to "quanto:>".
	Prompt string

	// Banner is written, framed, before anything is read, the way a real
	// engine prints start-up noise ahead of the handshake.
	Banner string
}

// Serve runs the request loop.
func (e *Engine) Serve(r io.Reader, w io.Writer) error {
	prompt := e.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	in := bufio.NewReader(r)
	out := bufio.NewWriter(w)

	if e.Banner != "" {
		if err := writeFrame(out, e.Banner); err != nil {
			return err
		}
	}

	for {
		line, err := in.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "quit;" || line == "quit" {
			return nil
		}

		var block []string
		if e.BlockCommands[commandWord(line)] {
			block, err = readBlock(in)
			if err != nil {
				return err
			}
		}

		var resp string
		switch line {
		case "HELO;":
			resp = "HELO"
		default:
			resp = e.Handler(line, block)
		}
		if err := writeFrame(out, resp); err != nil {
			return err
		}
		if err := writeFrame(out, prompt); err != nil {
			return err
		}
	}
}

func writeFrame(w *bufio.Writer, payload string) error {
	if _, err := w.WriteString(payload + padding + sentinel); err != nil {
		return err
	}
	return w.Flush()
}

// readBlock reads a start marker, payload lines and the matching end marker.
func readBlock(in *bufio.Reader) ([]string, error) {
	start, err := in.ReadString('\n')
	if err != nil {
		return nil, err
	}
	start = strings.TrimRight(start, "\r\n")
	tag, ok := strings.CutPrefix(start, "---startblock:")
	if !ok {
		return nil, fmt.Errorf("expected block start, got %q", start)
	}
	end := "---endblock:" + tag
	var lines []string
	for {
		l, err := in.ReadString('\n')
		if err != nil {
			return nil, err
		}
		l = strings.TrimRight(l, "\r\n")
		if l == end {
			return lines, nil
		}
		lines = append(lines, l)
	}
}

func commandWord(line string) string {
	line = strings.TrimSuffix(line, ";")
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i]
	}
	return line
}
