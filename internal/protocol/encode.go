package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/qcore/internal/coreerr"
)

// Kind is the wire encoding of an argument.
type Kind int

const (
	// KindInt is sent as decimal digits.
	KindInt Kind = iota

	// KindName is sent double-quoted with \ and " escaped.
	KindName

	// KindRaw is sent unescaped. Only valid as the final argument.
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindName:
		return "name"
	case KindRaw:
		return "raw"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Arg is one positional command argument.
type Arg struct {
	Kind  Kind
	Value string
}

// Int returns an integer argument.
func Int(n int) Arg {
	return Arg{Kind: KindInt, Value: strconv.Itoa(n)}
}

// Name returns a quoted name, identifier or path argument.
func Name(s string) Arg {
	return Arg{Kind: KindName, Value: s}
}

// Names returns one quoted argument per element.
func Names(ss ...string) []Arg {
	out := make([]Arg, len(ss))
	for i, s := range ss {
		out[i] = Name(s)
	}
	return out
}

// Raw returns an unescaped argument.
func Raw(s string) Arg {
	return Arg{Kind: KindRaw, Value: s}
}

// Quote renders a single argument in wire form.
func Quote(a Arg) string {
	switch a.Kind {
	case KindName:
		return `"` + escaper.Replace(a.Value) + `"`
	default:
		return a.Value
	}
}

var (
	escaper   = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`)
)

// Encode builds a request line for cmd and args, terminating semicolon
// included.
func Encode(cmd string, args ...Arg) (string, error) {
	if cmd == "" || strings.ContainsAny(cmd, " ;\"\r\n") {
		return "", coreerr.New(coreerr.CodeInvalidArgument, fmt.Sprintf("invalid command name %q", cmd))
	}
	var b strings.Builder
	b.WriteString(cmd)
	for i, a := range args {
		if err := validate(a, i == len(args)-1); err != nil {
			return "", err
		}
		b.WriteByte(' ')
		b.WriteString(Quote(a))
	}
	b.WriteByte(';')
	return b.String(), nil
}

func validate(a Arg, last bool) error {
	if strings.ContainsAny(a.Value, "\r\n") {
		return coreerr.New(coreerr.CodeInvalidArgument,
			fmt.Sprintf("%s argument contains a line terminator", a.Kind))
	}
	switch a.Kind {
	case KindInt:
		if _, err := strconv.Atoi(a.Value); err != nil {
			return coreerr.Wrap(coreerr.CodeInvalidArgument, "malformed int argument", err)
		}
	case KindName:
	case KindRaw:
		if !last {
			return coreerr.New(coreerr.CodeInvalidArgument, "raw argument must be last")
		}
	default:
		return coreerr.New(coreerr.CodeInvalidArgument, fmt.Sprintf("unknown argument kind %d", int(a.Kind)))
	}
	return nil
}

const (
	blockStart = "---startblock:"
	blockEnd   = "---endblock:"
)

// BlockLines returns the marker-delimited payload lines sent after a block
// command's request line.
func BlockLines(tag int, payload string) []string {
	t := strconv.Itoa(tag)
	return []string{blockStart + t, payload, blockEnd + t}
}

// ParseRequest is the inverse of Encode, used by scripted engines and tests.
// A trailing argument that is neither an integer nor quoted is returned as
// KindRaw, so a raw argument that happens to be all digits decodes as
// KindInt with the same value.
func ParseRequest(line string) (string, []Arg, error) {
	line = strings.TrimSpace(line)
	body, ok := strings.CutSuffix(line, ";")
	if !ok {
		return "", nil, fmt.Errorf("request %q is not terminated by ';'", line)
	}
	cmd, rest, _ := strings.Cut(body, " ")
	if cmd == "" {
		return "", nil, fmt.Errorf("request %q has no command", line)
	}

	var args []Arg
	for rest != "" {
		switch {
		case rest[0] == '"':
			end, err := closingQuote(rest)
			if err != nil {
				return "", nil, fmt.Errorf("request %q: %w", line, err)
			}
			args = append(args, Name(unescaper.Replace(rest[1:end])))
			rest = rest[end+1:]
			if rest != "" {
				if rest[0] != ' ' {
					return "", nil, fmt.Errorf("request %q: expected space after argument", line)
				}
				rest = rest[1:]
			}
		default:
			word, tail, found := strings.Cut(rest, " ")
			if _, err := strconv.Atoi(word); err == nil {
				args = append(args, Arg{Kind: KindInt, Value: word})
				rest = tail
				if !found {
					rest = ""
				}
				continue
			}
			args = append(args, Raw(rest))
			rest = ""
		}
	}
	return cmd, args, nil
}

// closingQuote returns the index of the quote that terminates the quoted
// string at the start of s.
func closingQuote(s string) (int, error) {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i, nil
		}
	}
	return 0, fmt.Errorf("unterminated quoted argument")
}
