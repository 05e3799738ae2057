package protocol

import (
	"regexp"
	"strings"

	"github.com/roach88/qcore/internal/coreerr"
)

const (
	errorMarker          = "!!!"
	unknownCommandPrefix = "Unknown command: "
	wrongArgsPrefix      = "Wrong number of args in "
)

// Decode interprets a raw response payload. Error payloads become a
// classified *coreerr.Error; anything else is returned trimmed.
func Decode(payload string) (string, error) {
	if strings.HasPrefix(payload, errorMarker) {
		return "", Classify(payload)
	}
	return strings.TrimSpace(payload), nil
}

// Classify converts an error payload ("!!! ...") into a core error.
func Classify(payload string) error {
	msg := strings.TrimPrefix(payload, errorMarker)
	msg = strings.TrimPrefix(msg, " ")
	msg = strings.TrimRight(msg, " \r\n")

	switch {
	case strings.HasPrefix(msg, "Unknown command"):
		return coreerr.UnknownCommand(msg, commandIn(msg, unknownCommandPrefix))
	case strings.HasPrefix(msg, "Wrong number of args"):
		return coreerr.BadArguments(msg, commandIn(msg, wrongArgsPrefix))
	default:
		return coreerr.Engine(msg)
	}
}

// commandIn extracts the command name between prefix and the next '('.
func commandIn(msg, prefix string) string {
	rest, ok := strings.CutPrefix(msg, prefix)
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, '('); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}

var lineBreak = regexp.MustCompile(`\r\n|\n|\r`)

// SplitList splits a trimmed list result into its lines. An empty result
// is an empty list.
func SplitList(result string) []string {
	result = strings.TrimSpace(result)
	if result == "" {
		return []string{}
	}
	return lineBreak.Split(result, -1)
}
