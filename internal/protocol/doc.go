// Package protocol encodes engine commands into wire requests and decodes
// responses into results or classified errors.
//
// # Requests
//
// A request line is the command name, then each argument preceded by a
// single space, then a terminating semicolon:
//
//	add_edge "g0" "v0" "v1";
//	apply_rewrite "g0" 2;
//
// Integers are sent unquoted. Names, identifiers and paths are wrapped in
// double quotes with backslash and double quote escaped. A raw argument is
// sent as-is and may only appear last.
//
// Commands that carry a multi-line payload send three extra lines after the
// request line:
//
//	---startblock:<n>
//	<payload>
//	---endblock:<n>
//
// where n is a random non-negative integer shared by both markers.
//
// # Responses
//
// A payload starting with "!!!" is an error. "Unknown command: name(..." and
// "Wrong number of args in name(..." are classified by command; anything
// else is an engine error carrying the message verbatim. Successful payloads
// are trimmed; list results are split on \r\n, \n or \r.
package protocol
