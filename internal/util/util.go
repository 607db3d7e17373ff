// Package util provides small string helpers shared by the command readers.
package util

import (
	"errors"
	"strings"
)

// ErrUnterminatedQuote is returned by SplitCommand for a quoted argument
// without its closing quote.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// SplitCommand splits a command line into a command and its raw arguments.
// Arguments are separated by whitespace; a double-quoted argument may hold
// spaces and escapes a quote by doubling it. Quotes are kept so the parser
// sees arguments exactly as sent. Blank lines and lines starting with '#'
// yield an empty command.
func SplitCommand(line string) (command string, args []string, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil, nil
	}

	var tokens []string
	for i := 0; i < len(line); {
		switch {
		case line[i] == ' ' || line[i] == '\t':
			i++
		case line[i] == '"':
			end := closingQuote(line, i+1)
			if end < 0 {
				return "", nil, ErrUnterminatedQuote
			}
			tokens = append(tokens, line[i:end+1])
			i = end + 1
		default:
			end := strings.IndexAny(line[i:], " \t")
			if end < 0 {
				end = len(line) - i
			}
			tokens = append(tokens, line[i:i+end])
			i += end
		}
	}
	return tokens[0], tokens[1:], nil
}

// closingQuote returns the index of the quote closing a string that starts
// at from, skipping doubled quotes, or -1.
func closingQuote(s string, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] != '"' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '"' {
			i++
			continue
		}
		return i
	}
	return -1
}
