package parser

import (
	"strings"
	"unicode"
)

const minTimestampLen = 4

// line is an event record: a timestamped line with an event keyword.
type line struct {
	keyword string
	args    *tokens
}

// classify splits raw into an event record. Lines that are not event records (blank lines,
// separators without a timestamp) are reported with ok=false and no error.
func classify(raw string) (l line, ok bool, err error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 || !isTimestamp(fields[0]) {
		return line{}, false, nil
	}

	if len(fields) < 2 {
		return line{}, false, missingField(fieldEvent)
	}

	return line{keyword: fields[1], args: &tokens{fields: fields[2:]}}, true, nil
}

// isTimestamp accepts any Unicode number and colons. The minimum length is in bytes.
func isTimestamp(s string) bool {
	if len(s) < minTimestampLen {
		return false
	}

	for _, r := range s {
		if !unicode.IsNumber(r) && r != ':' {
			return false
		}
	}

	return true
}

// tokens iterates over the whitespace-delimited parts of a line following the event keyword.
type tokens struct {
	fields []string
	pos    int
}

func (t *tokens) next() (string, bool) {
	if t.pos >= len(t.fields) {
		return "", false
	}

	tok := t.fields[t.pos]
	t.pos++
	return tok, true
}

// rest consumes and returns every remaining token.
func (t *tokens) rest() []string {
	rest := t.fields[t.pos:]
	t.pos = len(t.fields)
	return rest
}
