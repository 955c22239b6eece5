package parser

import (
	"fmt"

	"github.com/victornm/q3log/internal/errors"
)

// Invariant names a consistency rule of the game state that a log line broke.
// It is the cause of every CodeInvariantViolation error, so callers can match it with errors.Is.
type Invariant string

func (i Invariant) Error() string { return string(i) }

const (
	InvariantPlayerNotFound     Invariant = "player not found"
	InvariantKillerNotFound     Invariant = "killer not found"
	InvariantVictimNotFound     Invariant = "victim not found"
	InvariantTotalKillsOverflow Invariant = "total kills overflow"
	InvariantCauseCountOverflow Invariant = "cause count overflow"
	InvariantScoreOverflow      Invariant = "player score overflow"
	InvariantScoreUnderflow     Invariant = "player score underflow"
)

// Names of the log parts reported by CodeMissingField and CodeMalformedNumber errors.
const (
	fieldEvent    = "event"
	fieldClientID = "client_id"
	fieldKillerID = "killer_id"
	fieldVictimID = "victim_id"
	fieldCauseID  = "cause_id"
)

func missingField(field string) error {
	return errors.New(errors.CodeMissingField,
		errors.WithMessagef("log part not found: %s", field))
}

func malformedNumber(field, token string, err error) error {
	return errors.New(errors.CodeMalformedNumber,
		errors.WithMessagef("malformed number for %s: %q", field, token),
		errors.WithCause(err))
}

func violated(inv Invariant) error {
	return errors.New(errors.CodeInvariantViolation,
		errors.WithMessagef("invariant violated: %s", inv),
		errors.WithCause(inv))
}

// LineError locates a scan failure: the 1-based line number and, for a decoded event, its keyword.
type LineError struct {
	Line    int
	Keyword string
	Err     error
}

func (e *LineError) Error() string {
	if e.Keyword == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}

	return fmt.Sprintf("line %d: %s %v", e.Line, e.Keyword, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
