package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/victornm/q3log/internal/domain"
)

// namePrefixLen is the length in characters of the "n\" key preceding the name in user info.
const namePrefixLen = 2

// decodeConnect handles "ClientConnect: <client_id>".
func decodeConnect(s *session, args *tokens) error {
	id, err := args.nextUint32(fieldClientID)
	if err != nil {
		return err
	}

	s.connect(id)
	return nil
}

// decodeRename handles "ClientUserinfoChanged: <client_id> n\<name>\<rest>".
func decodeRename(s *session, args *tokens) error {
	id, err := args.nextUint32(fieldClientID)
	if err != nil {
		return err
	}

	return s.rename(id, playerName(strings.Join(args.rest(), " ")))
}

// playerName extracts the name from a user info string: the text after the prefix up to
// the first backslash.
func playerName(info string) string {
	for i := 0; i < namePrefixLen && info != ""; i++ {
		_, size := utf8.DecodeRuneInString(info)
		info = info[size:]
	}

	if i := strings.IndexByte(info, '\\'); i >= 0 {
		info = info[:i]
	}

	return info
}

// decodeKill handles "Kill: <killer_id> <victim_id> <cause_id>: <text>".
func decodeKill(s *session, args *tokens) error {
	killer, err := args.nextUint32(fieldKillerID)
	if err != nil {
		return err
	}

	victim, err := args.nextUint32(fieldVictimID)
	if err != nil {
		return err
	}

	tok, ok := args.next()
	if !ok || len(tok) <= 1 {
		return missingField(fieldCauseID)
	}

	// the cause id is terminated by a colon
	code, err := strconv.ParseUint(tok[:len(tok)-1], 10, 32)
	if err != nil {
		return malformedNumber(fieldCauseID, tok, err)
	}

	return s.kill(killer, victim, domain.CauseFromCode(uint32(code)))
}

func (t *tokens) nextUint32(field string) (uint32, error) {
	tok, ok := t.next()
	if !ok {
		return 0, missingField(field)
	}

	n, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, malformedNumber(field, tok, err)
	}

	return uint32(n), nil
}
