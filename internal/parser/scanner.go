// Package parser reconstructs games from a Quake 3 Arena server log.
//
// The log is scanned once, line by line. A game is opened implicitly, mutated by
// ClientConnect, ClientUserinfoChanged and Kill lines, and completed by ShutdownGame.
// InitGame also completes the current game, but only if it recorded at least one kill.
// A game still open at the end of the log is discarded.
package parser

import (
	"bufio"
	"io"
	"log/slog"
	"strings"

	"github.com/victornm/q3log/internal/domain"
	"github.com/victornm/q3log/internal/errors"
)

const (
	keywordInitGame     = "InitGame:"
	keywordShutdownGame = "ShutdownGame:"
	keywordConnect      = "ClientConnect:"
	keywordUserInfo     = "ClientUserinfoChanged:"
	keywordKill         = "Kill:"
)

type scanner struct {
	session *session
	games   []domain.Game
}

// Scan reads the log from r and returns the completed games in log order.
// Lines have no length limit. The first malformed line aborts the scan with a *LineError;
// no games are returned with an error.
func Scan(r io.Reader) ([]domain.Game, error) {
	sc := &scanner{session: newSession()}
	br := bufio.NewReader(r)

	n := 0
	for {
		raw, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.New(errors.CodeIOFailure,
				errors.WithMessagef("read log after line %d", n),
				errors.WithCause(err))
		}

		if raw != "" {
			n++
			if err := sc.scanLine(n, trimEOL(raw)); err != nil {
				return nil, err
			}
		}

		if err == io.EOF {
			break
		}
	}

	if sc.session.active() {
		slog.Debug("parser: discarding game without ShutdownGame",
			"total_kills", sc.session.totalKills,
			"players", len(sc.session.players),
		)
	}

	return sc.games, nil
}

// ScanString scans a log held in memory.
func ScanString(content string) ([]domain.Game, error) {
	return Scan(strings.NewReader(content))
}

func (sc *scanner) scanLine(n int, raw string) error {
	l, ok, err := classify(raw)
	if err != nil {
		return &LineError{Line: n, Err: err}
	}

	if !ok {
		return nil
	}

	if err := sc.handle(l); err != nil {
		return &LineError{Line: n, Keyword: l.keyword, Err: err}
	}

	return nil
}

func trimEOL(raw string) string {
	raw = strings.TrimSuffix(raw, "\n")
	return strings.TrimSuffix(raw, "\r")
}

func (sc *scanner) handle(l line) error {
	switch l.keyword {
	case keywordInitGame:
		if sc.session.active() {
			sc.complete("InitGame")
		}
	case keywordShutdownGame:
		sc.complete("ShutdownGame")
	case keywordConnect:
		return decodeConnect(sc.session, l.args)
	case keywordUserInfo:
		return decodeRename(sc.session, l.args)
	case keywordKill:
		return decodeKill(sc.session, l.args)
	}

	return nil
}

func (sc *scanner) complete(by string) {
	g := sc.session.close()
	sc.games = append(sc.games, g)

	slog.Debug("parser: game completed",
		"game", len(sc.games),
		"by", by,
		"total_kills", g.TotalKills,
		"players", len(g.Players),
	)
}
