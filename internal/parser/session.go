package parser

import (
	"math"

	"github.com/victornm/q3log/internal/domain"
)

// session is the mutable state of the game being scanned.
type session struct {
	totalKills   uint32
	killsByCause map[domain.Cause]uint32
	players      map[uint32]domain.PlayerData
}

func newSession() *session {
	return &session{
		killsByCause: make(map[domain.Cause]uint32),
		players:      make(map[uint32]domain.PlayerData),
	}
}

// active reports whether any kill was recorded since the session was opened.
func (s *session) active() bool {
	return len(s.killsByCause) > 0
}

// close hands the accumulated state over as a completed game and resets the session.
func (s *session) close() domain.Game {
	g := domain.Game{
		TotalKills:   s.totalKills,
		KillsByCause: s.killsByCause,
		Players:      s.players,
	}

	*s = *newSession()
	return g
}

// connect registers a client. Connecting an already known client keeps its name and score.
func (s *session) connect(id uint32) {
	if _, ok := s.players[id]; ok {
		return
	}

	s.players[id] = domain.PlayerData{Name: domain.UnknownPlayerName}
}

func (s *session) rename(id uint32, name string) error {
	p, ok := s.players[id]
	if !ok {
		return violated(InvariantPlayerNotFound)
	}

	p.Name = name
	s.players[id] = p
	return nil
}

// kill records a kill. The killer scores one, unless it is the world: then the victim loses one.
// Nothing is recorded when an error is returned.
func (s *session) kill(killer, victim uint32, cause domain.Cause) error {
	if s.totalKills == math.MaxUint32 {
		return violated(InvariantTotalKillsOverflow)
	}

	if s.killsByCause[cause] == math.MaxUint32 {
		return violated(InvariantCauseCountOverflow)
	}

	scored, delta := killer, int32(1)
	if killer == domain.WorldID {
		scored, delta = victim, -1
	}

	p, ok := s.players[scored]
	switch {
	case !ok && killer == domain.WorldID:
		return violated(InvariantVictimNotFound)
	case !ok:
		return violated(InvariantKillerNotFound)
	case delta < 0 && p.Kills == math.MinInt32:
		return violated(InvariantScoreUnderflow)
	case delta > 0 && p.Kills == math.MaxInt32:
		return violated(InvariantScoreOverflow)
	}

	s.totalKills++
	s.killsByCause[cause]++
	p.Kills += delta
	s.players[scored] = p
	return nil
}
