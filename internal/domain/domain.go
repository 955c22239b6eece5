package domain

import (
	"cmp"
	"slices"
	"time"
)

// WorldID is the client id the server uses for the environment when it kills a player.
// It is never registered as a player.
const WorldID uint32 = 1022

// UnknownPlayerName is the name of a connected player until the first user info change.
const UnknownPlayerName = "unknown"

// PlayerData is a player's name and score within one game.
// The score is decremented when the world kills the player, so it can go negative.
type PlayerData struct {
	Name  string `json:"name"`
	Kills int32  `json:"kills"`
}

// Compare orders players by kills, highest first.
func (p PlayerData) Compare(o PlayerData) int {
	return cmp.Compare(o.Kills, p.Kills)
}

// Game is a completed match reconstructed from the log.
type Game struct {
	// TotalKills counts every kill, world kills included.
	TotalKills   uint32                `json:"total_kills"`
	KillsByCause map[Cause]uint32      `json:"kills_by_cause"`
	Players      map[uint32]PlayerData `json:"players"`
}

type PlayerEntry struct {
	ClientID uint32 `json:"client_id"`
	PlayerData
}

type CauseCount struct {
	Cause Cause  `json:"cause"`
	Count uint32 `json:"count"`
}

// Ranking returns the players sorted by kills in descending order, ties by client id.
func (g Game) Ranking() []PlayerEntry {
	entries := make([]PlayerEntry, 0, len(g.Players))
	for id, p := range g.Players {
		entries = append(entries, PlayerEntry{ClientID: id, PlayerData: p})
	}

	slices.SortFunc(entries, func(a, b PlayerEntry) int {
		return cmp.Compare(a.ClientID, b.ClientID)
	})
	slices.SortStableFunc(entries, func(a, b PlayerEntry) int {
		return a.Compare(b.PlayerData)
	})

	return entries
}

// CauseRanking returns the causes sorted by kill count in descending order, ties by cause code.
func (g Game) CauseRanking() []CauseCount {
	counts := make([]CauseCount, 0, len(g.KillsByCause))
	for c, n := range g.KillsByCause {
		counts = append(counts, CauseCount{Cause: c, Count: n})
	}

	slices.SortFunc(counts, func(a, b CauseCount) int {
		if n := cmp.Compare(b.Count, a.Count); n != 0 {
			return n
		}
		return cmp.Compare(a.Cause, b.Cause)
	})

	return counts
}

// Run is the result of ingesting one log file. Games are in log order, game numbers are 1-based.
type Run struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	ScannedAt time.Time `json:"scanned_at"`
	Games     []Game    `json:"games"`
}

// Game returns the game with the given 1-based number.
func (r *Run) Game(number int) (Game, bool) {
	if number < 1 || number > len(r.Games) {
		return Game{}, false
	}

	return r.Games[number-1], true
}

// Leaderboard represents the kill ranking of one game of a run.
// Entries are sorted by kills in descending order.
type Leaderboard struct {
	RunID      string             `json:"run_id"`
	Game       int                `json:"game"`
	TotalKills uint32             `json:"total_kills"`
	Entries    []LeaderboardEntry `json:"entries"`
	Causes     []CauseCount       `json:"causes"`
}

type LeaderboardEntry struct {
	ClientID uint32 `json:"client_id"`
	Name     string `json:"name"`
	Kills    int64  `json:"kills"`
}
