package domain

const (
	EventNameGameCompleted      = "game.completed"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// EventGameCompleted is published once per game of an ingested run, in log order.
type EventGameCompleted struct {
	RunID  string
	Number int
	Game   Game
}

func (EventGameCompleted) Name() string { return EventNameGameCompleted }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
