package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/q3log/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Leaderboard struct {
		RunID      string             `json:"run_id"`
		Game       int                `json:"game"`
		TotalKills uint32             `json:"total_kills"`
		Entries    []LeaderboardEntry `json:"entries"`
		Causes     []Cause            `json:"causes"`
	}

	LeaderboardEntry struct {
		ClientID uint32 `json:"client_id"`
		Name     string `json:"name"`
		Kills    int64  `json:"kills"`
	}
)

func toLeaderboard(l domain.Leaderboard) Leaderboard {
	data := Leaderboard{
		RunID:      l.RunID,
		Game:       l.Game,
		TotalKills: l.TotalKills,
		Entries:    make([]LeaderboardEntry, 0, len(l.Entries)),
		Causes:     toCauses(l.Causes, l.TotalKills),
	}

	for _, entry := range l.Entries {
		data.Entries = append(data.Entries, LeaderboardEntry{
			ClientID: entry.ClientID,
			Name:     entry.Name,
			Kills:    entry.Kills,
		})
	}

	return data
}

// PublishLeaderboardUpdated notifies the subscribers of the run and of every player of the game.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := toLeaderboard(e.Leaderboard)

	// players may share a name, each channel is notified once
	channels := []string{fmt.Sprintf("%s:run:%s", a.prefix, data.RunID)}
	seen := make(map[string]bool, len(data.Entries))
	for _, entry := range data.Entries {
		ch := fmt.Sprintf("%s:player:%s", a.prefix, entry.Name)
		if seen[ch] {
			continue
		}
		seen[ch] = true
		channels = append(channels, ch)
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, ch := range channels {
		eg.Go(func() error {
			return a.publishNotification(ctx, ch, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}
