package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/q3log/internal/domain"
	"github.com/victornm/q3log/internal/errors"
	"github.com/victornm/q3log/internal/event"
	"github.com/victornm/q3log/internal/leaderboard"
)

func game() domain.Game {
	return domain.Game{
		TotalKills: 5,
		KillsByCause: map[domain.Cause]uint32{
			domain.CauseRailgun:     2,
			domain.CauseTriggerHurt: 2,
			domain.CauseShotgun:     1,
		},
		Players: map[uint32]domain.PlayerData{
			2: {Name: "Isgalamido", Kills: 3},
			3: {Name: "Mocinha", Kills: -2},
			4: {Name: "Zeh", Kills: 0},
			5: {Name: "Oootsimo", Kills: 0},
		},
	}
}

func TestService_UpdateLeaderboard(t *testing.T) {
	s, _ := makeService(t)

	err := s.UpdateLeaderboard(context.Background(), domain.EventGameCompleted{
		RunID:  "r1",
		Number: 1,
		Game:   game(),
	})
	require.NoError(t, err)

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{
		RunID: "r1",
		Game:  1,
	})
	require.NoError(t, err)

	want := &domain.Leaderboard{
		RunID:      "r1",
		Game:       1,
		TotalKills: 5,
		Entries: []domain.LeaderboardEntry{
			{ClientID: 2, Name: "Isgalamido", Kills: 3},
			{ClientID: 4, Name: "Zeh", Kills: 0},
			{ClientID: 5, Name: "Oootsimo", Kills: 0},
			{ClientID: 3, Name: "Mocinha", Kills: -2},
		},
		Causes: []domain.CauseCount{
			{Cause: domain.CauseRailgun, Count: 2},
			{Cause: domain.CauseTriggerHurt, Count: 2},
			{Cause: domain.CauseShotgun, Count: 1},
		},
	}
	require.Equal(t, want, resp)
}

func TestService_UpdateLeaderboardOverwrites(t *testing.T) {
	s, _ := makeService(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateLeaderboard(ctx, domain.EventGameCompleted{RunID: "r1", Number: 1, Game: game()}))
	require.NoError(t, s.UpdateLeaderboard(ctx, domain.EventGameCompleted{
		RunID:  "r1",
		Number: 1,
		Game: domain.Game{
			KillsByCause: map[domain.Cause]uint32{},
			Players:      map[uint32]domain.PlayerData{7: {Name: "Assasinu Credi"}},
		},
	}))

	resp, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{RunID: "r1", Game: 1})
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{{ClientID: 7, Name: "Assasinu Credi"}}, resp.Entries)
	require.Empty(t, resp.Causes)
	require.Zero(t, resp.TotalKills)
}

func TestService_GetLeaderboard(t *testing.T) {
	s, _ := makeService(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateLeaderboard(ctx, domain.EventGameCompleted{
		RunID:  "r1",
		Number: 2,
		Game:   domain.Game{KillsByCause: map[domain.Cause]uint32{}, Players: map[uint32]domain.PlayerData{}},
	}))

	tests := map[string]struct {
		req      leaderboard.GetLeaderboardRequest
		wantCode errors.Code
	}{
		"game without players exists": {req: leaderboard.GetLeaderboardRequest{RunID: "r1", Game: 2}},
		"unknown game":                {req: leaderboard.GetLeaderboardRequest{RunID: "r1", Game: 3}, wantCode: errors.CodeNotFound},
		"unknown run":                 {req: leaderboard.GetLeaderboardRequest{RunID: "r2", Game: 2}, wantCode: errors.CodeNotFound},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp, err := s.GetLeaderboard(ctx, tt.req)
			if tt.wantCode != 0 {
				require.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
				return
			}

			require.NoError(t, err)
			require.Empty(t, resp.Entries)
		})
	}
}

func TestService_TTL(t *testing.T) {
	s, rs := makeService(t, withTTL(time.Hour))

	require.NoError(t, s.UpdateLeaderboard(context.Background(), domain.EventGameCompleted{RunID: "r1", Number: 1, Game: game()}))

	keys := []string{"{q3log:r1:1}:game", "{q3log:r1:1}:leaderboard", "{q3log:r1:1}:names", "{q3log:r1:1}:causes"}
	for _, k := range keys {
		require.Equal(t, time.Hour, rs.TTL(k), k)
	}

	// one hash tag per game keeps its keys in a single cluster slot
	require.ElementsMatch(t, keys, rs.Keys())

	rs.FastForward(2 * time.Hour)

	_, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{RunID: "r1", Game: 1})
	require.True(t, errors.HasCode(err, errors.CodeNotFound), "got %v", err)
}

func TestService_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventGameCompleted
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish leaderboard.updated after receiving game.completed": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventGameCompleted{
						{RunID: "r1", Number: 1, Game: game()},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")

				l := out.publishedEvents[0].Leaderboard
				require.Equal(t, "r1", l.RunID)
				require.Equal(t, 1, l.Game)
				require.Len(t, l.Entries, 4)
				require.Equal(t, domain.LeaderboardEntry{ClientID: 2, Name: "Isgalamido", Kills: 3}, l.Entries[0])
			},
		},

		"should publish one leaderboard.updated per game": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventGameCompleted{
						{RunID: "r1", Number: 1, Game: game()},
						{RunID: "r1", Number: 2, Game: game()},
						{RunID: "r2", Number: 1, Game: game()},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 3, "should receive 3 leaderboard updated events")
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s, _ := makeService(t,
				withEventBus(eb),
			)

			for _, e := range in.receivedEvents {
				err := s.UpdateLeaderboard(context.Background(), e)
				require.NoError(t, err)
			}

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_SubscribesToGameCompleted(t *testing.T) {
	eb := event.NewBus()
	s, _ := makeService(t, withEventBus(eb))

	eb.Publish(context.Background(), domain.EventGameCompleted{RunID: "r1", Number: 1, Game: game()})
	eb.Stop()

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{RunID: "r1", Game: 1})
	require.NoError(t, err)
	require.EqualValues(t, 5, resp.TotalKills)
}

func makeService(t *testing.T, opts ...options) (*leaderboard.Service, *miniredis.Miniredis) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Redis:    rc,
		Prefix:   "q3log",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c), rs
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}

func withTTL(d time.Duration) options {
	return func(c *leaderboard.Config) {
		c.TTL = d
	}
}
