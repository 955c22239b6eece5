package leaderboard

import (
	"cmp"
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/q3log/internal/domain"
	"github.com/victornm/q3log/internal/errors"
	"github.com/victornm/q3log/internal/event"
)

const fieldTotalKills = "total_kills"

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	// TTL expires the keys of a game. Zero keeps them forever.
	TTL time.Duration
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.TTL,
	}

	s.eb.Subscribe(domain.EventNameGameCompleted, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventGameCompleted))
	})

	return s
}

type GetLeaderboardRequest struct {
	RunID string
	Game  int
}

// GetLeaderboard returns the kill ranking and the cause ranking of one game of a run.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	keys := s.keys(req.RunID, req.Game)

	var (
		total  *redis.StringCmd
		scores *redis.ZSliceCmd
		names  *redis.MapStringStringCmd
		causes *redis.ZSliceCmd
	)

	_, err := s.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		total = p.HGet(ctx, keys.game, fieldTotalKills)
		scores = p.ZRevRangeWithScores(ctx, keys.leaderboard, 0, -1)
		names = p.HGetAll(ctx, keys.names)
		causes = p.ZRevRangeWithScores(ctx, keys.causes, 0, -1)
		return nil
	})
	if err != nil && !stderrors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	totalKills, err := total.Uint64()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("leaderboard not found: run=%s game=%d", req.RunID, req.Game))
	}
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: total kills: %w", err)
	}

	l := &domain.Leaderboard{
		RunID:      req.RunID,
		Game:       req.Game,
		TotalKills: uint32(totalKills),
		Entries:    make([]domain.LeaderboardEntry, 0, len(scores.Val())),
		Causes:     make([]domain.CauseCount, 0, len(causes.Val())),
	}

	for _, z := range scores.Val() {
		member := z.Member.(string)
		id, err := strconv.ParseUint(member, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("get leaderboard: member %q: %w", member, err)
		}

		l.Entries = append(l.Entries, domain.LeaderboardEntry{
			ClientID: uint32(id),
			Name:     names.Val()[member],
			Kills:    int64(z.Score),
		})
	}

	for _, z := range causes.Val() {
		member := z.Member.(string)
		code, err := strconv.ParseUint(member, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("get leaderboard: cause %q: %w", member, err)
		}

		l.Causes = append(l.Causes, domain.CauseCount{
			Cause: domain.Cause(code),
			Count: uint32(z.Score),
		})
	}

	// Redis breaks score ties by member in reverse lexical order.
	slices.SortFunc(l.Entries, func(a, b domain.LeaderboardEntry) int {
		if n := cmp.Compare(b.Kills, a.Kills); n != 0 {
			return n
		}
		return cmp.Compare(a.ClientID, b.ClientID)
	})
	slices.SortFunc(l.Causes, func(a, b domain.CauseCount) int {
		if n := cmp.Compare(b.Count, a.Count); n != 0 {
			return n
		}
		return cmp.Compare(a.Cause, b.Cause)
	})

	return l, nil
}

// UpdateLeaderboard overwrites the leaderboard of the completed game and publishes it.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventGameCompleted) error {
	keys := s.keys(e.RunID, e.Number)
	g := e.Game

	// TODO: retry on error
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys.game, keys.leaderboard, keys.names, keys.causes)
		p.HSet(ctx, keys.game, fieldTotalKills, g.TotalKills)

		for id, player := range g.Players {
			member := strconv.FormatUint(uint64(id), 10)
			p.ZAdd(ctx, keys.leaderboard, redis.Z{Score: float64(player.Kills), Member: member})
			p.HSet(ctx, keys.names, member, player.Name)
		}

		for c, n := range g.KillsByCause {
			p.ZAdd(ctx, keys.causes, redis.Z{Score: float64(n), Member: strconv.Itoa(int(c))})
		}

		if s.ttl > 0 {
			for _, k := range keys.all() {
				p.Expire(ctx, k, s.ttl)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.publishLeaderboard(ctx, e.RunID, e.Number)
}

func (s *Service) publishLeaderboard(ctx context.Context, runID string, game int) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		RunID: runID,
		Game:  game,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: run=%s game=%d: %w", runID, game, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

type gameKeys struct {
	game        string
	leaderboard string
	names       string
	causes      string
}

func (k gameKeys) all() []string {
	return []string{k.game, k.leaderboard, k.names, k.causes}
}

// keys of a game share a hash tag so the MULTI block of UpdateLeaderboard stays in one cluster slot.
func (s *Service) keys(run string, game int) gameKeys {
	base := fmt.Sprintf("{%s:%s:%d}", s.prefix, run, game)

	return gameKeys{
		game:        base + ":game",
		leaderboard: base + ":leaderboard",
		names:       base + ":names",
		causes:      base + ":causes",
	}
}
