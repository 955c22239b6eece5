package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/q3log/internal/domain"
	"github.com/victornm/q3log/internal/errors"
	"github.com/victornm/q3log/internal/event"
	"github.com/victornm/q3log/internal/metrics"
	"github.com/victornm/q3log/internal/parser"
)

type Config struct {
	EventBus *event.Bus
	Now      func() time.Time
}

type Service struct {
	eb  *event.Bus
	now func() time.Time

	mu      sync.RWMutex
	current *domain.Run
}

func NewService(c Config) *Service {
	s := &Service{
		eb:  c.EventBus,
		now: c.Now,
	}

	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type IngestRequest struct {
	Path string
}

// Ingest scans the log file at req.Path. See IngestReader.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*domain.Run, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return nil, errors.New(errors.CodeIOFailure,
			errors.WithMessagef("open log file %s", req.Path),
			errors.WithCause(err))
	}
	defer f.Close()

	return s.IngestReader(ctx, req.Path, f)
}

// IngestReader scans a log, makes it the current run and publishes one game.completed
// event per game in log order. source only labels the run.
func (s *Service) IngestReader(ctx context.Context, source string, r io.Reader) (*domain.Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ingest: generate run ID: %w", err)
	}

	start := s.now()
	games, err := parser.Scan(r)
	if err != nil {
		metrics.ObserveScanError(err, s.now().Sub(start))
		return nil, fmt.Errorf("ingest: scan %s: %w", source, err)
	}
	metrics.ObserveScan(games, s.now().Sub(start))

	run := &domain.Run{
		RunID:     id.String(),
		Source:    source,
		ScannedAt: start,
		Games:     games,
	}

	s.mu.Lock()
	s.current = run
	s.mu.Unlock()

	slog.InfoContext(ctx, "ingest: log scanned",
		"run_id", run.RunID,
		"source", source,
		"games", len(games),
	)

	if s.eb != nil {
		for i, g := range games {
			s.eb.Publish(ctx, domain.EventGameCompleted{
				RunID:  run.RunID,
				Number: i + 1,
				Game:   g,
			})
		}
	}

	return run, nil
}

// Current returns the last ingested run.
func (s *Service) Current() (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("no log ingested yet"))
	}

	return s.current, nil
}

type GetGameRequest struct {
	Number int
}

// GetGame returns a game of the current run by its 1-based number.
func (s *Service) GetGame(_ context.Context, req GetGameRequest) (*domain.Game, error) {
	run, err := s.Current()
	if err != nil {
		return nil, err
	}

	g, ok := run.Game(req.Number)
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("game not found: run=%s game=%d", run.RunID, req.Number))
	}

	return &g, nil
}
