package archive

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/q3log/internal/domain"
	"github.com/victornm/q3log/internal/errors"
	"github.com/victornm/q3log/internal/event"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	run_id      UUID        NOT NULL,
	number      INTEGER     NOT NULL,
	total_kills BIGINT      NOT NULL,
	create_time TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, number)
);

CREATE TABLE IF NOT EXISTS game_players (
	run_id    UUID    NOT NULL,
	number    INTEGER NOT NULL,
	client_id BIGINT  NOT NULL,
	name      TEXT    NOT NULL,
	kills     INTEGER NOT NULL,
	PRIMARY KEY (run_id, number, client_id),
	FOREIGN KEY (run_id, number) REFERENCES games (run_id, number) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS game_causes (
	run_id UUID     NOT NULL,
	number INTEGER  NOT NULL,
	cause  SMALLINT NOT NULL,
	count  BIGINT   NOT NULL,
	PRIMARY KEY (run_id, number, cause),
	FOREIGN KEY (run_id, number) REFERENCES games (run_id, number) ON DELETE CASCADE
);`

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
}

// Service stores completed games in Postgres.
type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	s := &Service{
		db: c.DB,
	}

	c.EventBus.Subscribe(domain.EventNameGameCompleted, func(ctx context.Context, e event.Event) error {
		return s.SaveGame(ctx, e.(domain.EventGameCompleted))
	})

	return s
}

// Migrate creates the archive tables if they do not exist.
func (s *Service) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}

	return nil
}

// SaveGame replaces the stored game e.Number of run e.RunID.
func (s *Service) SaveGame(ctx context.Context, e domain.EventGameCompleted) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		delGameStmt   = `DELETE FROM games WHERE run_id = $1 AND number = $2;`
		insGameStmt   = `INSERT INTO games (run_id, number, total_kills) VALUES ($1, $2, $3);`
		insPlayerStmt = `INSERT INTO game_players (run_id, number, client_id, name, kills) VALUES ($1, $2, $3, $4, $5);`
		insCauseStmt  = `INSERT INTO game_causes (run_id, number, cause, count) VALUES ($1, $2, $3, $4);`
	)

	if _, err = tx.Exec(ctx, delGameStmt, e.RunID, e.Number); err != nil {
		return fmt.Errorf("delete game: %w", err)
	}

	if _, err = tx.Exec(ctx, insGameStmt, e.RunID, e.Number, int64(e.Game.TotalKills)); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	b := &pgx.Batch{}
	for id, p := range e.Game.Players {
		b.Queue(insPlayerStmt, e.RunID, e.Number, int64(id), p.Name, p.Kills)
	}
	for c, n := range e.Game.KillsByCause {
		b.Queue(insCauseStmt, e.RunID, e.Number, int16(c), int64(n))
	}

	if b.Len() > 0 {
		if err = tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("insert players and causes: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "archive: game saved", "run_id", e.RunID, "game", e.Number)
	return nil
}

type ListGamesRequest struct {
	RunID string
}

// Game is an archived game with the number it was saved under.
type Game struct {
	Number int
	domain.Game
}

// ListGames returns the stored games of a run in log order. A game that was never saved
// leaves a gap in the numbers.
func (s *Service) ListGames(ctx context.Context, req ListGamesRequest) ([]Game, error) {
	if _, err := uuid.Parse(req.RunID); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid run ID: %q", req.RunID),
			errors.WithCause(err))
	}

	const (
		gamesStmt   = `SELECT number, total_kills FROM games WHERE run_id = $1 ORDER BY number;`
		playersStmt = `SELECT number, client_id, name, kills FROM game_players WHERE run_id = $1;`
		causesStmt  = `SELECT number, cause, count FROM game_causes WHERE run_id = $1;`
	)

	rows, err := s.db.Query(ctx, gamesStmt, req.RunID)
	if err != nil {
		return nil, fmt.Errorf("archive: list games: %w", err)
	}

	type gameRow struct {
		number     int
		totalKills int64
	}

	gameRows, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (gameRow, error) {
		var g gameRow
		err := r.Scan(&g.number, &g.totalKills)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("archive: list games: %w", err)
	}

	if len(gameRows) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("run not archived: run=%s", req.RunID))
	}

	games := make([]Game, len(gameRows))
	index := make(map[int]int, len(gameRows))
	for i, g := range gameRows {
		games[i] = Game{
			Number: g.number,
			Game: domain.Game{
				TotalKills:   uint32(g.totalKills),
				KillsByCause: make(map[domain.Cause]uint32),
				Players:      make(map[uint32]domain.PlayerData),
			},
		}
		index[g.number] = i
	}

	rows, err = s.db.Query(ctx, playersStmt, req.RunID)
	if err != nil {
		return nil, fmt.Errorf("archive: list players: %w", err)
	}

	_, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (struct{}, error) {
		var (
			number int
			id     int64
			p      domain.PlayerData
		)
		if err := r.Scan(&number, &id, &p.Name, &p.Kills); err != nil {
			return struct{}{}, err
		}
		if i, ok := index[number]; ok {
			games[i].Players[uint32(id)] = p
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: list players: %w", err)
	}

	rows, err = s.db.Query(ctx, causesStmt, req.RunID)
	if err != nil {
		return nil, fmt.Errorf("archive: list causes: %w", err)
	}

	_, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (struct{}, error) {
		var (
			number int
			cause  int16
			count  int64
		)
		if err := r.Scan(&number, &cause, &count); err != nil {
			return struct{}{}, err
		}
		if i, ok := index[number]; ok {
			games[i].KillsByCause[domain.Cause(cause)] = uint32(count)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: list causes: %w", err)
	}

	return games, nil
}
