package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/q3log/internal/domain"
	"github.com/victornm/q3log/internal/errors"
	"github.com/victornm/q3log/internal/event"
	"github.com/victornm/q3log/internal/ingest"
)

const twoGames = `  0:00 InitGame: \sv_floodProtect\1\sv_maxPing\0
 20:34 ClientConnect: 2
 20:34 ClientUserinfoChanged: 2 n\Isgalamido\t\0\model\xian/default
 20:37 ClientConnect: 3
 20:37 ClientUserinfoChanged: 3 n\Mocinha\t\0\model\sarge
 20:54 Kill: 1022 2 22: <world> killed Isgalamido by MOD_TRIGGER_HURT
 21:07 Kill: 2 3 7: Isgalamido killed Mocinha by MOD_ROCKET_SPLASH
 21:10 Kill: 2 3 7: Isgalamido killed Mocinha by MOD_ROCKET_SPLASH
 21:15 ShutdownGame:
 21:15 ------------------------------------------------------------
  0:00 InitGame: \sv_floodProtect\1
  0:25 ClientConnect: 2
  0:27 ClientUserinfoChanged: 2 n\Dono da Bola\t\0
  1:02 ShutdownGame:
`

func TestService_Ingest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.log")
	require.NoError(t, os.WriteFile(path, []byte(twoGames), 0o600))

	eb := event.NewBus()

	var (
		mu        sync.Mutex
		published []domain.EventGameCompleted
	)
	eb.Subscribe(domain.EventNameGameCompleted, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		published = append(published, e.(domain.EventGameCompleted))
		mu.Unlock()
		return nil
	})

	s := ingest.NewService(ingest.Config{EventBus: eb})

	run, err := s.Ingest(context.Background(), ingest.IngestRequest{Path: path})
	require.NoError(t, err)
	eb.Stop()

	id, err := uuid.Parse(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, path, run.Source)

	require.Len(t, run.Games, 2)
	assert.Equal(t, domain.Game{
		TotalKills: 3,
		KillsByCause: map[domain.Cause]uint32{
			domain.CauseTriggerHurt:  1,
			domain.CauseRocketSplash: 2,
		},
		Players: map[uint32]domain.PlayerData{
			2: {Name: "Isgalamido", Kills: 1},
			3: {Name: "Mocinha", Kills: 0},
		},
	}, run.Games[0])
	assert.Equal(t, domain.Game{
		KillsByCause: map[domain.Cause]uint32{},
		Players:      map[uint32]domain.PlayerData{2: {Name: "Dono da Bola"}},
	}, run.Games[1])

	require.Len(t, published, 2)
	numbers := []int{published[0].Number, published[1].Number}
	assert.ElementsMatch(t, []int{1, 2}, numbers)
	for _, e := range published {
		assert.Equal(t, run.RunID, e.RunID)
		assert.Equal(t, run.Games[e.Number-1], e.Game)
	}

	current, err := s.Current()
	require.NoError(t, err)
	assert.Same(t, run, current)
}

func TestService_IngestErrors(t *testing.T) {
	tests := map[string]struct {
		ingest   func(s *ingest.Service) error
		wantCode errors.Code
	}{
		"missing file": {
			ingest: func(s *ingest.Service) error {
				_, err := s.Ingest(context.Background(), ingest.IngestRequest{
					Path: filepath.Join(t.TempDir(), "missing.log"),
				})
				return err
			},
			wantCode: errors.CodeIOFailure,
		},
		"malformed log": {
			ingest: func(s *ingest.Service) error {
				_, err := s.IngestReader(context.Background(), "inline", strings.NewReader("  1:00 Kill: 2 x 7: a killed b\n"))
				return err
			},
			wantCode: errors.CodeMalformedNumber,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := ingest.NewService(ingest.Config{EventBus: event.NewBus()})

			err := tt.ingest(s)
			require.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)

			_, err = s.Current()
			require.True(t, errors.HasCode(err, errors.CodeNotFound), "a failed ingest must not become the current run")
		})
	}
}

func TestService_GetGame(t *testing.T) {
	s := ingest.NewService(ingest.Config{})

	_, err := s.GetGame(context.Background(), ingest.GetGameRequest{Number: 1})
	require.True(t, errors.HasCode(err, errors.CodeNotFound), "got %v", err)

	_, err = s.IngestReader(context.Background(), "inline", strings.NewReader(twoGames))
	require.NoError(t, err)

	g, err := s.GetGame(context.Background(), ingest.GetGameRequest{Number: 2})
	require.NoError(t, err)
	assert.Equal(t, "Dono da Bola", g.Players[2].Name)

	for _, n := range []int{0, 3, -1} {
		_, err := s.GetGame(context.Background(), ingest.GetGameRequest{Number: n})
		require.True(t, errors.HasCode(err, errors.CodeNotFound), "game %d: got %v", n, err)
	}
}
