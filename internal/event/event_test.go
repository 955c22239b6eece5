package event_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/q3log/internal/domain"
	"github.com/victornm/q3log/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	type (
		inputs struct {
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	completed := func(n int) event.Event {
		return domain.EventGameCompleted{RunID: "r1", Number: n}
	}
	updated := domain.EventLeaderboardUpdated{Leaderboard: domain.Leaderboard{RunID: "r1", Game: 1}}

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a subscriber only receives the events it subscribed to": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{completed(1), updated},
					subscribers: []subscriber{
						{name: "leaderboard", subscribeTo: []string{domain.EventNameGameCompleted}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{completed(1)}, out.received["leaderboard"])
			},
		},

		"every game of a run is delivered": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{completed(1), completed(2), completed(3)},
					subscribers: []subscriber{
						{name: "archive", subscribeTo: []string{domain.EventNameGameCompleted}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{completed(1), completed(2), completed(3)}, out.received["archive"])
			},
		},

		"an event is dispatched to all subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{completed(1)},
					subscribers: []subscriber{
						{name: "leaderboard", subscribeTo: []string{domain.EventNameGameCompleted}},
						{name: "archive", subscribeTo: []string{domain.EventNameGameCompleted}},
						{name: "api", subscribeTo: []string{domain.EventNameLeaderboardUpdated}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{completed(1)}, out.received["leaderboard"])
				assert.ElementsMatch(t, []event.Event{completed(1)}, out.received["archive"])
				assert.Empty(t, out.received["api"])
			},
		},

		"a subscriber can listen to several events": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{completed(1), updated, completed(2)},
					subscribers: []subscriber{
						{name: "audit", subscribeTo: []string{domain.EventNameGameCompleted, domain.EventNameLeaderboardUpdated}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{completed(1), updated, completed(2)}, out.received["audit"])
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus(event.WithPoolSize(2))
			for _, s := range in.subscribers {
				for _, e := range s.subscribeTo {
					b.Subscribe(e, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s.name] = append(out.received[s.name], e)
						mu.Unlock()
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

func TestBus_HandlerPanicIsRecovered(t *testing.T) {
	b := event.NewBus()

	var calls atomic.Int32
	b.Subscribe(domain.EventNameGameCompleted, func(ctx context.Context, e event.Event) error {
		calls.Add(1)
		panic("handler bug")
	})

	b.Publish(context.Background(), domain.EventGameCompleted{})
	b.Publish(context.Background(), domain.EventGameCompleted{})
	b.Stop()

	require.EqualValues(t, 2, calls.Load())
}

func TestBus_HandlerTimeout(t *testing.T) {
	b := event.NewBus(event.WithTimeout(10 * time.Millisecond))

	var deadline atomic.Bool
	b.Subscribe(domain.EventNameGameCompleted, func(ctx context.Context, e event.Event) error {
		<-ctx.Done()
		deadline.Store(true)
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	b.Publish(ctx, domain.EventGameCompleted{})
	cancel()
	b.Stop()

	require.True(t, deadline.Load())
}

type subscriber struct {
	name        string
	subscribeTo []string
}
