package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/catalog"
)

// Cause identifies which trigger source produced a media change.
type Cause string

// Trigger causes.
const (
	CauseHTTP   Cause = "http_trigger"
	CauseSocket Cause = "socket_trigger"
	CauseFile   Cause = "file_trigger"
	CauseScene  Cause = "scene_change"
	CauseMQTT   Cause = "mqtt_trigger"
	CauseStop   Cause = "stop_request"
)

// Event is a bus event. Exactly one of the concrete types below.
type Event interface {
	event()
}

// MediaChanged announces an accepted display-state change. Current is
// empty after a stop.
type MediaChanged struct {
	Previous  string
	Current   string
	MediaType catalog.Kind
	Cause     Cause
	Message   string
}

func (MediaChanged) event() {}

// SceneObserved announces that the remote tool reported a scene. It does
// not by itself change the display state.
type SceneObserved struct {
	Scene string
	TS    int64
}

func (SceneObserved) event() {}

type subscriber struct {
	ch chan Event
}

// Bus fans events out to subscribers through a single dispatch
// goroutine, so every subscriber sees events in publish order.
type Bus struct {
	log *zap.Logger
	in  chan Event

	mu   sync.Mutex
	subs []*subscriber
}

// New creates a bus. Run must be started for events to flow.
func New(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		log: log,
		in:  make(chan Event, 256),
	}
}

// Publish enqueues an event for dispatch.
func (b *Bus) Publish(ev Event) {
	b.in <- ev
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber goes away. A subscriber that stops draining
// its channel loses events rather than stalling the bus.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, 32)}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s == sub {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				close(sub.ch)
				return
			}
		}
	}
	return sub.ch, cancel
}

// Run dispatches events until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.in:
			b.dispatch(ev)
		}
	}
}

func (b *Bus) dispatch(ev Event) {
	b.mu.Lock()
	subs := make([]*subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		default:
			b.log.Warn("subscriber behind, dropping event")
		}
	}
}
