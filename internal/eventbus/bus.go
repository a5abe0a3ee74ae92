package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is a lightweight in-memory signal decoupling the scheduler from its
// consumers: the scheduler publishes run outcomes and registration changes,
// the history recorder and status surfaces consume them.
//
// Contract:
//   - Publish MUST be non-blocking; the tick loop calls it inline.
//   - Subscribers MUST drain their channel; slow subscribers lose events.
//
// Data should be small (scheduler.RunEvent, an item id) and stay
// JSON-serializable.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())

	// Dropped reports how many events were lost to full subscriber buffers.
	// A growing value means a consumer is not keeping up with the tick rate.
	Dropped() uint64
}

// defaultBuffer sizes subscriptions that pass buffer <= 0. One tick can emit
// a handful of events; a few seconds of slack is plenty.
const defaultBuffer = 8

// New returns an in-memory fanout bus. It owns no background goroutines;
// delivery happens on the publisher's goroutine.
func New() Bus {
	return &fanout{subs: map[uint64]chan Event{}}
}

type fanout struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	seq     atomic.Uint64
	dropped atomic.Uint64
}

func (b *fanout) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot the subscriber set so no lock is held while sending.
	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		b.deliver(ch, e)
	}
}

// deliver attempts one non-blocking send. A concurrent unsubscribe may close
// the channel mid-send; the recover absorbs that race instead of taking down
// the tick loop.
func (b *fanout) deliver(ch chan Event, e Event) {
	defer func() { _ = recover() }()
	select {
	case ch <- e:
	default:
		b.dropped.Add(1)
	}
}

func (b *fanout) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// Safe because deliver recovers from send-on-closed.
			close(ch)
		})
	}
	return ch, unsub
}

func (b *fanout) Dropped() uint64 { return b.dropped.Load() }
