// Package eventbus is an in-process fan-out for lifecycle signals
// (broadcast jobs, config reloads, ownership changes).
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	BroadcastStarted  = "broadcast.started"
	BroadcastFinished = "broadcast.finished"
	OwnerClaimed      = "owner.claimed"
	ConfigReloaded    = "config.reloaded"
)

// Event is a small in-memory signal.
//
// Publish never blocks; a subscriber whose buffer is full misses the event.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a fan-out bus without background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]*sub{}}
}

type sub struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]*sub
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	subs := make([]*sub, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.mu.Lock()
		if !s.closed {
			select {
			case s.ch <- e:
			default:
			}
		}
		s.mu.Unlock()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &sub{ch: make(chan Event, buffer)}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			s.mu.Lock()
			s.closed = true
			close(s.ch)
			s.mu.Unlock()
		})
	}
}
