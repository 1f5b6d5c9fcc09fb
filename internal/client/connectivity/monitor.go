// Package connectivity tracks whether the note store is reachable and
// tells subscribers when that changes.
package connectivity

import (
	"context"
	"sync"
	"time"
)

type Event int

const (
	BecameOffline Event = iota
	BecameOnline
)

func (e Event) String() string {
	if e == BecameOnline {
		return "online"
	}
	return "offline"
}

// Monitor holds the current reachability. Set is its only mutator.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   map[int]chan Event
	nextID int
}

func NewMonitor(initial bool) *Monitor {
	return &Monitor{online: initial, subs: make(map[int]chan Event)}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records the observed state. Subscribers are notified only when it
// differs from the previous one; the return value reports a transition.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return false
	}
	m.online = online

	ev := BecameOffline
	if online {
		ev = BecameOnline
	}
	for _, ch := range m.subs {
		// Slow subscribers only need the latest state.
		select {
		case <-ch:
		default:
		}
		ch <- ev
	}
	return true
}

// Subscribe returns a channel of transitions and a function that
// unsubscribes and closes it.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Event, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// Prober checks whether the remote store answers.
type Prober interface {
	Ping(ctx context.Context) error
}

// Watch probes p immediately and then every interval, feeding the result
// to m until ctx is done.
func Watch(ctx context.Context, m *Monitor, p Prober, interval, timeout time.Duration) {
	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Ping(pctx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		m.Set(err == nil)
	}

	probe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			probe()
		case <-ctx.Done():
			return
		}
	}
}
