package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock allows injecting time and deferred callbacks in services.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func())
}

type systemClock struct{}

// NewSystem returns a clock backed by the time package.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func (systemClock) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// Manual is a clock that only moves when Advance is called (useful for tests).
// Callbacks whose deadline is reached run synchronously inside Advance, in
// deadline order.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	pending []timer
}

type timer struct {
	at time.Time
	f  func()
}

func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, timer{at: m.now.Add(d), f: f})
}

// Advance moves the clock forward by d and fires every due callback.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now

	var due, rest []timer
	for _, t := range m.pending {
		if !t.at.After(now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	m.pending = rest
	m.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// Pending reports how many callbacks are armed and not yet fired.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
