// pantry/throttle/memory.go
package throttle

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Store: a map of key to the time the key was
// last allowed. State is lost on restart and not shared across instances.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type memEntry struct {
	expires time.Time
}

// NewMemory returns a Memory store that sweeps expired keys every
// sweepEvery (default one minute). Call Close to stop the sweeper.
func NewMemory(sweepEvery time.Duration) *Memory {
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	m := &Memory{
		entries: make(map[string]memEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go m.sweep(sweepEvery)
	return m
}

// Allow implements Store.
func (m *Memory) Allow(_ context.Context, key string, window time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	if window <= 0 {
		return true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expires) {
		return false, nil
	}
	m.entries[key] = memEntry{expires: now.Add(window)}
	return true, nil
}

// Len returns the number of tracked keys, expired ones included until swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops the sweeper. Safe to call more than once.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *Memory) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *Memory) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
