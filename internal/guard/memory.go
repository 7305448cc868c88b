package guard

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Guard for single-instance deployments.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	seq   uint64
	holds map[string]memoryHold
}

type memoryHold struct {
	seq     uint64
	expires time.Time
}

var _ Guard = (*Memory)(nil)

// NewMemory creates a guard whose holds expire after ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, holds: make(map[string]memoryHold)}
}

// Acquire takes key unless an unexpired hold exists.
func (m *Memory) Acquire(_ context.Context, key string) (ReleaseFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if h, ok := m.holds[key]; ok && now.Before(h.expires) {
		return nil, ErrHeld
	}

	m.seq++
	seq := m.seq
	m.holds[key] = memoryHold{seq: seq, expires: now.Add(m.ttl)}

	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		// An expired hold may have been taken over; only drop our own.
		if h, ok := m.holds[key]; ok && h.seq == seq {
			delete(m.holds, key)
		}
		return nil
	}, nil
}
