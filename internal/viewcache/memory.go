// Package viewcache caches rendered schedule views per user, in process or in Redis.
package viewcache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	payload []byte
	expires time.Time
}

// Memory is an in-process cache with a fixed time to live.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]entry
}

// NewMemory creates an in-process cache whose entries expire after ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		mu:      sync.Mutex{},
		ttl:     ttl,
		now:     time.Now,
		entries: map[int64]entry{},
	}
}

// Get returns the payload stored for userID unless it has expired.
func (m *Memory) Get(_ context.Context, userID int64) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, userID)
		return nil, false, nil
	}
	return e.payload, true, nil
}

// Set stores a copy of payload for the cache TTL.
func (m *Memory) Set(_ context.Context, userID int64, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = entry{
		payload: append([]byte(nil), payload...),
		expires: m.now().Add(m.ttl),
	}
	return nil
}

// Invalidate drops the entry of userID.
func (m *Memory) Invalidate(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}
