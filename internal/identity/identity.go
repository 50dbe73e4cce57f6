// Package identity maps usernames to stable sequential ids that survive
// server restarts. Records are created the first time a name is seen and
// never mutated or deleted afterwards.
package identity

import (
	"context"
	"sync"
)

// Store is the durable username-to-id mapping.
type Store interface {
	// LookupOrCreate returns the id for username, allocating the next
	// sequential id if the name has not been seen before. Safe for
	// concurrent use by every session.
	LookupOrCreate(ctx context.Context, username string) (int64, error)

	// CountUsers reports how many usernames have been recorded.
	CountUsers(ctx context.Context) (int64, error)

	// Close releases the underlying storage.
	Close() error
}

// Memory is an in-process Store. It backs the server when durable storage
// cannot be opened at startup, and tests. Ids start at 1.
type Memory struct {
	mu  sync.Mutex
	ids map[string]int64
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{ids: make(map[string]int64)}
}

func (m *Memory) LookupOrCreate(_ context.Context, username string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.ids[username]; ok {
		return id, nil
	}
	id := int64(len(m.ids) + 1)
	m.ids[username] = id
	return id, nil
}

func (m *Memory) CountUsers(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.ids)), nil
}

func (m *Memory) Close() error { return nil }
