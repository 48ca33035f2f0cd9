package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Store persists run states by token.
type Store interface {
	Load(ctx context.Context, token string) (*RunState, error)
	Save(ctx context.Context, token string, st *RunState) error
	Delete(ctx context.Context, token string) error
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps encoded states in process memory with an optional TTL.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a store; ttl <= 0 disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: map[string]memoryEntry{},
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Load(ctx context.Context, token string) (*RunState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	e, ok := m.entries[token]
	if ok && !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, token)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var st RunState
	if err := json.Unmarshal(e.data, &st); err != nil {
		return nil, fmt.Errorf("decode run state: %w", err)
	}
	return &st, nil
}

func (m *MemoryStore) Save(ctx context.Context, token string, st *RunState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode run state: %w", err)
	}
	e := memoryEntry{data: data}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[token] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	delete(m.entries, token)
	m.mu.Unlock()
	return nil
}

// Prune drops expired entries and returns how many were removed.
func (m *MemoryStore) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for token, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, token)
			removed++
		}
	}
	return removed
}

// Len is the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
