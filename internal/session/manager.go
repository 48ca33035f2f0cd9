package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soaringjerry/maat/internal/logging"
)

// lockEntry holds the per-token mutex and its reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to run states so the read-modify-write of the
// trial index is atomic per token. Unused locks are garbage collected by
// reference counting.
type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  Locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker adds a cross-process lock around each update.
func WithLocker(locker Locker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = locker
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger sets the logger for deferred lock release failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager wraps store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: 10 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) acquire(token string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.locks[token]
	if !ok {
		entry = &lockEntry{}
		m.locks[token] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.locks[token]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, token)
	}
}

// WithLock runs fn while holding the token's lock.
func (m *Manager) WithLock(ctx context.Context, token string, fn func(context.Context) error) error {
	entry := m.acquire(token)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(token)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, token, m.lockTTL)
		if err != nil {
			return err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("release run session lock failed; it will expire",
					"err", err,
				)
			}
		}()
	}
	return fn(ctx)
}

// Get loads the state for token; ErrNotFound when absent.
func (m *Manager) Get(ctx context.Context, token string) (*RunState, error) {
	var st *RunState
	err := m.WithLock(ctx, token, func(ctx context.Context) error {
		var err error
		st, err = m.store.Load(ctx, token)
		return err
	})
	return st, err
}

// Update loads the current state (nil when absent), applies fn and saves the
// state fn returns. A nil result or an error from fn leaves storage untouched.
func (m *Manager) Update(ctx context.Context, token string, fn func(ctx context.Context, current *RunState) (*RunState, error)) (*RunState, error) {
	var out *RunState
	err := m.WithLock(ctx, token, func(ctx context.Context) error {
		current, err := m.store.Load(ctx, token)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("load run state: %w", err)
		}
		next, err := fn(ctx, current)
		if err != nil {
			return err
		}
		if next == nil {
			out = current
			return nil
		}
		if err := m.store.Save(ctx, token, next); err != nil {
			return fmt.Errorf("save run state: %w", err)
		}
		out = next
		return nil
	})
	return out, err
}

// Delete removes the state for token.
func (m *Manager) Delete(ctx context.Context, token string) error {
	return m.WithLock(ctx, token, func(ctx context.Context) error {
		return m.store.Delete(ctx, token)
	})
}
