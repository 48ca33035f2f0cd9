package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/soaringjerry/maat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *session.RunState {
	return session.NewRunning("run-1", 4, 9, []int64{3, 1, 2},
		session.DisplayParams{TextSize: 100, TextIncreaseSize: 120, TextDecreaseSize: 80},
		1234, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(0)

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)

	st := sampleState()
	require.NoError(t, store.Save(ctx, "tok", st))

	// Mutating the caller's copy must not leak into storage.
	st.Index = 2
	got, err := store.Load(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Index)
	assert.Equal(t, []int64{3, 1, 2}, got.TrialIDs)
	assert.Equal(t, int64(1234), got.Seed)

	require.NoError(t, store.Delete(ctx, "tok"))
	_, err = store.Load(ctx, "tok")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStore_Prune(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(time.Minute)
	require.NoError(t, store.Save(ctx, "a", sampleState()))
	require.NoError(t, store.Save(ctx, "b", sampleState()))
	assert.Equal(t, 2, store.Len())

	assert.Equal(t, 0, store.Prune(time.Now()))
	assert.Equal(t, 2, store.Prune(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, store.Len())
}

func TestRedisStore_RoundTripAndTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	store := session.NewRedisStore(mr.Addr(), "", 0, session.WithTTL(time.Hour), session.WithPrefix("test:run:"))
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	_, err = store.Load(ctx, "tok")
	assert.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, store.Save(ctx, "tok", sampleState()))
	assert.True(t, mr.Exists("test:run:tok"))
	assert.Equal(t, time.Hour, mr.TTL("test:run:tok"))

	got, err := store.Load(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, session.StatusRunning, got.Status)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 100, got.Params.TextSize)

	mr.FastForward(2 * time.Hour)
	_, err = store.Load(ctx, "tok")
	assert.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, store.Save(ctx, "tok", sampleState()))
	require.NoError(t, store.Delete(ctx, "tok"))
	assert.False(t, mr.Exists("test:run:tok"))
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := session.NewRedisStore(mr.Addr(), "", 0)
	defer store.Close()
	locker := session.NewRedisLocker(store.Client(), "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "tok", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:tok"))

	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(short, "tok", 5*time.Second)
	assert.ErrorIs(t, err, session.ErrLockAcquire)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:tok"))

	unlock2, err := locker.Lock(ctx, "tok", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := session.NewRedisStore(mr.Addr(), "", 0)
	defer store.Close()
	locker := session.NewRedisLocker(store.Client(), "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "tok", time.Second)
	require.NoError(t, err)

	// Expire our lock and let another holder take it.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("test:lock:tok", "someone-else"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get("test:lock:tok")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
