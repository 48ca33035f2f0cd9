package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/maat/internal/session"
)

type countingPruner struct{ calls atomic.Int32 }

func (c *countingPruner) Prune(time.Time) int {
	c.calls.Add(1)
	return 0
}

func TestPruneEveryRejectsZero(t *testing.T) {
	s := New(nil, nil)
	assert.Error(t, s.PruneEvery(0, &countingPruner{}))
	assert.Equal(t, 0, s.Jobs())
}

func TestPruneRunsOnStart(t *testing.T) {
	s := New(nil, nil)
	p := &countingPruner{}
	require.NoError(t, s.PruneEvery(time.Hour, p))
	assert.Equal(t, 1, s.Jobs())

	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool { return p.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestPruneDropsExpiredSessions(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)
	require.NoError(t, store.Save(context.Background(), "tok", &session.RunState{Status: session.StatusRunning}))

	s := New(nil, nil)
	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	s.prune(store)
	assert.Equal(t, 0, store.Len())
}
