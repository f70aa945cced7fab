package hrsync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

// blockingFetcher holds every request until release is closed or the run is
// cancelled.
type blockingFetcher struct {
	release chan struct{}
	calls   atomic.Int32
}

func (f *blockingFetcher) FetchEmployeeRange(ctx context.Context, _, _ string) ([]Employee, error) {
	f.calls.Add(1)
	select {
	case <-f.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestTrigger_SecondCallWhileRunning(t *testing.T) {
	fetcher := &blockingFetcher{release: make(chan struct{})}
	syncer, _ := newTestSyncer(t, fetcher)
	sched := NewScheduler(syncer, zap.NewNop())
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })

	require.NoError(t, sched.Trigger())
	assert.True(t, syncer.Running())
	assert.ErrorIs(t, sched.Trigger(), ErrSyncInProgress)

	close(fetcher.release)
	require.Eventually(t, func() bool { return !syncer.Running() && syncer.LastSummary() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, syncer.LastSummary().Degraded)

	require.NoError(t, sched.Trigger())
	require.Eventually(t, func() bool { return !syncer.Running() }, 2*time.Second, 10*time.Millisecond)
}

func TestStop_CancelsTriggeredRunWithoutInterval(t *testing.T) {
	fetcher := &blockingFetcher{release: make(chan struct{})}
	syncer, _ := newTestSyncer(t, fetcher)
	syncer.cfg.SyncInterval = 0
	sched := NewScheduler(syncer, zap.NewNop())

	lc := fxtest.NewLifecycle(t)
	sched.StartScheduler(lc)
	lc.RequireStart()

	require.NoError(t, sched.Trigger())
	require.Eventually(t, func() bool { return fetcher.calls.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	lc.RequireStop()
	assert.False(t, syncer.Running())
	require.NotNil(t, syncer.LastSummary())
	assert.True(t, syncer.LastSummary().Degraded)
}
