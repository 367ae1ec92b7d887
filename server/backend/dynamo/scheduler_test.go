package dynamo

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCronJobScheduler(t *testing.T) {
	t.Run("runs immediately then on the interval", func(t *testing.T) {
		scheduler := NewCronJobScheduler(zap.NewNop().Sugar())
		var runs atomic.Int32

		job, err := scheduler.Schedule("test", time.Second, func() { runs.Add(1) })
		require.NoError(t, err)
		defer func() { _ = job.Close() }()

		require.Eventually(t, func() bool { return runs.Load() >= 1 }, 500*time.Millisecond, 5*time.Millisecond)
		require.Eventually(t, func() bool { return runs.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)
	})

	t.Run("close stops further runs", func(t *testing.T) {
		scheduler := NewCronJobScheduler(zap.NewNop().Sugar())
		var runs atomic.Int32

		job, err := scheduler.Schedule("test", time.Second, func() { runs.Add(1) })
		require.NoError(t, err)
		require.Eventually(t, func() bool { return runs.Load() >= 1 }, 500*time.Millisecond, 5*time.Millisecond)

		require.NoError(t, job.Close())
		require.NoError(t, job.Close(), "close is idempotent")
		after := runs.Load()
		time.Sleep(1500 * time.Millisecond)
		assert.Equal(t, after, runs.Load())
	})

	t.Run("overlapping runs are skipped", func(t *testing.T) {
		scheduler := NewCronJobScheduler(zap.NewNop().Sugar())
		var running, peak atomic.Int32
		release := make(chan struct{})

		job, err := scheduler.Schedule("slow", time.Second, func() {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		})
		require.NoError(t, err)

		time.Sleep(2500 * time.Millisecond)
		close(release)
		require.NoError(t, job.Close())
		assert.Equal(t, int32(1), peak.Load())
	})

	t.Run("close waits for the first run", func(t *testing.T) {
		scheduler := NewCronJobScheduler(zap.NewNop().Sugar())
		started := make(chan struct{})
		release := make(chan struct{})
		var finished atomic.Bool

		job, err := scheduler.Schedule("first", time.Hour, func() {
			close(started)
			<-release
			finished.Store(true)
		})
		require.NoError(t, err)
		<-started

		closed := make(chan struct{})
		go func() {
			_ = job.Close()
			close(closed)
		}()

		select {
		case <-closed:
			t.Fatal("Close returned while the first run was still going")
		case <-time.After(100 * time.Millisecond):
		}

		close(release)
		select {
		case <-closed:
		case <-time.After(time.Second):
			t.Fatal("Close did not return after the run finished")
		}
		assert.True(t, finished.Load())
	})

	t.Run("no runs start after close", func(t *testing.T) {
		scheduler := NewCronJobScheduler(zap.NewNop().Sugar())
		var runs atomic.Int32

		job, err := scheduler.Schedule("closed", time.Hour, func() { runs.Add(1) })
		require.NoError(t, err)
		require.NoError(t, job.Close())

		cj := job.(*cronJob)
		cj.run()
		assert.LessOrEqual(t, runs.Load(), int32(1), "only the immediate run may have fired before close")
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		scheduler := NewCronJobScheduler(zap.NewNop().Sugar())
		_, err := scheduler.Schedule("bad", 0, func() {})
		assert.ErrorContains(t, err, "invalid interval")
	})
}
