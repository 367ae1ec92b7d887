package dynamo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("empty state", func(t *testing.T) {
		store, _ := newTestKV(t)
		state := NewStateStore(store, "backend-1")

		lastPoll, err := state.GetLastPoll(ctx)
		require.NoError(t, err)
		assert.True(t, lastPoll.IsZero())

		failures, err := state.GetFailures(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, failures)

		lastError, err := state.GetLastError(ctx)
		require.NoError(t, err)
		assert.Empty(t, lastError)
	})

	t.Run("times round trip", func(t *testing.T) {
		store, _ := newTestKV(t)
		state := NewStateStore(store, "backend-1")
		ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

		require.NoError(t, state.SaveLastPoll(ctx, ts))
		require.NoError(t, state.SaveLastSuccess(ctx, ts.Add(time.Second)))

		lastPoll, err := state.GetLastPoll(ctx)
		require.NoError(t, err)
		assert.True(t, ts.Equal(lastPoll))

		lastSuccess, err := state.GetLastSuccess(ctx)
		require.NoError(t, err)
		assert.True(t, ts.Add(time.Second).Equal(lastSuccess))
	})

	t.Run("failure counter", func(t *testing.T) {
		store, _ := newTestKV(t)
		state := NewStateStore(store, "backend-1")

		for want := 1; want <= 3; want++ {
			got, err := state.IncrementFailures(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		require.NoError(t, state.ResetFailures(ctx))
		failures, err := state.GetFailures(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, failures)
	})

	t.Run("keys are scoped per backend and cleared", func(t *testing.T) {
		store, mr := newTestKV(t)
		one := NewStateStore(store, "backend-1")
		two := NewStateStore(store, "backend-2")

		require.NoError(t, one.SaveLastError(ctx, "boom"))
		assert.True(t, mr.Exists("backend_backend-1_last_error"))

		lastError, err := two.GetLastError(ctx)
		require.NoError(t, err)
		assert.Empty(t, lastError)

		require.NoError(t, one.ClearAll(ctx))
		assert.False(t, mr.Exists("backend_backend-1_last_error"))
	})

	t.Run("corrupt value", func(t *testing.T) {
		store, mr := newTestKV(t)
		state := NewStateStore(store, "backend-1")
		require.NoError(t, mr.Set("backend_backend-1_failures", "not-json"))

		_, err := state.GetFailures(ctx)
		assert.ErrorContains(t, err, "failed to unmarshal failures count")
	})
}
