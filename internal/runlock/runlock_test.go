package runlock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/runlock"
)

func setupLocker(t *testing.T) (*miniredis.Miniredis, *runlock.RedisLocker) {
	mr := miniredis.RunT(t)
	client := runlock.NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return mr, runlock.NewRedisLocker(client, zap.NewNop())
}

func TestAcquireAndRelease(t *testing.T) {
	mr, locker := setupLocker(t)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "March 1 - March 15", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists(runlock.KeyPrefix+"March 1 - March 15"))
	assert.Equal(t, time.Minute, mr.TTL(runlock.KeyPrefix+"March 1 - March 15"))

	_, err = locker.Acquire(ctx, "March 1 - March 15", time.Minute)
	assert.ErrorIs(t, err, runlock.ErrLocked)

	// A different period is independent.
	other, err := locker.Acquire(ctx, "March 16 - March 31", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists(runlock.KeyPrefix+"March 1 - March 15"))

	again, err := locker.Acquire(ctx, "March 1 - March 15", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestReleaseAfterExpiryDoesNotDropNewHolder(t *testing.T) {
	mr, locker := setupLocker(t)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "p", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := locker.Acquire(ctx, "p", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, stale.Release(ctx), runlock.ErrNotHeld)
	assert.True(t, mr.Exists(runlock.KeyPrefix+"p"))
	require.NoError(t, fresh.Release(ctx))
}

func TestAcquireRedisDown(t *testing.T) {
	mr, locker := setupLocker(t)
	mr.Close()

	_, err := locker.Acquire(context.Background(), "p", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, runlock.ErrLocked)
}

func TestNop(t *testing.T) {
	var l runlock.Locker = runlock.Nop{}
	lease, err := l.Acquire(context.Background(), "p", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, lease.Release(context.Background()))
}
