package taskregistry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterReplacesRunningTask(t *testing.T) {
	r := New()
	ctx := context.Background()

	id1, tctx1 := r.Register(ctx, "u1", "scrape")
	id2, tctx2 := r.Register(ctx, "u1", "scrape")

	require.NotEqual(t, id1, id2)
	assert.Error(t, tctx1.Err(), "first task must be cancelled on replacement")
	assert.NoError(t, tctx2.Err())
	assert.Len(t, r.Running(), 1)
}

func TestDoneIsKeyedByHandle(t *testing.T) {
	r := New()
	ctx := context.Background()

	id1, _ := r.Register(ctx, "u1", "scrape")
	id2, tctx2 := r.Register(ctx, "u1", "scrape")

	// stale handle must not remove the successor
	r.Done("u1", "scrape", id1)
	assert.Len(t, r.Running(), 1)
	assert.NoError(t, tctx2.Err())

	r.Done("u1", "scrape", id2)
	assert.Empty(t, r.Running())
}

func TestCancel(t *testing.T) {
	r := New()
	_, tctx := r.Register(context.Background(), "u1", "inbox_sync")

	assert.True(t, r.Cancel("u1", "inbox_sync"))
	assert.Error(t, tctx.Err())
	assert.False(t, r.Cancel("u1", "inbox_sync"), "already removed")
}

func TestCancelUser(t *testing.T) {
	r := New()
	ctx := context.Background()
	r.Register(ctx, "u1", "scrape")
	r.Register(ctx, "u1", "inbox_sync")
	r.Register(ctx, "u2", "scrape")

	assert.Equal(t, 2, r.CancelUser("u1"))
	assert.Len(t, r.Running(), 1)
	assert.Equal(t, "u2", r.Running()[0].UserID)
}

func TestSweep(t *testing.T) {
	r := New()
	ctx := context.Background()
	r.Register(ctx, "u1", "scrape")

	assert.Zero(t, r.Sweep(time.Hour))
	assert.Equal(t, 1, r.Sweep(-time.Second), "everything is older than a negative age")
	assert.Empty(t, r.Running())
}
