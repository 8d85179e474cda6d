package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsBadExpression(t *testing.T) {
	cr := NewCron(time.UTC, 0)
	_, err := cr.AddWithCtx("catalog-refresh", "not a schedule", func(context.Context) {})
	assert.ErrorContains(t, err, "catalog-refresh")
}

func TestEntriesAndRun(t *testing.T) {
	cr := NewCron(time.UTC, time.Second)
	var runs atomic.Int32
	var sawDeadline atomic.Bool
	id, err := cr.AddWithCtx("tick", "@every 1s", func(ctx context.Context) {
		_, ok := ctx.Deadline()
		sawDeadline.Store(ok)
		runs.Add(1)
	})
	require.NoError(t, err)
	require.Len(t, cr.Entries(), 1)
	assert.Equal(t, id, cr.Entries()[0].ID)

	// 直接调用包装后的任务，不等真实调度
	cr.Entries()[0].WrappedJob.Run()
	assert.Equal(t, int32(1), runs.Load())
	assert.True(t, sawDeadline.Load())

	cr.Start()
	cr.Stop()
}
