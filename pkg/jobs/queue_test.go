package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var handled int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&handled, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "export"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&handled))
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var attempts int32
	var mu sync.Mutex
	var gaveUp *Job
	finished := make(chan struct{})

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("render failed")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnGiveUp: func(ctx context.Context, job Job, err error) {
			mu.Lock()
			gaveUp = &job
			mu.Unlock()
			close(finished)
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "export"}))

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for give up")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, gaveUp)
	assert.Equal(t, "job-1", gaveUp.ID)
}

func TestQueueRecoversFromPanic(t *testing.T) {
	finished := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		panic("boom")
	}, QueueConfig{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		OnGiveUp: func(ctx context.Context, job Job, err error) {
			assert.Contains(t, err.Error(), "panicked")
			close(finished)
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "x"}))
}

func TestQueueTimeoutCancelsHandlerContext(t *testing.T) {
	finished := make(chan error, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		<-ctx.Done()
		return ctx.Err()
	}, QueueConfig{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		Timeout:    10 * time.Millisecond,
		OnGiveUp: func(ctx context.Context, job Job, err error) {
			finished <- err
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "slow"}))
	select {
	case err := <-finished:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	assert.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, 5*time.Millisecond)
}
