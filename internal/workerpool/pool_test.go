package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	pool := New(context.Background(), 3, nil)
	pool.Start()

	var count atomic.Int32
	for i := 0; i < 50; i++ {
		ok := pool.Submit(func(ctx context.Context) error {
			count.Add(1)
			return nil
		})
		assert.True(t, ok)
	}
	pool.Wait()

	assert.Equal(t, int32(50), count.Load())
}

func TestWorkerPool_TaskErrorDoesNotStopOthers(t *testing.T) {
	pool := New(context.Background(), 2, nil)
	pool.Start()

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		i := i
		pool.Submit(func(ctx context.Context) error {
			count.Add(1)
			if i%2 == 0 {
				return errors.New("boom")
			}
			return nil
		})
	}
	pool.Wait()

	assert.Equal(t, int32(10), count.Load())
}

func TestWorkerPool_SubmitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := New(ctx, 1, nil)
	cancel()

	// queue has spare capacity, so either outcome is allowed, but nothing may run
	var ran atomic.Bool
	pool.Start()
	pool.Submit(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	pool.Wait()

	assert.False(t, ran.Load())
}

func TestWorkerPool_WaitIsIdempotent(t *testing.T) {
	pool := New(context.Background(), 1, nil)
	pool.Start()
	pool.Wait()
	assert.NotPanics(t, pool.Wait)
	assert.NotPanics(t, pool.Shutdown)
}
