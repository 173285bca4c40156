package workers

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/anonto42/bookhive/backend/pkg/logger"
)

func startPool(t *testing.T, concurrency, maxAttempts int) *FanoutPool {
	t.Helper()
	pool := NewFanoutPool(logger.NewNop(), concurrency, maxAttempts, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pool.Start(ctx)
	return pool
}

func TestPoolRunsTasks(t *testing.T) {
	pool := startPool(t, 2, 3)

	var ran int64
	for i := 0; i < 20; i++ {
		pool.Enqueue(fmt.Sprintf("task-%d", i), func(context.Context) error {
			atomic.AddInt64(&ran, 1)
			return nil
		})
	}
	pool.Wait()

	assert.Equal(t, int64(20), atomic.LoadInt64(&ran))
}

func TestPoolRetriesUntilSuccess(t *testing.T) {
	pool := startPool(t, 1, 3)

	var attempts int64
	pool.Enqueue("flaky", func(context.Context) error {
		if atomic.AddInt64(&attempts, 1) < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	pool.Wait()

	assert.Equal(t, int64(3), atomic.LoadInt64(&attempts))
}

func TestPoolDeadLettersAfterRetryBudget(t *testing.T) {
	pool := NewFanoutPool(logger.NewNop(), 1, 2, time.Millisecond)

	var dead atomic.Value
	pool.OnDeadLetter(func(taskName string, err error) {
		dead.Store(taskName)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	var attempts int64
	pool.Enqueue("doomed", func(context.Context) error {
		atomic.AddInt64(&attempts, 1)
		return fmt.Errorf("permanent")
	})
	pool.Wait()

	assert.Equal(t, int64(2), atomic.LoadInt64(&attempts), "retry budget is respected")
	assert.Equal(t, "doomed", dead.Load())
}

func TestPoolRecoversFromPanic(t *testing.T) {
	pool := NewFanoutPool(logger.NewNop(), 1, 1, time.Millisecond)

	var dead atomic.Value
	pool.OnDeadLetter(func(taskName string, err error) {
		dead.Store(err.Error())
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	pool.Enqueue("panicky", func(context.Context) error {
		panic("boom")
	})
	pool.Wait()

	assert.Contains(t, dead.Load(), "boom")

	// The worker survived and keeps serving
	var ran int64
	pool.Enqueue("after", func(context.Context) error {
		atomic.AddInt64(&ran, 1)
		return nil
	})
	pool.Wait()
	assert.Equal(t, int64(1), atomic.LoadInt64(&ran))
}

func TestPoolFullQueueDeadLettersImmediately(t *testing.T) {
	// Never started: the queue fills and overflow dead-letters at Enqueue
	pool := NewFanoutPool(logger.NewNop(), 1, 1, time.Millisecond)

	var overflowed int64
	pool.OnDeadLetter(func(string, error) {
		atomic.AddInt64(&overflowed, 1)
	})

	for i := 0; i < 300; i++ {
		pool.Enqueue(fmt.Sprintf("task-%d", i), func(context.Context) error { return nil })
	}

	assert.Equal(t, int64(300-256), atomic.LoadInt64(&overflowed))
}
