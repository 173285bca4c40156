package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/bookhive/backend/pkg/logger"
)

// Task is one unit of background fan-out work. Run must be idempotent:
// a task that fails mid-way is retried whole.
type Task struct {
	Name string
	Run  func(ctx context.Context) error

	attempts int
}

// FanoutPool is a fixed-size worker pool consuming a task queue.
// Failed tasks are retried with exponential backoff up to a budget,
// then handed to the dead-letter hook. Failures never propagate to the
// code that enqueued the task.
type FanoutPool struct {
	log         *logger.Logger
	queue       chan *Task
	concurrency int
	maxAttempts int
	retryDelay  time.Duration

	wg         sync.WaitGroup
	deadLetter func(taskName string, err error)
}

func NewFanoutPool(baseLog *logger.Logger, concurrency, maxAttempts int, retryDelay time.Duration) *FanoutPool {
	if concurrency < 1 {
		concurrency = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	p := &FanoutPool{
		log:         baseLog.With("component", "FanoutPool"),
		queue:       make(chan *Task, 256),
		concurrency: concurrency,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
	p.deadLetter = func(taskName string, err error) {
		p.log.Error("Task exhausted retry budget, dead-lettered", "task", taskName, "error", err)
	}
	return p
}

// OnDeadLetter replaces the default dead-letter handler. Must be called
// before Start.
func (p *FanoutPool) OnDeadLetter(fn func(taskName string, err error)) {
	if fn != nil {
		p.deadLetter = fn
	}
}

// Start launches the workers. They stop when ctx is cancelled.
func (p *FanoutPool) Start(ctx context.Context) {
	p.log.Info("Starting fan-out worker pool", "concurrency", p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		workerID := i + 1
		go p.runLoop(ctx, workerID)
	}
}

// Enqueue submits a task. It never blocks the caller: when the queue is
// full the task is dead-lettered immediately.
func (p *FanoutPool) Enqueue(name string, run func(ctx context.Context) error) {
	task := &Task{Name: name, Run: run}
	p.wg.Add(1)
	select {
	case p.queue <- task:
	default:
		p.wg.Done()
		p.deadLetter(name, fmt.Errorf("task queue full"))
	}
}

// Wait blocks until every enqueued task has finished terminally
// (succeeded or dead-lettered). Used by tests and graceful shutdown.
func (p *FanoutPool) Wait() {
	p.wg.Wait()
}

func (p *FanoutPool) runLoop(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			p.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case task := <-p.queue:
			p.process(ctx, workerID, task)
		}
	}
}

func (p *FanoutPool) process(ctx context.Context, workerID int, task *Task) {
	defer p.wg.Done()

	for {
		task.attempts++
		err := p.runOnce(ctx, task)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			p.deadLetter(task.Name, ctx.Err())
			return
		}
		if task.attempts >= p.maxAttempts {
			p.deadLetter(task.Name, err)
			return
		}

		delay := p.retryDelay << (task.attempts - 1)
		p.log.Warn("Task failed, retrying",
			"worker_id", workerID,
			"task", task.Name,
			"attempt", task.attempts,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			p.deadLetter(task.Name, ctx.Err())
			return
		case <-time.After(delay):
		}
	}
}

func (p *FanoutPool) runOnce(ctx context.Context, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task.Run(ctx)
}
