// SPDX-License-Identifier: Apache-2.0

// Package taskqueue provides a bounded-concurrency FIFO task queue. Tasks
// start strictly in submission order, at most N run at once, and a task's
// failure never blocks the tasks behind it.
package taskqueue

import (
	"context"
	"fmt"
	"sync"

	"github.com/MKhiriev/kegsync/internal/logger"
)

// Task is one unit of queued work. The context is the queue's run context;
// it is cancelled when the queue closes.
type Task func(ctx context.Context) error

// Queue runs submitted tasks with bounded concurrency in FIFO order.
type Queue struct {
	name   string
	logger *logger.Logger

	mu      sync.Mutex
	pending []item
	running int
	limit   int
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type item struct {
	task Task
	done chan error
}

// New constructs a queue that runs at most concurrency tasks at once.
// A concurrency below 1 is treated as 1 (strictly serial).
func New(name string, concurrency int, log *logger.Logger) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		name:   name,
		logger: log,
		limit:  concurrency,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit appends task to the queue and returns a channel that delivers the
// task's result exactly once. Submitting to a closed queue delivers
// context.Canceled immediately.
func (q *Queue) Submit(task Task) <-chan error {
	done := make(chan error, 1)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		done <- context.Canceled
		return done
	}
	q.pending = append(q.pending, item{task: task, done: done})
	q.dispatchLocked()
	q.mu.Unlock()

	return done
}

// Wait blocks until every task submitted so far has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Close stops the queue: queued-but-unstarted tasks are failed with
// context.Canceled, the run context of in-flight tasks is cancelled, and
// Close blocks until they return.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, it := range dropped {
		it.done <- context.Canceled
	}

	q.cancel()
	q.wg.Wait()
}

// dispatchLocked starts pending tasks while a concurrency slot is free.
// Callers must hold q.mu.
func (q *Queue) dispatchLocked() {
	for q.running < q.limit && len(q.pending) > 0 {
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.running++
		q.wg.Add(1)

		go func(it item) {
			defer q.wg.Done()

			err := q.runTask(it.task)
			it.done <- err

			q.mu.Lock()
			q.running--
			if !q.closed {
				q.dispatchLocked()
			}
			q.mu.Unlock()
		}(next)
	}
}

func (q *Queue) runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().Str("queue", q.name).Any("panic", r).Msg("task panicked")
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	if err = task(q.ctx); err != nil {
		q.logger.Debug().Str("queue", q.name).Err(err).Msg("task failed")
	}
	return err
}
