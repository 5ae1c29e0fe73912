// Package worker provides a bounded worker pool for fanning out independent
// calls without spawning one goroutine per call.
package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned when submitting to a closed pool
var ErrPoolClosed = errors.New("worker: pool closed")

// Job is a unit of work producing a T.
type Job[T any] struct {
	// ID is an optional identifier for logging
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// Result is the outcome of one Job.
type Result[T any] struct {
	JobID string
	Value T
	Err   error
}

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts a pool with the given number of workers and queue size.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool{
		tasks: make(chan func(), queueSize),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit queues task, blocking while the queue is full.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- task:
		return nil
	}
}

// Map runs every job on the pool and returns results in submission order.
// Each job's error is independent; a job that could not be queued reports
// the submission error.
func Map[T any](ctx context.Context, p *Pool, jobs []Job[T]) []Result[T] {
	results := make([]Result[T], len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		i, job := i, job
		results[i].JobID = job.ID

		wg.Add(1)
		err := p.Submit(ctx, func() {
			defer wg.Done()
			results[i].Value, results[i].Err = job.Execute(ctx)
		})
		if err != nil {
			wg.Done()
			results[i].Err = err
		}
	}
	wg.Wait()

	return results
}

// Close stops accepting tasks and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}
