package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool is the bounded worker pool for per-document jobs. Jobs are
// independent and unordered: completion order carries no meaning, and a
// failing job never affects its siblings. Results are drained by a single
// consumer in Wait, so no shared accumulator needs locking.
type Pool struct {
	workers        int
	jobQueue       chan Job
	results        chan Result
	wg             sync.WaitGroup
	ctx            context.Context
	cancelFunc     context.CancelFunc
	closeQueueOnce sync.Once
	closeOnce      sync.Once
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2), // Buffered to prevent blocking
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// worker is the worker goroutine that processes jobs
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit submits a job and reports whether the pool accepted it. A shut
// down pool rejects jobs instead of blocking. Submit applies backpressure
// when the queue is full, so a caller with more jobs than buffer space
// must have Wait draining results concurrently or the pool stalls.
func (p *Pool) Submit(job Job) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Close marks submission as finished. Workers exit once the queue drains.
func (p *Pool) Close() {
	p.closeQueueOnce.Do(func() {
		close(p.jobQueue)
	})
}

// Wait drains results until every accepted job has completed and the
// queue has been closed. It is safe to call while submission is still in
// flight; the submitter calls Close when done.
func (p *Pool) Wait() []Result {
	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []Result
	for result := range p.results {
		results = append(results, result)
	}

	return results
}

// Shutdown shuts down the worker pool immediately
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
