// Package worker runs independent claim checks on a bounded set of goroutines.
package worker

import (
	"context"
	"sync"
)

// Job is one unit of work
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a job produces
type Result interface {
	GetError() error
}

type queued struct {
	index int
	job   Job
}

// Pool runs jobs on a fixed number of workers. Results are stored by
// submission index, so workers never block on a reader.
type Pool struct {
	workers int
	queue   chan queued
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	submitted int
	results   []Result
	closeOnce sync.Once
}

// NewPool creates a pool bound to ctx; workers <= 0 means one worker
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers: workers,
		queue:   make(chan queued, workers*2),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case q, ok := <-p.queue:
			if !ok {
				return
			}
			p.store(q.index, q.job.Execute(p.ctx))
		}
	}
}

func (p *Pool) store(index int, r Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[index] = r
}

// Submit queues a job. It returns the pool's context error once the pool
// is shut down or its parent context is done. Submit must not be called
// after Wait.
func (p *Pool) Submit(job Job) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	index := p.submitted
	p.submitted++
	p.results = append(p.results, nil)
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.queue <- queued{index: index, job: job}:
		return nil
	}
}

// Wait closes the queue, waits for the workers and returns the results in
// submission order. Jobs that never ran leave a nil entry.
func (p *Pool) Wait() []Result {
	p.closeQueue()
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Result, len(p.results))
	copy(out, p.results)
	return out
}

// Shutdown cancels outstanding work and waits for the workers to exit
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) closeQueue() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
}
