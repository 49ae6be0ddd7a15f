package orchestrator

import (
	"context"
	"errors"
	"sync"
)

// Dispatcher schedules the execution of a persisted task. Dispatch must not
// wait for the execution to finish.
type Dispatcher interface {
	Dispatch(ctx context.Context, taskID string) error
}

// ErrPoolClosed is returned by Pool.Dispatch after Close.
var ErrPoolClosed = errors.New("orchestrator: pool closed")

// Pool runs dispatched tasks on goroutines in this process, at most size at
// a time. Executions do not inherit the dispatching request's context.
type Pool struct {
	run func(ctx context.Context, taskID string)
	sem chan struct{}

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool returns a Pool that calls run for every dispatched id. A size of
// zero or less selects 16.
func NewPool(run func(ctx context.Context, taskID string), size int) *Pool {
	if size <= 0 {
		size = 16
	}
	return &Pool{run: run, sem: make(chan struct{}, size)}
}

// Dispatch hands taskID to a worker and returns immediately.
func (p *Pool) Dispatch(_ context.Context, taskID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		p.run(context.Background(), taskID)
	}()
	return nil
}

// Close stops accepting work and waits for in-flight executions.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
