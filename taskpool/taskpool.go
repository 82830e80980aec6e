// Package taskpool provides a small bounded worker pool used internally by
// action.Concurrency. Package action keeps one process-wide Pool that every
// Concurrency node submits its children to, so the worker count caps the
// children in flight across all fan-outs in the process together. It is
// deliberately minimal: a fixed number of workers draining a bounded queue,
// nothing more. The general-purpose asynchronous task runtime that would
// host arbitrary cooperative tasks is out of scope for this module;
// taskpool runs nothing but those Concurrency children.
package taskpool

import (
	"context"
	"fmt"
)

// DefaultQueueSize is the default bound on queued-but-not-yet-running work.
const DefaultQueueSize = 256

// DefaultWorkers is the default number of goroutines draining the queue.
const DefaultWorkers = 3

// Pool runs submitted functions on a fixed number of worker goroutines.
type Pool struct {
	tasks   chan func()
	done    chan struct{}
	workers int
}

// Option configures a Pool.
type Option func(*config)

type config struct {
	workers   int
	queueSize int
}

// WithWorkers sets the number of worker goroutines. Default DefaultWorkers.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithQueueSize sets the bound on queued work. Default DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(c *config) { c.queueSize = n }
}

// New starts a Pool. Call Close to stop its workers once no more work will
// be submitted.
func New(opts ...Option) *Pool {
	cfg := config{workers: DefaultWorkers, queueSize: DefaultQueueSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pool{
		tasks:   make(chan func(), cfg.queueSize),
		done:    make(chan struct{}),
		workers: cfg.workers,
	}
	for i := 0; i < cfg.workers; i++ {
		go p.drain()
	}
	return p
}

func (p *Pool) drain() {
	for {
		select {
		case fn, ok := <-p.tasks:
			if !ok {
				return
			}
			fn()
		case <-p.done:
			return
		}
	}
}

// Submit enqueues fn to run on a worker goroutine. It blocks if the queue
// is full, unless ctx is cancelled first, in which case it returns ctx's
// error without running fn.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	select {
	case <-p.done:
		return fmt.Errorf("taskpool: pool closed")
	default:
	}

	select {
	case p.tasks <- fn:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("taskpool: submit cancelled: %w", ctx.Err())
	case <-p.done:
		return fmt.Errorf("taskpool: pool closed")
	}
}

// Close stops accepting new work and signals workers to exit once idle.
// Queued-but-unstarted tasks are dropped.
func (p *Pool) Close() {
	close(p.done)
}
