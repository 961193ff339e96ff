package faucet

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/Digital-Creators-Team/faucet-module/errors"
	"github.com/rs/zerolog"
)

type job struct {
	ctx context.Context
	run func(ctx context.Context)
}

// Queue runs submitted jobs one at a time, in submission order, on a single goroutine.
// A job starts only after the previous one has fully returned.
type Queue struct {
	name   string
	ch     chan job
	done   chan struct{}
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts the worker. size bounds the number of waiting jobs.
func NewQueue(name string, size int, logger zerolog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{
		name:   name,
		ch:     make(chan job, size),
		done:   make(chan struct{}),
		logger: logger.With().Str("queue", name).Logger(),
	}
	go q.drain()
	return q
}

// Len returns the number of jobs waiting to run.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting jobs, runs those already queued and waits for the worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) drain() {
	defer close(q.done)
	for j := range q.ch {
		// enqueued jobs run to completion even if the submitter went away
		j.run(context.WithoutCancel(j.ctx))
	}
	q.logger.Debug().Msg("Queue drained")
}

func (q *Queue) enqueue(ctx context.Context, fn func(ctx context.Context)) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return apperrors.NewWithDebug(apperrors.ErrFaucetUnavailable, "faucet unavailable", "queue "+q.name+" closed")
	}
	select {
	case q.ch <- job{ctx: ctx, run: fn}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submit enqueues fn and waits for its result. If ctx ends first the caller
// stops waiting but the job still runs.
func submit[T any](ctx context.Context, q *Queue, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	resCh := make(chan result, 1)

	err := q.enqueue(ctx, func(jobCtx context.Context) {
		var r result
		defer func() {
			if p := recover(); p != nil {
				q.logger.Error().Interface("panic", p).Msg("Job panicked")
				r = result{err: fmt.Errorf("job panicked: %v", p)}
			}
			resCh <- r
		}()
		r.val, r.err = fn(jobCtx)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	select {
	case r := <-resCh:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
