// Package queue runs background jobs on a bounded buffer with retries and
// dead-letter sinks for jobs that never succeed.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueFull   = errors.New("queue full")
	ErrQueueClosed = errors.New("queue closed")
)

// Handler processes one job. A returned error schedules a retry.
type Handler[T any] func(ctx context.Context, job T) error

// Sink receives jobs that exhausted their attempts or could not be queued.
type Sink[T any] interface {
	DeadLetter(ctx context.Context, job T, attempts int, cause error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc[T any] func(ctx context.Context, job T, attempts int, cause error)

func (f SinkFunc[T]) DeadLetter(ctx context.Context, job T, attempts int, cause error) {
	f(ctx, job, attempts, cause)
}

type Options struct {
	Size        int
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = 256
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Backoff < 0 {
		o.Backoff = 0
	}
	return o
}

type Stats struct {
	Pending      int   `json:"pending"`
	Processed    int64 `json:"processed"`
	Retried      int64 `json:"retried"`
	DeadLettered int64 `json:"dead_lettered"`
}

type Queue[T any] struct {
	name   string
	opts   Options
	handle Handler[T]
	sinks  []Sink[T]
	jobs   chan T

	mu     sync.RWMutex
	closed bool

	processed    atomic.Int64
	retried      atomic.Int64
	deadLettered atomic.Int64
}

func New[T any](name string, handle Handler[T], opts Options, sinks ...Sink[T]) *Queue[T] {
	opts = opts.withDefaults()
	return &Queue[T]{
		name:   name,
		opts:   opts,
		handle: handle,
		sinks:  sinks,
		jobs:   make(chan T, opts.Size),
	}
}

// Submit enqueues without blocking.
func (q *Queue[T]) Submit(job T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Reject hands a job straight to the dead-letter sinks, for callers whose
// Submit failed.
func (q *Queue[T]) Reject(ctx context.Context, job T, cause error) {
	q.deadLetter(ctx, job, 0, cause)
}

// Close stops accepting jobs. Workers finish what is already buffered.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.jobs)
}

func (q *Queue[T]) Stats() Stats {
	return Stats{
		Pending:      len(q.jobs),
		Processed:    q.processed.Load(),
		Retried:      q.retried.Load(),
		DeadLettered: q.deadLettered.Load(),
	}
}

// Run starts the workers and blocks until the queue is closed and drained.
// Cancelling ctx closes the queue; buffered jobs still get one attempt.
func (q *Queue[T]) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			q.Close()
		case <-stop:
		}
	}()
	defer close(stop)

	log.Info().Str("queue", q.name).Int("workers", q.opts.Workers).Int("size", q.opts.Size).Msg("queue started")
	for i := 0; i < q.opts.Workers; i++ {
		worker := i
		g.Go(func() error {
			for job := range q.jobs {
				q.process(gctx, worker, job)
			}
			return nil
		})
	}
	err := g.Wait()
	log.Info().Str("queue", q.name).Msg("queue stopped")
	return err
}

func (q *Queue[T]) process(ctx context.Context, worker int, job T) {
	jobCtx := context.WithoutCancel(ctx)
	var lastErr error
	for attempt := 1; attempt <= q.opts.MaxAttempts; attempt++ {
		lastErr = q.safeHandle(jobCtx, job)
		if lastErr == nil {
			q.processed.Add(1)
			return
		}
		log.Warn().Err(lastErr).Str("queue", q.name).Int("worker", worker).Int("attempt", attempt).Msg("job failed")
		if attempt == q.opts.MaxAttempts {
			break
		}
		q.retried.Add(1)
		select {
		case <-ctx.Done():
			q.deadLetter(jobCtx, job, attempt, fmt.Errorf("shutdown before retry: %w", lastErr))
			return
		case <-time.After(q.opts.Backoff * time.Duration(attempt)):
		}
	}
	q.deadLetter(jobCtx, job, q.opts.MaxAttempts, lastErr)
}

func (q *Queue[T]) safeHandle(ctx context.Context, job T) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return q.handle(ctx, job)
}

func (q *Queue[T]) deadLetter(ctx context.Context, job T, attempts int, cause error) {
	q.deadLettered.Add(1)
	log.Error().Err(cause).Str("queue", q.name).Int("attempts", attempts).Msg("job dead-lettered")
	for _, s := range q.sinks {
		s.DeadLetter(ctx, job, attempts, cause)
	}
}
