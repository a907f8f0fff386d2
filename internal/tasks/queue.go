package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"golfpools/worker/internal/metrics"
)

const (
	defaultRetryDelay = 15 * time.Second
	shutdownGrace     = 30 * time.Second
)

// Func is one unit of queued work.
type Func func(ctx context.Context) error

// Options controls when a task runs and how it is bounded.
type Options struct {
	// Delay defers the start relative to enqueue time. ETA, when set,
	// wins over Delay.
	Delay time.Duration
	ETA   time.Time

	// ExpiresAt drops the task outright if it has not started by this
	// time, so a rescheduled invocation never fires past its window.
	ExpiresAt time.Time

	MaxRetries int
	RetryDelay time.Duration

	// SoftLimit cancels the task's context with ErrSoftTimeLimit; the
	// cycle is retried from scratch. HardLimit abandons the task: its
	// goroutine is cut off and any lock it held expires via TTL.
	SoftLimit time.Duration
	HardLimit time.Duration
}

// Enqueuer is the producer side of the queue. Tasks that reschedule
// themselves depend on this rather than the concrete Queue.
type Enqueuer interface {
	Enqueue(name string, fn Func, opts Options)
}

type job struct {
	name    string
	fn      Func
	opts    Options
	attempt int
}

// Queue is an in-process task queue backed by a fixed worker pool.
// Clock-driven triggers enqueue fixed-cadence jobs; the score poller
// enqueues its own continuation each cycle.
type Queue struct {
	workers int
	jobs    chan *job
	quit    chan struct{}

	base   context.Context
	cancel context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewQueue creates a queue served by the given number of workers.
func NewQueue(workers int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		workers: workers,
		jobs:    make(chan *job, 256),
		quit:    make(chan struct{}),
	}
}

// Start launches the worker pool. Tasks enqueued before Start wait in
// the queue until a worker picks them up.
func (q *Queue) Start(ctx context.Context) {
	q.base, q.cancel = context.WithCancel(ctx)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	log.Info().Int("workers", q.workers).Msg("Task queue started")
}

// Stop drains the pool: workers stop picking up new tasks, in-flight
// tasks get a grace period, then their contexts are cancelled.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.quit)

		done := make(chan struct{})
		go func() {
			q.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(shutdownGrace):
			log.Warn().Msg("Shutdown grace period elapsed, cancelling in-flight tasks")
			q.cancel()
			<-done
		}

		q.cancel()
		log.Info().Msg("Task queue stopped")
	})
}

// Enqueue schedules a task. A zero Options runs it as soon as a worker
// is free.
func (q *Queue) Enqueue(name string, fn Func, opts Options) {
	j := &job{name: name, fn: fn, opts: opts}

	eta := opts.ETA
	if eta.IsZero() && opts.Delay > 0 {
		eta = time.Now().Add(opts.Delay)
	}

	if wait := time.Until(eta); wait > 0 {
		log.Debug().Str("task", name).Time("eta", eta).Msg("Task scheduled")
		time.AfterFunc(wait, func() { q.submit(j) })
		return
	}

	q.submit(j)
}

func (q *Queue) submit(j *job) {
	select {
	case q.jobs <- j:
		metrics.QueueDepth.Inc()
	case <-q.quit:
		log.Warn().Str("task", j.name).Msg("Queue shutting down, dropping task")
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	for {
		select {
		case <-q.quit:
			return
		case j := <-q.jobs:
			metrics.QueueDepth.Dec()
			q.run(id, j)
		}
	}
}

func (q *Queue) run(workerID int, j *job) {
	if !j.opts.ExpiresAt.IsZero() && time.Now().After(j.opts.ExpiresAt) {
		metrics.TasksExpiredTotal.WithLabelValues(j.name).Inc()
		log.Info().
			Str("task", j.name).
			Time("expired_at", j.opts.ExpiresAt).
			Msg("Dropping expired task")
		return
	}

	start := time.Now()
	err := q.execute(j)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		metrics.TasksExecutedTotal.WithLabelValues(j.name, "ok").Inc()
		log.Debug().
			Str("task", j.name).
			Int("worker", workerID).
			Dur("elapsed", elapsed).
			Msg("Task completed")

	case errors.Is(err, ErrSoftTimeLimit):
		metrics.TasksExecutedTotal.WithLabelValues(j.name, "soft_timeout").Inc()
		q.requeue(j, err)

	case Retryable(err):
		metrics.TasksExecutedTotal.WithLabelValues(j.name, "retryable_error").Inc()
		q.requeue(j, err)

	default:
		metrics.TasksExecutedTotal.WithLabelValues(j.name, "failed").Inc()
		log.Error().
			Err(err).
			Str("task", j.name).
			Dur("elapsed", elapsed).
			Msg("Task failed")
	}
}

// execute runs the task under its soft and hard time limits. The soft
// limit cancels the task's context with ErrSoftTimeLimit as the cause;
// the hard limit abandons the task entirely.
func (q *Queue) execute(j *job) error {
	ctx, stop := context.WithCancel(q.base)
	defer stop()

	if j.opts.SoftLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, j.opts.SoftLimit, ErrSoftTimeLimit)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- j.fn(ctx) }()

	var hard <-chan time.Time
	if j.opts.HardLimit > 0 {
		t := time.NewTimer(j.opts.HardLimit)
		defer t.Stop()
		hard = t.C
	}

	select {
	case err := <-done:
		if err != nil && errors.Is(context.Cause(ctx), ErrSoftTimeLimit) {
			return fmt.Errorf("%s: %w", j.name, ErrSoftTimeLimit)
		}
		return err
	case <-hard:
		stop()
		log.Error().
			Str("task", j.name).
			Dur("hard_limit", j.opts.HardLimit).
			Msg("Hard time limit exceeded, abandoning task")
		return fmt.Errorf("%s: hard time limit exceeded", j.name)
	}
}

func (q *Queue) requeue(j *job, cause error) {
	if j.attempt >= j.opts.MaxRetries {
		log.Error().
			Err(cause).
			Str("task", j.name).
			Int("attempts", j.attempt+1).
			Msg("Task exhausted retries, giving up")
		return
	}

	delay := j.opts.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	retry := *j
	retry.attempt++

	log.Warn().
		Err(cause).
		Str("task", j.name).
		Int("attempt", retry.attempt).
		Dur("retry_in", delay).
		Msg("Retrying task")

	time.AfterFunc(delay, func() { q.submit(&retry) })
}
