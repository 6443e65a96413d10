// Package dispatch provides the single-consumer work queue that serializes
// all notification processing.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
)

const defaultCapacity = 256

// Job is a unit of work executed on the dispatch worker.
type Job func(ctx context.Context)

// Queue is a bounded FIFO queue drained by exactly one worker goroutine.
// Both ingress paths (the chat gateway and the webhook listener) enqueue
// here, so two events for the same PR can never interleave.
type Queue struct {
	jobs     chan Job
	logger   *slog.Logger
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a queue with the given capacity (<=0 selects the default).
func New(capacity int, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		jobs:   make(chan Job, capacity),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Enqueue schedules a job. It never blocks: when the queue is full or
// stopped the job is dropped and false is returned so the caller can log.
func (q *Queue) Enqueue(job Job) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	select {
	case q.jobs <- job:
		return true
	default:
		q.logger.Warn("dispatch queue full, dropping job",
			"capacity", cap(q.jobs))
		return false
	}
}

// Run drains the queue until ctx is cancelled. Panics inside a job are
// recovered and logged; a failing job must never take the worker down,
// since the same worker serves the unrelated chat-event stream.
func (q *Queue) Run(ctx context.Context) {
	defer q.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.runJob(ctx, job)
		}
	}
}

func (q *Queue) runJob(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("recovered panic in dispatched job", "panic", r)
		}
	}()
	job(ctx)
}

// Stop marks the queue as no longer accepting work.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.done)
	})
}
