package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/seatcover-storefront/internal/obs"
)

// Queue holds order notifications between the HTTP handler that accepts an
// order and the workers that deliver it. Enqueue never blocks: jobs wait in
// an unbounded backlog and a broker goroutine feeds them to a bounded
// channel the workers read.
type Queue struct {
	mu      sync.Mutex
	backlog []Job
	wake    chan struct{}
	out     chan Job
	closed  atomic.Bool

	enqueued  atomic.Uint64
	processed atomic.Uint64
	now       func() time.Time
}

// New creates a Queue whose worker channel buffers outBuffer jobs.
func New(outBuffer int) *Queue {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &Queue{
		wake: make(chan struct{}, 1),
		out:  make(chan Job, outBuffer),
		now:  time.Now,
	}
}

// Start runs the broker until ctx is done. A positive highWatermark makes
// the broker warn while the backlog is above it.
func (q *Queue) Start(ctx context.Context, highWatermark int) {
	go q.broker(ctx, highWatermark)
}

func (q *Queue) broker(ctx context.Context, highWatermark int) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.handOff()
		if highWatermark > 0 {
			if sz := q.BacklogSize(); sz > highWatermark {
				obs.Logger.Warn("notification_backlog_high",
					"backlog_size", sz,
					"high_watermark", highWatermark,
					"oldest_age_ms", q.OldestAge().Milliseconds(),
				)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-ticker.C:
		}
	}
}

// handOff moves as many backlog jobs to the worker channel as it has room for.
func (q *Queue) handOff() {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for n < len(q.backlog) && len(q.out) < cap(q.out) {
		q.out <- q.backlog[n]
		n++
	}
	if n > 0 {
		// Drop references so delivered orders can be collected.
		clear(q.backlog[:n])
		q.backlog = q.backlog[n:]
	}
}

// Enqueue stamps the job and appends it to the backlog. It reports false
// once intake is closed.
func (q *Queue) Enqueue(job Job) bool {
	if q.closed.Load() {
		return false
	}
	job.EnqueuedAt = q.now()
	q.enqueued.Add(1)
	q.mu.Lock()
	q.backlog = append(q.backlog, job)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Out exposes the worker channel.
func (q *Queue) Out() <-chan Job { return q.out }

// BacklogSize returns the number of jobs not yet handed to the workers.
func (q *Queue) BacklogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// OldestAge is how long the oldest backlog job has been waiting, or zero.
func (q *Queue) OldestAge() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.backlog) == 0 {
		return 0
	}
	return q.now().Sub(q.backlog[0].EnqueuedAt)
}

// QueueDepth returns backlog plus jobs buffered for the workers.
func (q *Queue) QueueDepth() int {
	q.mu.Lock()
	bl := len(q.backlog)
	q.mu.Unlock()
	return bl + len(q.out)
}

// MarkProcessed records one delivered job.
func (q *Queue) MarkProcessed() { q.processed.Add(1) }

// Metrics returns counters and sizes for /debug/metrics.
func (q *Queue) Metrics() (enq, proc uint64, backlog, depth int) {
	return q.enqueued.Load(), q.processed.Load(), q.BacklogSize(), q.QueueDepth()
}

// CloseIntake disallows future enqueues. Queued jobs are still delivered.
func (q *Queue) CloseIntake() { q.closed.Store(true) }

// IsShuttingDown reports whether intake has been closed.
func (q *Queue) IsShuttingDown() bool { return q.closed.Load() }
