// Package queue implements an in-memory event queue and worker manager.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fairyhunter13/seatcover-storefront/internal/config"
	"github.com/fairyhunter13/seatcover-storefront/internal/obs"
)

// Handler delivers one job. Errors are the handler's to report; the manager
// never retries.
type Handler interface {
	Deliver(ctx context.Context, job Job)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job)

// Deliver calls f.
func (f HandlerFunc) Deliver(ctx context.Context, job Job) { f(ctx, job) }

// Manager coordinates workers processing queued jobs and scaling.
type Manager struct {
	cfg    config.Config
	q      *Queue
	h      Handler
	seq    Sequencer
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	workerCancels []context.CancelFunc
}

// NewManager constructs a Manager with the given config, queue, and handler.
func NewManager(cfg config.Config, q *Queue, h Handler) *Manager {
	return &Manager{cfg: cfg, q: q, h: h}
}

// Start begins processing and autoscaling in the background.
func (m *Manager) Start(parent context.Context) {
	m.ctx, m.cancel = context.WithCancel(parent)
	m.q.Start(m.ctx, m.cfg.QueueHighWatermark)
	m.addWorkers(m.cfg.InitialWorkerCount)
	go m.scaler()
}

// Stop cancels background routines and stops workers.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	for _, c := range m.workerCancels {
		c()
	}
	m.workerCancels = nil
	m.mu.Unlock()
}

// scaler adjusts worker count based on backlog and configuration.
func (m *Manager) scaler() {
	t := time.NewTicker(m.cfg.ScaleInterval)
	defer t.Stop()
	idleTicks := 0
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-t.C:
			backlog := m.q.BacklogSize()
			wc := m.WorkerCount()
			if backlog > wc*m.cfg.ScaleUpBacklogPerWorker && wc < m.cfg.WorkerMax {
				m.addWorkers(1)
				idleTicks = 0
				continue
			}
			if backlog == 0 {
				idleTicks++
				if idleTicks >= m.cfg.ScaleDownIdleTicks && wc > m.cfg.WorkerMin {
					m.removeWorkers(1)
					idleTicks = 0
				}
			} else {
				idleTicks = 0
			}
		}
	}
}

// addWorkers spawns n workers.
func (m *Manager) addWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		wctx, cancel := context.WithCancel(m.ctx)
		m.workerCancels = append(m.workerCancels, cancel)
		go m.worker(wctx)
	}
	obs.Logger.Info("workers_scaled", "worker_count", len(m.workerCancels))
}

// removeWorkers stops up to n workers.
func (m *Manager) removeWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.workerCancels) {
		n = len(m.workerCancels)
	}
	for i := 0; i < n; i++ {
		c := m.workerCancels[len(m.workerCancels)-1]
		m.workerCancels = m.workerCancels[:len(m.workerCancels)-1]
		c()
	}
	obs.Logger.Info("workers_scaled", "worker_count", len(m.workerCancels))
}

// worker drains jobs from the queue and hands them to the handler. A job
// picked up by a worker is delivered even if the worker is scaled down
// meanwhile; the delivery itself runs on the manager context.
func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.q.Out():
			m.deliver(job)
			m.q.MarkProcessed()
		}
	}
}

// deliver runs the handler for one job. A panicking handler loses the job
// but not the worker.
func (m *Manager) deliver(job Job) {
	defer func() {
		if r := recover(); r != nil {
			obs.Logger.Error("notification_panic",
				"sequence", job.Sequence,
				"request_id", job.RequestID,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	m.h.Deliver(m.ctx, job)
}

// Enqueue assigns the job its sequence number and queues it. It reports
// false once intake is closed.
func (m *Manager) Enqueue(job Job) bool {
	job.Sequence = m.seq.Next()
	return m.q.Enqueue(job)
}

// BacklogSize returns pending items in the queue.
func (m *Manager) BacklogSize() int { return m.q.BacklogSize() }

// QueueDepth returns backlog plus buffered output items.
func (m *Manager) QueueDepth() int { return m.q.QueueDepth() }

// WorkerCount returns the current number of workers.
func (m *Manager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workerCancels)
}

// IsShuttingDown reports whether new enqueues are rejected.
func (m *Manager) IsShuttingDown() bool { return m.q.IsShuttingDown() }

// CloseIntake disallows future enqueues.
func (m *Manager) CloseIntake() { m.q.CloseIntake() }

// QueueMetrics exposes the underlying queue metrics.
func (m *Manager) QueueMetrics() (enq, proc uint64, backlog, depth int) {
	return m.q.Metrics()
}

// DrainUntil blocks until the queue is fully drained or context is done.
func (m *Manager) DrainUntil(ctx context.Context) bool {
	for {
		enq, proc, backlog, depth := m.q.Metrics()
		if backlog == 0 && depth == 0 && enq == proc {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}
