// Package persist provides the bounded per-session queue of pending log
// events and the background worker that drains it into durable storage.
//
// Voice interaction latency must never depend on storage latency, so the
// producer side is strictly non-blocking: Enqueue acknowledges immediately
// and, when the buffer is full, drops the oldest queued event with a logged
// warning rather than stalling the caller. Persistence is at-most-once; a
// failed write is logged and the worker moves on.
package persist

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"voicecoach/internal/logging"
	"voicecoach/internal/types"
)

// Config configures the queue behavior.
type Config struct {
	// Capacity bounds the number of buffered events. Sized to absorb one
	// workout session's worth of sets without backpressure.
	Capacity int

	// DrainGrace is how long Stop waits for the worker to finish the event
	// in flight before proceeding anyway.
	DrainGrace time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:   64,
		DrainGrace: 5 * time.Second,
	}
}

// Queue is a multi-producer/single-consumer event queue with one background
// persistence worker. One Queue per session.
type Queue struct {
	mu sync.Mutex

	config Config
	store  types.LogStore

	events chan types.LogEvent
	stopCh chan struct{}

	workerWg  sync.WaitGroup
	isRunning bool

	// Cancels the write in flight once the drain grace expires.
	writeCtx    context.Context
	writeCancel context.CancelFunc

	// Metrics (atomic for lock-free reads)
	totalEnqueued  int64
	totalPersisted int64
	totalDropped   int64
	totalFailed    int64
}

// New creates a queue draining into the given store.
func New(store types.LogStore, cfg Config) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 64
	}
	if cfg.DrainGrace <= 0 {
		cfg.DrainGrace = 5 * time.Second
	}

	return &Queue{
		config: cfg,
		store:  store,
		events: make(chan types.LogEvent, cfg.Capacity),
		stopCh: make(chan struct{}),
	}
}

// Start launches the background worker. Idempotent.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.isRunning {
		return
	}
	q.isRunning = true
	q.writeCtx, q.writeCancel = context.WithCancel(context.Background())

	q.workerWg.Add(1)
	go q.worker()

	logging.Queue("Persistence worker started (capacity=%d, grace=%v)",
		q.config.Capacity, q.config.DrainGrace)
}

// Enqueue accepts an event for eventual persistence. It never blocks and
// never fails observably: the acknowledgment is immediate and independent of
// the eventual persistence outcome. On a full buffer the oldest queued event
// is dropped with a warning.
func (q *Queue) Enqueue(event types.LogEvent) {
	for {
		select {
		case q.events <- event:
			atomic.AddInt64(&q.totalEnqueued, 1)
			return
		default:
		}

		// Buffer full: make room by discarding the oldest pending event.
		// The worker may race us for it, which is fine either way.
		select {
		case dropped := <-q.events:
			atomic.AddInt64(&q.totalDropped, 1)
			logging.Get(logging.CategoryQueue).Warn(
				"Queue full, dropped oldest event (id=%s, entity=%s)", dropped.ID, dropped.Entity)
		default:
		}
	}
}

// Stop signals the worker to stop, waits up to the drain grace period, and
// returns. Past the grace period the write in flight is cancelled and a
// warning is logged; Stop never hangs indefinitely. Idempotent.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return
	}
	q.isRunning = false
	close(q.stopCh)
	writeCancel := q.writeCancel
	q.mu.Unlock()

	// Released on both paths; past the grace period it also aborts the write
	// in flight.
	defer writeCancel()

	done := make(chan struct{})
	go func() {
		q.workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Queue("Persistence worker stopped gracefully (persisted=%d, dropped=%d, failed=%d)",
			atomic.LoadInt64(&q.totalPersisted),
			atomic.LoadInt64(&q.totalDropped),
			atomic.LoadInt64(&q.totalFailed))
	case <-time.After(q.config.DrainGrace):
		logging.Get(logging.CategoryQueue).Warn(
			"Persistence worker did not stop within %v, abandoning write in flight", q.config.DrainGrace)
	}
}

// worker is the single consumer loop: block on the next event, issue one
// durable write, log failures, and loop. It flushes at most the event in
// flight when stopped.
func (q *Queue) worker() {
	defer q.workerWg.Done()

	logging.QueueDebug("Persistence worker running")

	for {
		// Stop wins over pending events: once signalled, only the write
		// already in flight gets flushed.
		select {
		case <-q.stopCh:
			logging.QueueDebug("Persistence worker stopping, %d events abandoned", len(q.events))
			return
		default:
		}

		select {
		case <-q.stopCh:
			logging.QueueDebug("Persistence worker stopping, %d events abandoned", len(q.events))
			return
		case event := <-q.events:
			q.persist(event)
		}
	}
}

// persist issues one durable write. Failures are logged with event context
// and never retried; the voice interaction does not depend on log durability.
func (q *Queue) persist(event types.LogEvent) {
	if err := q.store.AppendLog(q.writeCtx, event); err != nil {
		atomic.AddInt64(&q.totalFailed, 1)
		logging.Get(logging.CategoryQueue).Error(
			"Failed to persist event (id=%s, entity=%s, session=%s): %v",
			event.ID, event.Entity, event.SessionID, err)
		return
	}
	atomic.AddInt64(&q.totalPersisted, 1)
	logging.QueueDebug("Persisted event %s (%s)", event.ID, event.Entity)
}

// Metrics provides observability into queue state.
type Metrics struct {
	Depth     int
	Enqueued  int64
	Persisted int64
	Dropped   int64
	Failed    int64
	Running   bool
}

// GetMetrics returns current queue metrics.
func (q *Queue) GetMetrics() Metrics {
	q.mu.Lock()
	running := q.isRunning
	q.mu.Unlock()

	return Metrics{
		Depth:     len(q.events),
		Enqueued:  atomic.LoadInt64(&q.totalEnqueued),
		Persisted: atomic.LoadInt64(&q.totalPersisted),
		Dropped:   atomic.LoadInt64(&q.totalDropped),
		Failed:    atomic.LoadInt64(&q.totalFailed),
		Running:   running,
	}
}

// IsRunning reports whether the worker is live.
func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isRunning
}
