package audit

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"gatecheck/internal/models"
	"gatecheck/internal/tasks"
	"gatecheck/internal/tasks/rate"
	"gatecheck/internal/utils/logger"
)

// Recorder is the fire-and-forget audit sink. Record never blocks the
// decision path: entries go into a bounded buffer consumed by a single
// worker that enqueues them onto the task queue. When the buffer is full
// new entries are dropped and counted, never queued unboundedly.
type Recorder struct {
	entries chan models.AuditLogEntry
	client  *tasks.TaskClient
	limiter *rate.FloodLimiter
	log     *logger.Logger

	dropped atomic.Uint64
	wg      sync.WaitGroup
	once    sync.Once
}

// NewRecorder starts the recorder's worker. limiter may be nil to disable
// flood limiting.
func NewRecorder(client *tasks.TaskClient, limiter *rate.FloodLimiter, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	r := &Recorder{
		entries: make(chan models.AuditLogEntry, bufferSize),
		client:  client,
		limiter: limiter,
		log:     logger.New("Audit"),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record hands an entry to the background worker. Drop-new on a full
// buffer: a slow audit sink must cost the hot path nothing.
func (r *Recorder) Record(entry models.AuditLogEntry) {
	select {
	case r.entries <- entry:
	default:
		if n := r.dropped.Add(1); n%100 == 1 {
			r.log.Warn("audit buffer full, %d entries dropped so far", n)
		}
	}
}

// Dropped returns how many entries were discarded due to backpressure or
// flood limiting.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for entry := range r.entries {
		// The request that produced this entry may be long gone; give the
		// enqueue its own deadline.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if r.limiter != nil {
			id := strconv.FormatUint(uint64(entry.ResourceID), 10)
			ok, err := r.limiter.Allow(ctx, id)
			if err != nil {
				r.log.Warn("audit flood limiter unavailable: %v", err)
			} else if !ok {
				r.dropped.Add(1)
				cancel()
				continue
			}
		}

		if err := r.client.EnqueueAuditEntry(ctx, entry); err != nil {
			r.log.Warn("failed to enqueue audit entry: %v", err)
		}
		cancel()
	}
}

// Close drains buffered entries and stops the worker.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.entries)
	})
	r.wg.Wait()
}
