// Package recorder provides asynchronous audit record writing, keeping
// storage latency off the request path.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"modex-hq/aegis/pkg/audit"
	"modex-hq/aegis/pkg/config"
)

// Recorder buffers decision records and writes them to storage from a
// background worker. Record never blocks the caller: when the buffer is
// full the record is dropped and counted.
type Recorder struct {
	storage      audit.Storage
	writeTimeout time.Duration
	logger       *slog.Logger

	ch      chan *audit.DecisionRecord
	dropped atomic.Int64
	written atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewRecorder creates a recorder and starts its worker goroutine.
func NewRecorder(storage audit.Storage, cfg config.RecorderConfig) *Recorder {
	r := &Recorder{
		storage:      storage,
		writeTimeout: cfg.WriteTimeout,
		logger:       slog.Default().With("component", "audit.recorder"),
		ch:           make(chan *audit.DecisionRecord, cfg.AsyncBuffer),
		done:         make(chan struct{}),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Record enqueues a decision record for persistence. Returns false when the
// buffer is full and the record was dropped.
func (r *Recorder) Record(record *audit.DecisionRecord) bool {
	select {
	case r.ch <- record:
		return true
	default:
		dropped := r.dropped.Add(1)
		if dropped == 1 || dropped%100 == 0 {
			r.logger.Warn("audit buffer full, dropping record",
				"request_id", record.RequestID,
				"total_dropped", dropped,
			)
		}
		return false
	}
}

// Dropped returns the number of records dropped due to a full buffer.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Written returns the number of records successfully persisted.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

// worker drains the buffer into storage until the recorder is closed, then
// flushes whatever remains.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.ch:
			r.write(record)
		case <-r.done:
			// Drain remaining records before exiting
			for {
				select {
				case record := <-r.ch:
					r.write(record)
				default:
					return
				}
			}
		}
	}
}

// write persists one record with the configured timeout.
func (r *Recorder) write(record *audit.DecisionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to persist audit record",
			"request_id", record.RequestID,
			"error", err,
		)
		return
	}
	r.written.Add(1)
}

// Close stops the worker after draining buffered records.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
	r.logger.Debug("audit recorder closed",
		"written", r.written.Load(),
		"dropped", r.dropped.Load(),
	)
}
