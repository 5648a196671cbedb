package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/pointkeeper/internal/model"
)

const (
	defaultRetryDelay = time.Second
	maxRetryDelay     = time.Minute
	shutdownTimeout   = 10 * time.Second
)

// Writer saves ledger changes in the background. Pending changes are merged
// so that a burst of mutations becomes one save, and a failed save is retried
// with the newer changes layered on top.
type Writer struct {
	adapter Adapter
	logger  *slog.Logger

	mu      sync.Mutex
	pending model.StoreData
	dirty   bool

	saveMu sync.Mutex
	notify chan struct{}

	retryDelay time.Duration
}

func NewWriter(adapter Adapter, logger *slog.Logger) *Writer {
	return &Writer{
		adapter:    adapter,
		logger:     logger.With("component", "writer"),
		notify:     make(chan struct{}, 1),
		retryDelay: defaultRetryDelay,
	}
}

// Enqueue schedules a partial dataset for saving. It never blocks.
func (w *Writer) Enqueue(data model.StoreData) {
	w.mu.Lock()
	w.pending = w.pending.Merge(data)
	w.dirty = true
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Pending reports whether changes are waiting to be saved.
func (w *Writer) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

// Flush saves whatever is pending. On failure the changes stay queued.
func (w *Writer) Flush(ctx context.Context) error {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	w.mu.Lock()
	if !w.dirty {
		w.mu.Unlock()
		return nil
	}
	data := w.pending
	w.pending = model.StoreData{}
	w.dirty = false
	w.mu.Unlock()

	if err := w.adapter.Save(ctx, data); err != nil {
		w.mu.Lock()
		w.pending = data.Merge(w.pending)
		w.dirty = true
		w.mu.Unlock()
		return err
	}
	return nil
}

// Run saves queued changes until ctx is cancelled, then makes a final
// attempt with a fresh deadline.
func (w *Writer) Run(ctx context.Context) {
	delay := w.retryDelay
	var retry <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := w.Flush(flushCtx); err != nil {
				w.logger.Error("final save failed, changes lost", "error", err)
			}
			cancel()
			return
		case <-w.notify:
		case <-retry:
			retry = nil
		}

		if err := w.Flush(ctx); err != nil {
			w.logger.Error("save failed", "error", err, "retry_in", delay)
			retry = time.After(delay)
			delay = min(delay*2, maxRetryDelay)
			continue
		}
		delay = w.retryDelay
		retry = nil
	}
}
