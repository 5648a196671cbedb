package persistence

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/pointkeeper/internal/metrics"
	"github.com/dukerupert/pointkeeper/internal/model"
)

// Resilient wraps an adapter so that a failed load yields the default
// dataset instead of an error. Saves are timed and counted per backend.
type Resilient struct {
	adapter Adapter
	backend string
	logger  *slog.Logger
}

func NewResilient(adapter Adapter, backend string, logger *slog.Logger) *Resilient {
	return &Resilient{
		adapter: adapter,
		backend: backend,
		logger:  logger.With("component", "persistence", "backend", backend),
	}
}

// Load never fails. A backend error is logged and the default dataset returned.
func (r *Resilient) Load(ctx context.Context) (model.StoreData, error) {
	data, err := r.adapter.Load(ctx)
	if err != nil {
		r.logger.Error("load failed, starting from an empty dataset", "error", err)
		metrics.LoadFallbacks.WithLabelValues(r.backend).Inc()
		return model.DefaultStoreData(), nil
	}
	return data.Normalize(), nil
}

func (r *Resilient) Save(ctx context.Context, data model.StoreData) error {
	start := time.Now()
	err := r.adapter.Save(ctx, data)
	metrics.PersistenceSaveDuration.WithLabelValues(r.backend).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PersistenceSaves.WithLabelValues(r.backend, "error").Inc()
		return err
	}
	metrics.PersistenceSaves.WithLabelValues(r.backend, "ok").Inc()
	return nil
}

func (r *Resilient) Close() error {
	return r.adapter.Close()
}
