package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
	BackendMemory   = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	SQLite      *sql.DB
	PostgresDSN string
	BadgerPath  string
}

// Open returns the configured backend wrapped in Resilient.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Resilient, error) {
	var adapter Adapter
	switch opts.Backend {
	case "", BackendSQLite:
		if opts.SQLite == nil {
			return nil, fmt.Errorf("sqlite backend needs an open database")
		}
		adapter = NewSQLiteStore(opts.SQLite)
		opts.Backend = BackendSQLite
	case BackendPostgres:
		pg, err := OpenPostgres(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		adapter = pg
	case BackendBadger:
		b, err := OpenBadger(BadgerConfig{
			Path:       opts.BadgerPath,
			SyncWrites: true,
			GCInterval: defaultBadgerGCInterval,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		adapter = b
	case BackendMemory:
		adapter = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
	return NewResilient(adapter, opts.Backend, logger), nil
}
