package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/pointkeeper/internal/model"
)

// SQLiteStore keeps buckets in the ledger_state table created by the
// database migrations.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Load(ctx context.Context) (model.StoreData, error) {
	return loadState(ctx, s.db)
}

// Save upserts the supplied buckets in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, data model.StoreData) (retErr error) {
	payloads, err := encode(data)
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, p := range payloads {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_state (bucket, payload, updated_at) VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
			 ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
			p.bucket, p.data,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", p.bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close is a no-op; the database handle is owned by the caller.
func (s *SQLiteStore) Close() error { return nil }
