package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/pointkeeper/internal/model"
)

// ExportStore records archive uploads to object storage.
type ExportStore struct {
	db *sql.DB
}

func NewExportStore(db *sql.DB) *ExportStore {
	return &ExportStore{db: db}
}

const exportCols = `id, archive_id, admin_id, s3_key, size_bytes, encrypted, status, error_message, started_at, completed_at, created_at, updated_at`

func scanExport(scanner interface{ Scan(...any) error }) (*model.ArchiveExport, error) {
	var e model.ArchiveExport
	var size sql.NullInt64
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	err := scanner.Scan(&e.ID, &e.ArchiveID, &e.AdminID, &e.S3Key, &size, &e.Encrypted, &e.Status, &errMsg,
		&startedAt, &completedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.SizeBytes = size.Int64
	e.ErrorMessage = errMsg.String
	if startedAt.Valid {
		e.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	return &e, nil
}

func (s *ExportStore) Create(archiveID, adminID, s3Key string, encrypted bool) (*model.ArchiveExport, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO archive_exports (archive_id, admin_id, s3_key, encrypted, status, started_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		archiveID, adminID, s3Key, encrypted, model.ExportStatusPending, now, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create export: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.ArchiveExport{
		ID:        id,
		ArchiveID: archiveID,
		AdminID:   adminID,
		S3Key:     s3Key,
		Encrypted: encrypted,
		Status:    model.ExportStatusPending,
		StartedAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetByID returns the export if it belongs to adminID.
func (s *ExportStore) GetByID(id int64, adminID string) (*model.ArchiveExport, error) {
	row := s.db.QueryRow(`SELECT `+exportCols+` FROM archive_exports WHERE id = ? AND admin_id = ?`, id, adminID)
	e, err := scanExport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get export %d: %w", id, err)
	}
	return e, nil
}

// List returns the tenant's exports, newest first.
func (s *ExportStore) List(adminID string, limit int) ([]model.ArchiveExport, error) {
	rows, err := s.db.Query(
		`SELECT `+exportCols+` FROM archive_exports WHERE admin_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		adminID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	exports := []model.ArchiveExport{}
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		exports = append(exports, *e)
	}
	return exports, rows.Err()
}

// ListByArchive returns the exports of one archive, newest first.
func (s *ExportStore) ListByArchive(archiveID string) ([]model.ArchiveExport, error) {
	rows, err := s.db.Query(
		`SELECT `+exportCols+` FROM archive_exports WHERE archive_id = ? ORDER BY created_at DESC, id DESC`, archiveID,
	)
	if err != nil {
		return nil, fmt.Errorf("list exports for archive: %w", err)
	}
	defer rows.Close()

	exports := []model.ArchiveExport{}
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		exports = append(exports, *e)
	}
	return exports, rows.Err()
}

func (s *ExportStore) UpdateStatus(id int64, status model.ExportStatus, errorMsg string) error {
	var errPtr *string
	if errorMsg != "" {
		errPtr = &errorMsg
	}
	_, err := s.db.Exec(
		`UPDATE archive_exports SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, errPtr, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update export status: %w", err)
	}
	return nil
}

func (s *ExportStore) UpdateCompleted(id, sizeBytes int64) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE archive_exports SET status = ?, size_bytes = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		model.ExportStatusCompleted, sizeBytes, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("update export completed: %w", err)
	}
	return nil
}

// DeleteByArchive removes the export records of a deleted archive and
// returns their object keys.
func (s *ExportStore) DeleteByArchive(archiveID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT s3_key FROM archive_exports WHERE archive_id = ?`, archiveID)
	if err != nil {
		return nil, fmt.Errorf("select archive exports: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan s3 key: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(`DELETE FROM archive_exports WHERE archive_id = ?`, archiveID); err != nil {
		return nil, fmt.Errorf("delete archive exports: %w", err)
	}
	return keys, nil
}
