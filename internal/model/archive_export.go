package model

import "time"

type ExportStatus string

const (
	ExportStatusPending   ExportStatus = "pending"
	ExportStatusUploading ExportStatus = "uploading"
	ExportStatusCompleted ExportStatus = "completed"
	ExportStatusFailed    ExportStatus = "failed"
)

// ArchiveExport records one upload of an archive to object storage.
type ArchiveExport struct {
	ID           int64        `json:"id"`
	ArchiveID    string       `json:"archive_id"`
	AdminID      string       `json:"admin_id"`
	S3Key        string       `json:"s3_key"`
	SizeBytes    int64        `json:"size_bytes"`
	Encrypted    bool         `json:"encrypted"`
	Status       ExportStatus `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
