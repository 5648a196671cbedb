// Package export uploads archive snapshots to S3-compatible storage,
// optionally encrypted, and records every upload in the database.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/pointkeeper/internal/metrics"
	"github.com/dukerupert/pointkeeper/internal/model"
	"github.com/dukerupert/pointkeeper/internal/store"
)

var (
	ErrDisabled = errors.New("archive export not configured: S3 credentials missing")
	ErrNotFound = errors.New("export not found")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds export manager configuration. Archives are encrypted when
// Passphrase is set.
type Config struct {
	S3         S3Config
	Passphrase string
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current export manager status.
type Status struct {
	State      State      `json:"state"`
	LastExport *time.Time `json:"last_export,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the export state changes.
type StatusCallback func(Status)

type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback
	client   s3Client

	exports *store.ExportStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewManager(cfg Config, exports *store.ExportStore, logger *slog.Logger, callback StatusCallback) *Manager {
	m := &Manager{
		cfg:      cfg,
		exports:  exports,
		logger:   logger.With("component", "export"),
		callback: callback,
		status:   Status{State: StateDisabled},
		now:      time.Now,
	}
	if cfg.S3.complete() {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether S3 is configured.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) fail(id int64, err error) {
	if uerr := m.exports.UpdateStatus(id, model.ExportStatusFailed, err.Error()); uerr != nil {
		m.logger.Error("record failed export", "export_id", id, "error", uerr)
	}
	m.setStatus(Status{State: StateError, Error: err.Error()})
	metrics.Exports.WithLabelValues(string(model.ExportStatusFailed)).Inc()
}

// Export serializes the archive, encrypts it when a passphrase is
// configured, and uploads it. The returned record reflects the final status.
func (m *Manager) Export(ctx context.Context, archive model.Archive) (*model.ArchiveExport, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()
	if client == nil {
		return nil, ErrDisabled
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	encrypted := passphrase != ""
	key := fmt.Sprintf("%s/%s-%s.json", archive.AdminID, archive.ID, m.now().UTC().Format("20060102T150405Z"))
	if encrypted {
		key += ".enc"
	}

	record, err := m.exports.Create(archive.ID, archive.AdminID, key, encrypted)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("create export record: %w", err)
	}

	body, err := json.Marshal(archive)
	if err != nil {
		m.fail(record.ID, err)
		return nil, fmt.Errorf("encode archive: %w", err)
	}
	if encrypted {
		if body, err = Encrypt(body, passphrase); err != nil {
			m.fail(record.ID, err)
			return nil, fmt.Errorf("encrypt archive: %w", err)
		}
	}

	if err := m.exports.UpdateStatus(record.ID, model.ExportStatusUploading, ""); err != nil {
		m.logger.Warn("record uploading export", "export_id", record.ID, "error", err)
	}
	contentType := "application/json"
	if encrypted {
		contentType = "application/octet-stream"
	}
	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	}); err != nil {
		m.fail(record.ID, err)
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	if err := m.exports.UpdateCompleted(record.ID, int64(len(body))); err != nil {
		return nil, fmt.Errorf("record completed export: %w", err)
	}
	now := m.now().UTC()
	m.setStatus(Status{State: StateIdle, LastExport: &now})
	metrics.Exports.WithLabelValues(string(model.ExportStatusCompleted)).Inc()
	m.logger.Info("archive exported", "archive_id", archive.ID, "key", key, "size_bytes", len(body), "encrypted", encrypted)

	return m.exports.GetByID(record.ID, archive.AdminID)
}

// Download streams a stored export exactly as uploaded.
func (m *Manager) Download(ctx context.Context, exportID int64, adminID string) (io.ReadCloser, *model.ArchiveExport, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()
	if client == nil {
		return nil, nil, ErrDisabled
	}

	record, err := m.exports.GetByID(exportID, adminID)
	if err != nil {
		return nil, nil, fmt.Errorf("get export: %w", err)
	}
	if record == nil || record.Status != model.ExportStatusCompleted {
		return nil, nil, ErrNotFound
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("download from s3: %w", err)
	}
	return result.Body, record, nil
}

// Fetch downloads an export and decodes it back into an archive.
func (m *Manager) Fetch(ctx context.Context, exportID int64, adminID string) (model.Archive, error) {
	body, record, err := m.Download(ctx, exportID, adminID)
	if err != nil {
		return model.Archive{}, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return model.Archive{}, fmt.Errorf("read export: %w", err)
	}
	if record.Encrypted {
		m.mu.RLock()
		passphrase := m.cfg.Passphrase
		m.mu.RUnlock()
		if data, err = Decrypt(data, passphrase); err != nil {
			return model.Archive{}, err
		}
	}
	var archive model.Archive
	if err := json.Unmarshal(data, &archive); err != nil {
		return model.Archive{}, fmt.Errorf("decode archive: %w", err)
	}
	return archive, nil
}

// Forget removes the export records and stored objects of a deleted archive.
func (m *Manager) Forget(ctx context.Context, archiveID string) error {
	keys, err := m.exports.DeleteByArchive(archiveID)
	if err != nil {
		return fmt.Errorf("delete export records: %w", err)
	}

	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()
	if client == nil {
		return nil
	}
	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("failed to delete S3 object", "key", key, "error", err)
		}
	}
	return nil
}

// List returns the tenant's exports, newest first.
func (m *Manager) List(adminID string, limit int) ([]model.ArchiveExport, error) {
	return m.exports.List(adminID, limit)
}
