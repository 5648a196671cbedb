package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/pointkeeper/internal/database"
	"github.com/dukerupert/pointkeeper/internal/model"
	"github.com/dukerupert/pointkeeper/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var testS3 = S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret", Region: "us-east-1"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, cfg Config, cb StatusCallback) (*Manager, *mockS3Client) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(cfg, store.NewExportStore(db), discardLogger(), cb)
	mock := newMockS3()
	if m.client != nil {
		m.client = mock
	}
	return m, mock
}

func testArchive() model.Archive {
	return model.Archive{
		ID:        "ARC-20240305-001",
		Title:     "Snapshot A",
		Timestamp: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		AdminID:   "USR-ADM-20240305-001",
		MemberSnapshots: []model.ArchiveMember{
			{ID: "MEM-20240305-001", Name: "Ada", Division: "Alpha", Points: 10},
		},
	}
}

func TestManagerStateLifecycle(t *testing.T) {
	m, _ := newTestManager(t, Config{}, nil)
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}
	if m.Enabled() {
		t.Error("manager without S3 config should be disabled")
	}

	m2, _ := newTestManager(t, Config{S3: testS3}, nil)
	if m2.Status().State != StateIdle {
		t.Errorf("state = %q, want %q", m2.Status().State, StateIdle)
	}
}

func TestExportDisabled(t *testing.T) {
	m, _ := newTestManager(t, Config{}, nil)
	if _, err := m.Export(context.Background(), testArchive()); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
}

func TestExportPlainRoundTrip(t *testing.T) {
	m, mock := newTestManager(t, Config{S3: testS3}, nil)
	ctx := context.Background()

	rec, err := m.Export(ctx, testArchive())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if rec.Status != model.ExportStatusCompleted {
		t.Errorf("status = %q, want %q", rec.Status, model.ExportStatusCompleted)
	}
	if rec.Encrypted {
		t.Error("export without passphrase should not be encrypted")
	}
	if rec.SizeBytes == 0 || mock.count() != 1 {
		t.Errorf("size = %d objects = %d", rec.SizeBytes, mock.count())
	}

	got, err := m.Fetch(ctx, rec.ID, rec.AdminID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Title != "Snapshot A" || len(got.MemberSnapshots) != 1 || got.MemberSnapshots[0].Points != 10 {
		t.Errorf("fetched archive = %+v", got)
	}
}

func TestExportEncrypted(t *testing.T) {
	m, mock := newTestManager(t, Config{S3: testS3, Passphrase: "hunter2"}, nil)
	ctx := context.Background()

	rec, err := m.Export(ctx, testArchive())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !rec.Encrypted {
		t.Error("expected encrypted export")
	}
	stored := mock.objects[rec.S3Key]
	if bytes.Contains(stored, []byte("Snapshot A")) {
		t.Error("stored object contains plaintext")
	}

	got, err := m.Fetch(ctx, rec.ID, rec.AdminID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.ID != "ARC-20240305-001" {
		t.Errorf("fetched id = %q", got.ID)
	}

	if _, err := m.Fetch(ctx, rec.ID, "USR-ADM-20240305-002"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other tenant fetch err = %v, want ErrNotFound", err)
	}
}

func TestExportUploadFailure(t *testing.T) {
	var received []Status
	m, mock := newTestManager(t, Config{S3: testS3}, func(s Status) { received = append(received, s) })
	mock.putErr = errors.New("connection refused")

	if _, err := m.Export(context.Background(), testArchive()); err == nil {
		t.Fatal("expected upload error")
	}
	if m.Status().State != StateError {
		t.Errorf("state = %q, want %q", m.Status().State, StateError)
	}
	if len(received) != 2 || received[0].State != StateRunning {
		t.Errorf("callbacks = %+v", received)
	}

	list, err := m.List("USR-ADM-20240305-001", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != model.ExportStatusFailed || list[0].ErrorMessage != "connection refused" {
		t.Errorf("exports = %+v", list)
	}
}

func TestForget(t *testing.T) {
	m, mock := newTestManager(t, Config{S3: testS3}, nil)
	ctx := context.Background()
	a := testArchive()

	m.Export(ctx, a)
	m.Export(ctx, a)
	if mock.count() == 0 {
		t.Fatal("expected uploaded objects")
	}

	if err := m.Forget(ctx, a.ID); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if mock.count() != 0 {
		t.Errorf("objects left = %d, want 0", mock.count())
	}
	list, _ := m.List(a.AdminID, 10)
	if len(list) != 0 {
		t.Errorf("records left = %d, want 0", len(list))
	}
}
