package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dukerupert/pointkeeper/internal/database"
	"github.com/dukerupert/pointkeeper/internal/model"
)

const exportAdmin = "USR-ADM-20240305-001"

func setupExportTestDB(t *testing.T) *ExportStore {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewExportStore(db)
}

func TestExportCreate(t *testing.T) {
	es := setupExportTestDB(t)

	e, err := es.Create("ARC-20240305-001", exportAdmin, "archives/ARC-20240305-001.json.enc", true)
	if err != nil {
		t.Fatalf("create export: %v", err)
	}
	if e.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if e.Status != model.ExportStatusPending {
		t.Errorf("status = %q, want %q", e.Status, model.ExportStatusPending)
	}

	got, err := es.GetByID(e.ID, exportAdmin)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || !got.Encrypted || got.S3Key != e.S3Key {
		t.Errorf("got %+v", got)
	}

	other, err := es.GetByID(e.ID, "USR-ADM-20240305-002")
	if err != nil {
		t.Fatalf("get other tenant: %v", err)
	}
	if other != nil {
		t.Error("export visible to another tenant")
	}
}

func TestExportStatusLifecycle(t *testing.T) {
	es := setupExportTestDB(t)

	e, _ := es.Create("ARC-20240305-001", exportAdmin, "k1", false)

	if err := es.UpdateStatus(e.ID, model.ExportStatusUploading, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ := es.GetByID(e.ID, exportAdmin)
	if got.Status != model.ExportStatusUploading {
		t.Errorf("status = %q, want %q", got.Status, model.ExportStatusUploading)
	}

	if err := es.UpdateCompleted(e.ID, 2048); err != nil {
		t.Fatalf("update completed: %v", err)
	}
	got, _ = es.GetByID(e.ID, exportAdmin)
	if got.Status != model.ExportStatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, model.ExportStatusCompleted)
	}
	if got.SizeBytes != 2048 {
		t.Errorf("size_bytes = %d, want 2048", got.SizeBytes)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	failed, _ := es.Create("ARC-20240305-001", exportAdmin, "k2", false)
	if err := es.UpdateStatus(failed.ID, model.ExportStatusFailed, "upload failed"); err != nil {
		t.Fatalf("update status with error: %v", err)
	}
	got, _ = es.GetByID(failed.ID, exportAdmin)
	if got.ErrorMessage != "upload failed" {
		t.Errorf("error_message = %q, want %q", got.ErrorMessage, "upload failed")
	}
}

func TestExportListOrderAndLimit(t *testing.T) {
	es := setupExportTestDB(t)

	es.Create("ARC-20240305-001", exportAdmin, "first", false)
	time.Sleep(10 * time.Millisecond)
	es.Create("ARC-20240305-002", exportAdmin, "second", false)
	time.Sleep(10 * time.Millisecond)
	es.Create("ARC-20240305-003", exportAdmin, "third", false)
	es.Create("ARC-20240305-004", "USR-ADM-20240305-002", "elsewhere", false)

	all, err := es.List(exportAdmin, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].S3Key != "third" {
		t.Errorf("first entry = %q, want %q", all[0].S3Key, "third")
	}

	limited, _ := es.List(exportAdmin, 2)
	if len(limited) != 2 {
		t.Errorf("len = %d, want 2", len(limited))
	}
}

func TestExportDeleteByArchive(t *testing.T) {
	es := setupExportTestDB(t)

	es.Create("ARC-20240305-001", exportAdmin, "a", false)
	es.Create("ARC-20240305-001", exportAdmin, "b", false)
	es.Create("ARC-20240305-002", exportAdmin, "c", false)

	keys, err := es.DeleteByArchive("ARC-20240305-001")
	if err != nil {
		t.Fatalf("delete by archive: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("deleted keys = %d, want 2", len(keys))
	}

	remaining, _ := es.ListByArchive("ARC-20240305-002")
	if len(remaining) != 1 {
		t.Errorf("remaining = %d, want 1", len(remaining))
	}
	gone, _ := es.ListByArchive("ARC-20240305-001")
	if len(gone) != 0 {
		t.Errorf("exports of deleted archive = %d, want 0", len(gone))
	}
}
