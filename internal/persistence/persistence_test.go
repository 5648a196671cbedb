package persistence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/pointkeeper/internal/database"
	"github.com/dukerupert/pointkeeper/internal/model"
)

var stamp = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleData() model.StoreData {
	return model.StoreData{
		Members: []model.Member{
			{ID: "MEM-20240305-001", Name: "Ada", Division: "Alpha", TotalPoints: 10, AdminID: "USR-ADM-20240305-001"},
		},
		Rules: []model.Rule{
			{ID: "RUL-ACH-20240305-001", Description: "Helped", Type: model.RuleAchievement, Points: 10, AdminID: "USR-ADM-20240305-001"},
		},
		Transactions: []model.Transaction{
			{ID: "TRX-ACH-20240305-001", MemberID: "MEM-20240305-001", ContributorID: "USR-CON-20240305-001",
				RuleID: "RUL-ACH-20240305-001", Timestamp: stamp, PointsSnapshot: 10, AdminID: "USR-ADM-20240305-001"},
		},
		AuditLogs: []model.AuditLog{
			{ID: "LOG-ACH-20240305-001", Timestamp: stamp, Action: model.AuditCreate, MemberID: "MEM-20240305-001",
				ContributorID: "USR-CON-20240305-001", Details: "Helped", Points: 10, AdminID: "USR-ADM-20240305-001"},
		},
	}
}

// backends returns every adapter that can run without external services.
func backends(t *testing.T) map[string]Adapter {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bdg, err := OpenBadger(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { bdg.Close() })

	out := map[string]Adapter{
		BackendSQLite: NewSQLiteStore(db),
		BackendBadger: bdg,
		BackendMemory: NewMemoryStore(),
	}
	if dsn := os.Getenv("POINTKEEPER_TEST_POSTGRES_DSN"); dsn != "" {
		pg, err := OpenPostgres(context.Background(), dsn)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		if _, err := pg.db.Exec(`DELETE FROM ledger_state`); err != nil {
			t.Fatalf("reset postgres: %v", err)
		}
		t.Cleanup(func() { pg.Close() })
		out[BackendPostgres] = pg
	}
	return out
}

func TestLoadEmptyReturnsDefaults(t *testing.T) {
	for name, a := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := a.Load(context.Background())
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.Members == nil || got.Rules == nil || got.WarningRules == nil || got.Transactions == nil ||
				got.AuditLogs == nil || got.Archives == nil || got.Users == nil || got.Appeals == nil {
				t.Errorf("load on empty backend returned nil collections: %+v", got)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	for name, a := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := a.Save(ctx, sampleData()); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := a.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(got.Members) != 1 || got.Members[0].TotalPoints != 10 {
				t.Errorf("members = %+v", got.Members)
			}
			if len(got.Transactions) != 1 || !got.Transactions[0].Timestamp.Equal(stamp) {
				t.Errorf("transactions = %+v", got.Transactions)
			}
			if len(got.AuditLogs) != 1 || got.AuditLogs[0].Action != model.AuditCreate {
				t.Errorf("audit logs = %+v", got.AuditLogs)
			}
			if got.Appeals == nil || len(got.Appeals) != 0 {
				t.Errorf("appeals = %#v, want empty", got.Appeals)
			}
		})
	}
}

func TestPartialSaveKeepsOtherCollections(t *testing.T) {
	ctx := context.Background()
	for name, a := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := a.Save(ctx, sampleData()); err != nil {
				t.Fatalf("save: %v", err)
			}
			members := []model.Member{
				{ID: "MEM-20240305-001", Name: "Ada", Division: "Alpha", TotalPoints: 0, AdminID: "USR-ADM-20240305-001"},
			}
			if err := a.Save(ctx, model.StoreData{Members: members, Transactions: []model.Transaction{}}); err != nil {
				t.Fatalf("partial save: %v", err)
			}
			got, err := a.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.Members[0].TotalPoints != 0 {
				t.Errorf("members not replaced: %+v", got.Members)
			}
			if len(got.Transactions) != 0 {
				t.Errorf("empty transactions should clear the collection, got %d", len(got.Transactions))
			}
			if len(got.Rules) != 1 || len(got.AuditLogs) != 1 {
				t.Errorf("omitted collections changed: rules=%d audit=%d", len(got.Rules), len(got.AuditLogs))
			}
		})
	}
}

func TestDecodeAllSkipsUnknownAndEmpty(t *testing.T) {
	got, err := decodeAll(func(add func(string, []byte) error) error {
		for _, row := range []struct {
			bucket string
			raw    string
		}{
			{"members", `[{"id":"MEM-20240305-001","name":"Ada","division":"Alpha"}]`},
			{"legacy", `not json`},
			{"rules", ``},
		} {
			if err := add(row.bucket, []byte(row.raw)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Members) != 1 || got.Members[0].Name != "Ada" {
		t.Errorf("members = %+v", got.Members)
	}
	if got.Rules == nil || len(got.Rules) != 0 {
		t.Errorf("rules = %#v, want empty", got.Rules)
	}
}

func TestSQLiteLoadReportsCorruptBucket(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(
		`INSERT INTO ledger_state (bucket, payload, updated_at) VALUES ('members', '{broken', '2024-03-05T10:00:00Z')`,
	); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err = NewSQLiteStore(db).Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "decode members") {
		t.Fatalf("load err = %v, want decode members error", err)
	}
}

type failingAdapter struct {
	mu    sync.Mutex
	fail  bool
	saves []model.StoreData
}

func (f *failingAdapter) Load(ctx context.Context) (model.StoreData, error) {
	return model.StoreData{}, errors.New("backend unreachable")
}

func (f *failingAdapter) Save(ctx context.Context, data model.StoreData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("backend unreachable")
	}
	f.saves = append(f.saves, data)
	return nil
}

func (f *failingAdapter) Close() error { return nil }

func (f *failingAdapter) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *failingAdapter) saved() []model.StoreData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.StoreData(nil), f.saves...)
}

func TestResilientLoadFallsBack(t *testing.T) {
	r := NewResilient(&failingAdapter{}, "test", discardLogger())

	got, err := r.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Members == nil || got.Appeals == nil || len(got.Members) != 0 {
		t.Errorf("expected default dataset, got %+v", got)
	}
}

func TestResilientSaveReportsErrors(t *testing.T) {
	f := &failingAdapter{fail: true}
	r := NewResilient(f, "test", discardLogger())

	if err := r.Save(context.Background(), sampleData()); err == nil {
		t.Error("expected save error")
	}
}

func TestWriterCoalesces(t *testing.T) {
	f := &failingAdapter{}
	w := NewWriter(f, discardLogger())

	data := sampleData()
	w.Enqueue(model.StoreData{Members: data.Members})
	w.Enqueue(model.StoreData{Rules: data.Rules})
	w.Enqueue(model.StoreData{Members: []model.Member{}})

	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	saves := f.saved()
	if len(saves) != 1 {
		t.Fatalf("saves = %d, want 1", len(saves))
	}
	if saves[0].Members == nil || len(saves[0].Members) != 0 {
		t.Errorf("latest members should win, got %+v", saves[0].Members)
	}
	if len(saves[0].Rules) != 1 {
		t.Errorf("rules = %+v", saves[0].Rules)
	}
	if saves[0].Transactions != nil {
		t.Errorf("untouched collections should stay nil")
	}
	if w.Pending() {
		t.Error("writer still pending after flush")
	}
}

func TestWriterKeepsChangesAfterFailure(t *testing.T) {
	f := &failingAdapter{fail: true}
	w := NewWriter(f, discardLogger())
	data := sampleData()

	w.Enqueue(model.StoreData{Members: data.Members, Rules: data.Rules})
	if err := w.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}
	if !w.Pending() {
		t.Fatal("failed changes should stay pending")
	}

	w.Enqueue(model.StoreData{Members: []model.Member{}})
	f.setFail(false)
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	saves := f.saved()
	if len(saves) != 1 {
		t.Fatalf("saves = %d, want 1", len(saves))
	}
	if len(saves[0].Members) != 0 {
		t.Errorf("newer members should replace the failed batch, got %+v", saves[0].Members)
	}
	if len(saves[0].Rules) != 1 {
		t.Errorf("rules from the failed batch were lost")
	}
}

func TestWriterRunFlushesOnShutdown(t *testing.T) {
	f := &failingAdapter{}
	w := NewWriter(f, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	w.Enqueue(sampleData())
	deadline := time.After(2 * time.Second)
	for len(f.saved()) == 0 {
		select {
		case <-deadline:
			t.Fatal("writer did not save")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop")
	}
	if w.Pending() {
		t.Error("writer left changes pending")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Options{Backend: "etcd"}, discardLogger()); err == nil {
		t.Error("expected error for unknown backend")
	}
	r, err := Open(context.Background(), Options{Backend: BackendMemory}, discardLogger())
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	defer r.Close()
}
