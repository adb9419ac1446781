package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reflexion/internal/slogutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), ".reflexion", "reflexion.db"), slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

func TestDatabaseInitialization(t *testing.T) {
	db := setupTestDB(t)

	if _, err := os.Stat(db.Path()); err != nil {
		t.Fatalf("Database file was not created at %s: %v", db.Path(), err)
	}

	version, err := db.getSchemaVersion()
	if err != nil {
		t.Fatalf("Failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("Expected schema version %d, got %d", currentSchemaVersion, version)
	}
}

func TestReopenRunsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	logger := slogutil.NewDiscardLogger()

	db, err := Open(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	store := NewRunStore(db, CompressionZstd)
	saved, err := store.SaveRun(Run{InputDigest: "d1"}, []byte(`{"edges":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = Open(path, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if _, _, err := NewRunStore(db, CompressionZstd).GetRun(saved.ID); err != nil {
		t.Errorf("GetRun() after reopen error = %v", err)
	}
}

func TestRunStore_SaveAndGet(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"source":"UI","target":"Application","state":"convergent"}`), 200)

	for _, c := range []Compression{CompressionZstd, CompressionNone} {
		t.Run(string(c), func(t *testing.T) {
			store := NewRunStore(setupTestDB(t), c)
			saved, err := store.SaveRun(Run{
				EngineVersion:  "test",
				GraphVersion:   3,
				InputDigest:    "abc",
				ReflexionEdges: 5,
				Violations:     1,
				UnmappedEdges:  2,
				DurationMs:     12,
			}, payload)
			if err != nil {
				t.Fatalf("SaveRun() error = %v", err)
			}
			if saved.ID == "" || saved.CreatedAt.IsZero() {
				t.Fatalf("SaveRun() = %+v", saved)
			}

			run, got, err := store.GetRun(saved.ID)
			if err != nil {
				t.Fatalf("GetRun() error = %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Error("payload does not round trip")
			}
			if run.GraphVersion != 3 || run.Violations != 1 || run.UnmappedEdges != 2 || !run.CreatedAt.Equal(saved.CreatedAt) {
				t.Errorf("GetRun() = %+v, want %+v", run, saved)
			}
		})
	}
}

func TestRunStore_ListAndDigest(t *testing.T) {
	store := NewRunStore(setupTestDB(t), CompressionZstd)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var ids []string
	for i, digest := range []string{"a", "b", "a"} {
		r, err := store.SaveRun(Run{InputDigest: digest, CreatedAt: base.Add(time.Duration(i) * time.Second)}, []byte("{}"))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, r.ID)
	}

	runs, err := store.ListRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 || runs[0].ID != ids[2] || runs[2].ID != ids[0] {
		t.Errorf("ListRuns() order = %v", runs)
	}
	if runs, _ := store.ListRuns(1); len(runs) != 1 {
		t.Errorf("ListRuns(1) = %d runs", len(runs))
	}

	latest, err := store.LatestRunByDigest("a")
	if err != nil || latest.ID != ids[2] {
		t.Errorf("LatestRunByDigest(a) = %+v, %v", latest, err)
	}
	if _, err := store.LatestRunByDigest("zzz"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LatestRunByDigest(zzz) error = %v", err)
	}
}

func TestRunStore_Delete(t *testing.T) {
	store := NewRunStore(setupTestDB(t), CompressionZstd)
	r, err := store.SaveRun(Run{}, []byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteRun(r.ID); err != nil {
		t.Fatalf("DeleteRun() error = %v", err)
	}
	if _, _, err := store.GetRun(r.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() after delete error = %v", err)
	}
	if err := store.DeleteRun(r.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("second DeleteRun() error = %v", err)
	}
}

func TestWithTx_RollsBack(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db, CompressionNone)
	r, err := store.SaveRun(Run{ID: "fixed"}, []byte("{}"))
	if err != nil {
		t.Fatal(err)
	}

	// A duplicate id fails on the runs insert; nothing is written.
	if _, err := store.SaveRun(Run{ID: r.ID}, []byte("other")); err == nil {
		t.Fatal("SaveRun() with duplicate id should fail")
	}
	_, payload, err := store.GetRun(r.ID)
	if err != nil || string(payload) != "{}" {
		t.Errorf("GetRun() = %q, %v", payload, err)
	}
}

func TestDigest(t *testing.T) {
	a, err := Digest(map[string]int{"x": 1, "y": 2}, []string{"p"})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Digest(map[string]int{"y": 2, "x": 1}, []string{"p"})
	c, _ := Digest(map[string]int{"x": 1, "y": 2}, []string{"q"})

	if a != b {
		t.Error("Digest() depends on map order")
	}
	if a == c {
		t.Error("Digest() ignores input")
	}
	if len(a) != 64 {
		t.Errorf("Digest() length = %d, want 64 hex chars", len(a))
	}
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{"": CompressionZstd, "zstd": CompressionZstd, "none": CompressionNone} {
		if got, err := ParseCompression(in); err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression(gzip) should fail")
	}
}
