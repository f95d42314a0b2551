package state

import (
	"errors"
	"testing"

	"arena-platform/backend/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?mode=memory"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.StateEntry{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

type schedulerDoc struct {
	State     int  `json:"state"`
	Phase     int  `json:"phase"`
	AutoRun   bool `json:"auto_advance"`
	Iteration int  `json:"iteration"`
}

func TestSetGetRoundTrip(t *testing.T) {
	store := New(setupTestDB(t))

	in := schedulerDoc{State: 2, Phase: 17, AutoRun: true}
	if err := store.Set("tournament", "session-1", in); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var out schedulerDoc
	if err := store.Get("tournament", "session-1", &out); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestGetMissingKey(t *testing.T) {
	store := New(setupTestDB(t))

	var out schedulerDoc
	err := store.Get("tournament", "nope", &out)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetOverwrites(t *testing.T) {
	store := New(setupTestDB(t))

	if err := store.Set("tournament", "session-1", schedulerDoc{State: 2}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set("tournament", "session-1", schedulerDoc{State: 3, Phase: 5}); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}

	var out schedulerDoc
	if err := store.Get("tournament", "session-1", &out); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.State != 3 || out.Phase != 5 {
		t.Errorf("expected overwritten value, got %+v", out)
	}
}

func TestGetMany(t *testing.T) {
	store := New(setupTestDB(t))

	for _, key := range []string{"a", "b"} {
		if err := store.Set("tournament", key, schedulerDoc{Phase: 1}); err != nil {
			t.Fatalf("Set(%s) failed: %v", key, err)
		}
	}

	values, err := store.GetMany("tournament", []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(values))
	}
	if _, ok := values["missing"]; ok {
		t.Error("missing key should be absent from result")
	}
}

func TestNamespaceIsolation(t *testing.T) {
	store := New(setupTestDB(t))

	if err := store.Set("tournament", "k", 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var out int
	if err := store.Get("auction", "k", &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across namespaces, got %v", err)
	}
}

func TestIncrement(t *testing.T) {
	store := New(setupTestDB(t))

	got, err := store.Increment("rank", "char-9", 3)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if got != 3 {
		t.Errorf("expected 3 on first increment, got %d", got)
	}

	got, err = store.Increment("rank", "char-9", -1)
	if err != nil {
		t.Fatalf("second Increment failed: %v", err)
	}
	if got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestKeysAndDelete(t *testing.T) {
	store := New(setupTestDB(t))

	for _, key := range []string{"s1", "s2", "s3"} {
		if err := store.Set("tournament", key, 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	keys, err := store.Keys("tournament")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %v", keys)
	}

	if err := store.Delete("tournament", "s2"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	keys, _ = store.Keys("tournament")
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys after delete, got %v", keys)
	}

	// Deleting a missing key is a no-op.
	if err := store.Delete("tournament", "gone"); err != nil {
		t.Fatalf("Delete of missing key failed: %v", err)
	}
}
