package narrative

import (
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
	if err := db.AutoMigrate(&models.NarrativeEvent{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func TestAppendAndRecent(t *testing.T) {
	l := New(setupTestDB(t))

	l.Append("tournament:session-1", "Qualifying rounds begin.")
	l.Append("tournament:session-1", "The finals groups are drawn.")
	l.Append("tournament:session-2", "Another world, another story.")

	events, err := l.Recent("tournament:session-1", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	// Newest first.
	if events[0].Message != "The finals groups are drawn." {
		t.Errorf("unexpected newest event: %q", events[0].Message)
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	l := New(setupTestDB(t))
	for i := 0; i < 5; i++ {
		l.Append("scope", "event")
	}

	events, err := l.Recent("scope", 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("got %d events, want 3", len(events))
	}
}
