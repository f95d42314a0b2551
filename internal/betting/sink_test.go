package betting

import (
	"errors"
	"testing"
	"time"

	"arena-platform/backend/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?mode=memory"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Character{}, &models.BettingInstance{}, &models.BettingTicket{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func createCharacter(t *testing.T, db *gorm.DB, id int64, gold int) {
	c := models.Character{
		ID:        id,
		SessionID: "session-1",
		Name:      "bettor",
		Gold:      gold,
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("Failed to create character: %v", err)
	}
}

func candidates() map[int64]string {
	return map[int64]string{101: "Zhang", 102: "Liu"}
}

func openInstance(t *testing.T, sink *Sink) string {
	now := time.Now()
	id, err := sink.Open("session-1", candidates(), now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return id
}

func getGold(t *testing.T, db *gorm.DB, id int64) int {
	var c models.Character
	if err := db.First(&c, "id = ?", id).Error; err != nil {
		t.Fatalf("Failed to fetch character: %v", err)
	}
	return c.Gold
}

func TestOpenRejectsSecondInstance(t *testing.T) {
	sink := New(setupTestDB(t))
	openInstance(t, sink)

	now := time.Now()
	if _, err := sink.Open("session-1", candidates(), now, now.Add(time.Hour)); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}
}

func TestPlaceWagerDeductsGold(t *testing.T) {
	db := setupTestDB(t)
	sink := New(db)
	createCharacter(t, db, 1, 500)
	id := openInstance(t, sink)

	if err := sink.PlaceWager(id, 1, 101, 200); err != nil {
		t.Fatalf("PlaceWager failed: %v", err)
	}
	if gold := getGold(t, db, 1); gold != 300 {
		t.Errorf("expected 300 gold after wager, got %d", gold)
	}

	if err := sink.PlaceWager(id, 1, 999, 50); !errors.Is(err, ErrInvalidCandidate) {
		t.Errorf("expected ErrInvalidCandidate, got %v", err)
	}
}

func TestPlaceWagerAfterClose(t *testing.T) {
	db := setupTestDB(t)
	sink := New(db)
	createCharacter(t, db, 1, 500)
	id := openInstance(t, sink)

	if err := sink.Close(id); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Closing again is a no-op.
	if err := sink.Close(id); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if err := sink.PlaceWager(id, 1, 101, 100); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestSettlePaysWinners(t *testing.T) {
	db := setupTestDB(t)
	sink := New(db)
	createCharacter(t, db, 1, 500)
	createCharacter(t, db, 2, 500)
	id := openInstance(t, sink)

	if err := sink.PlaceWager(id, 1, 101, 100); err != nil {
		t.Fatalf("PlaceWager failed: %v", err)
	}
	if err := sink.PlaceWager(id, 2, 102, 100); err != nil {
		t.Fatalf("PlaceWager failed: %v", err)
	}
	if err := sink.Close(id); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := sink.Settle(id, 101); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	if gold := getGold(t, db, 1); gold != 400+100*PayoutMultiplier {
		t.Errorf("winner balance: got %d, want %d", gold, 400+100*PayoutMultiplier)
	}
	if gold := getGold(t, db, 2); gold != 400 {
		t.Errorf("loser balance: got %d, want 400", gold)
	}
}

// TestSettleIdempotent replays settlement and checks no ticket is paid twice.
func TestSettleIdempotent(t *testing.T) {
	db := setupTestDB(t)
	sink := New(db)
	createCharacter(t, db, 1, 500)
	id := openInstance(t, sink)

	if err := sink.PlaceWager(id, 1, 101, 100); err != nil {
		t.Fatalf("PlaceWager failed: %v", err)
	}

	if err := sink.Settle(id, 101); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	first := getGold(t, db, 1)

	if err := sink.Settle(id, 101); err != nil {
		t.Fatalf("second Settle failed: %v", err)
	}
	if second := getGold(t, db, 1); second != first {
		t.Errorf("second settle changed balance: %d -> %d", first, second)
	}
}
