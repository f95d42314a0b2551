package narrative

import (
	"log"

	"arena-platform/backend/internal/models"

	"gorm.io/gorm"
)

// Log appends story events for players to read later. Appending is
// fire-and-forget: a lost narrative line must never fail a tournament tick.
type Log struct {
	db *gorm.DB
}

// New creates a new narrative log
func New(db *gorm.DB) *Log {
	return &Log{db: db}
}

// Append records one event under a scope (e.g. "tournament:<session>").
// Failures are logged and swallowed.
func (l *Log) Append(scope, message string) {
	event := models.NarrativeEvent{
		Scope:   scope,
		Message: message,
	}
	if err := l.db.Create(&event).Error; err != nil {
		log.Printf("[NARRATIVE] failed to append event for %s: %v", scope, err)
	}
}

// Recent returns the latest events for a scope, newest first.
func (l *Log) Recent(scope string, limit int) ([]models.NarrativeEvent, error) {
	var events []models.NarrativeEvent
	err := l.db.Where("scope = ?", scope).
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
