package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"arena-platform/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound occurs when a namespace/key pair has no stored value.
var ErrNotFound = errors.New("state entry not found")

// Store is a namespaced key/value store with JSON-serialized values. The
// tournament scheduler keeps its per-session position here; auxiliary
// counters (rank scores) use Increment.
type Store struct {
	db *gorm.DB
}

// New creates a new state store
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get unmarshals the value stored under (namespace, key) into out.
func (s *Store) Get(namespace, key string, out interface{}) error {
	var entry models.StateEntry
	err := s.db.Where("namespace = ? AND entry_key = ?", namespace, key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal([]byte(entry.Value), out)
}

// Set upserts the JSON serialization of v under (namespace, key).
func (s *Store) Set(namespace, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode state value: %w", err)
	}

	entry := models.StateEntry{
		Namespace: namespace,
		Key:       key,
		Value:     string(raw),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

// GetMany returns the raw JSON values for the requested keys. Missing keys
// are simply absent from the result.
func (s *Store) GetMany(namespace string, keys []string) (map[string]json.RawMessage, error) {
	var entries []models.StateEntry
	if err := s.db.Where("namespace = ? AND entry_key IN ?", namespace, keys).Find(&entries).Error; err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(entries))
	for _, e := range entries {
		out[e.Key] = json.RawMessage(e.Value)
	}
	return out, nil
}

// Keys lists every key stored under a namespace.
func (s *Store) Keys(namespace string) ([]string, error) {
	var keys []string
	err := s.db.Model(&models.StateEntry{}).
		Where("namespace = ?", namespace).
		Order("entry_key ASC").
		Pluck("entry_key", &keys).Error
	return keys, err
}

// Delete removes a single entry. Deleting a missing key is not an error.
func (s *Store) Delete(namespace, key string) error {
	return s.db.Where("namespace = ? AND entry_key = ?", namespace, key).
		Delete(&models.StateEntry{}).Error
}

// Increment adds delta to an integer-valued entry, creating it at delta when
// missing, and returns the new value. The read and write run in one
// transaction with a row lock so concurrent counters do not lose updates.
func (s *Store) Increment(namespace, key string, delta int64) (int64, error) {
	var result int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var entry models.StateEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("namespace = ? AND entry_key = ?", namespace, key).
			First(&entry).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			result = delta
			return tx.Create(&models.StateEntry{
				Namespace: namespace,
				Key:       key,
				Value:     fmt.Sprintf("%d", delta),
			}).Error
		case err != nil:
			return err
		}

		var current int64
		if err := json.Unmarshal([]byte(entry.Value), &current); err != nil {
			return fmt.Errorf("entry %s/%s is not an integer: %w", namespace, key, err)
		}

		result = current + delta
		return tx.Model(&models.StateEntry{}).
			Where("namespace = ? AND entry_key = ?", namespace, key).
			Update("value", fmt.Sprintf("%d", result)).Error
	})
	return result, err
}
