package betting

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"arena-platform/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInstanceNotFound occurs when a betting instance id does not exist
	ErrInstanceNotFound = errors.New("betting instance not found")
	// ErrAlreadyOpen occurs when a session already has an open instance
	ErrAlreadyOpen = errors.New("session already has an open betting instance")
	// ErrNotOpen occurs when placing a wager on a closed or settled instance
	ErrNotOpen = errors.New("betting instance is not open")
	// ErrInvalidCandidate occurs when wagering on an unknown candidate
	ErrInvalidCandidate = errors.New("candidate is not part of this betting instance")
)

// PayoutMultiplier is the flat odds paid on a winning ticket.
const PayoutMultiplier = 3

// Sink manages the wagering windows the tournament engine opens over the
// round-of-16 qualifiers. The engine only ever calls Open, Close and Settle;
// PlaceWager is the surface the game API consumes.
type Sink struct {
	db *gorm.DB
}

// New creates a new betting sink
func New(db *gorm.DB) *Sink {
	return &Sink{db: db}
}

// Open creates a new open betting instance over the given candidates and
// returns its id. A session can only have one open instance at a time.
func (s *Sink) Open(sessionID string, candidates map[int64]string, opensAt, closesAt time.Time) (string, error) {
	var existing models.BettingInstance
	err := s.db.Where("session_id = ? AND status = ?", sessionID, "open").First(&existing).Error
	if err == nil {
		return "", ErrAlreadyOpen
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	raw, err := json.Marshal(candidates)
	if err != nil {
		return "", fmt.Errorf("failed to encode candidates: %w", err)
	}

	instance := models.BettingInstance{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Status:     "open",
		Candidates: string(raw),
		OpensAt:    opensAt,
		ClosesAt:   closesAt,
	}
	if err := s.db.Create(&instance).Error; err != nil {
		return "", err
	}

	log.Printf("[BETTING] opened instance %s for session %s with %d candidates",
		instance.ID, sessionID, len(candidates))
	return instance.ID, nil
}

// OpenInstance returns the session's currently open instance, if any.
func (s *Sink) OpenInstance(sessionID string) (*models.BettingInstance, error) {
	var instance models.BettingInstance
	err := s.db.Where("session_id = ? AND status = ?", sessionID, "open").First(&instance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return &instance, nil
}

// Close stops accepting wagers. Closing an already-closed instance is a
// no-op so a replayed tick cannot fail here.
func (s *Sink) Close(bettingID string) error {
	result := s.db.Model(&models.BettingInstance{}).
		Where("id = ? AND status = ?", bettingID, "open").
		Update("status", "closed")
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("[BETTING] closed instance %s", bettingID)
	}
	return nil
}

// PlaceWager deducts the stake from the character and records a ticket.
func (s *Sink) PlaceWager(bettingID string, characterID, candidateID int64, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("wager amount must be positive")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var instance models.BettingInstance
		if err := tx.Where("id = ?", bettingID).First(&instance).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInstanceNotFound
			}
			return err
		}
		if instance.Status != "open" {
			return ErrNotOpen
		}

		var candidates map[int64]string
		if err := json.Unmarshal([]byte(instance.Candidates), &candidates); err != nil {
			return fmt.Errorf("failed to decode candidates: %w", err)
		}
		if _, ok := candidates[candidateID]; !ok {
			return ErrInvalidCandidate
		}

		var character models.Character
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&character, "id = ?", characterID).Error; err != nil {
			return err
		}
		if character.Gold < amount {
			return fmt.Errorf("insufficient gold for wager")
		}
		if err := tx.Model(&character).Update("gold", character.Gold-amount).Error; err != nil {
			return err
		}

		ticket := models.BettingTicket{
			BettingID:   bettingID,
			CharacterID: characterID,
			CandidateID: candidateID,
			Amount:      amount,
		}
		return tx.Create(&ticket).Error
	})
}

// Latest returns the most recently created betting instance for a session
// regardless of status.
func (s *Sink) Latest(sessionID string) (*models.BettingInstance, error) {
	var instance models.BettingInstance
	err := s.db.Where("session_id = ?", sessionID).
		Order("created_at DESC").First(&instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInstanceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

// Settle records the winner and pays every winning ticket at flat odds in a
// single transaction. Settling twice is a no-op: the status check and the
// per-ticket paid_out flag make replay after a crash safe.
func (s *Sink) Settle(bettingID string, winnerID int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var instance models.BettingInstance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", bettingID).First(&instance).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInstanceNotFound
			}
			return err
		}
		if instance.Status == "settled" {
			return nil
		}

		var tickets []models.BettingTicket
		if err := tx.Where("betting_id = ? AND candidate_id = ? AND paid_out = ?",
			bettingID, winnerID, false).Find(&tickets).Error; err != nil {
			return err
		}

		for _, ticket := range tickets {
			payout := ticket.Amount * PayoutMultiplier
			if err := tx.Model(&models.Character{}).
				Where("id = ?", ticket.CharacterID).
				Update("gold", gorm.Expr("gold + ?", payout)).Error; err != nil {
				return fmt.Errorf("failed to pay ticket %d: %w", ticket.ID, err)
			}
			if err := tx.Model(&models.BettingTicket{}).
				Where("id = ?", ticket.ID).
				Update("paid_out", true).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		if err := tx.Model(&instance).Updates(map[string]interface{}{
			"status":     "settled",
			"winner_id":  winnerID,
			"settled_at": now,
		}).Error; err != nil {
			return err
		}

		log.Printf("[BETTING] settled instance %s: winner %d, %d tickets paid",
			bettingID, winnerID, len(tickets))
		return nil
	})
}
