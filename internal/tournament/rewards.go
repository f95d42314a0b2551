package tournament

import (
	"errors"
	"fmt"
	"log"
	"time"

	"arena-platform/backend/internal/betting"
	"arena-platform/backend/internal/models"
	"arena-platform/backend/internal/state"

	"gorm.io/gorm"
)

// Reward tiers by final placing.
const (
	PlacingChampion     = 1
	PlacingRunnerUp     = 2
	PlacingSemifinalist = 3

	rewardChampionGold    = 10000
	rewardRunnerUpGold    = 5000
	rewardSemifinalGold   = 2500
	rewardChampionPoints  = 100
	rewardRunnerUpPoints  = 50
	rewardSemifinalPoints = 25
)

// settlementMarker is the persisted rewards_settled guard. The lock TTL alone
// cannot give exactly-once across a crash, so settlement is checked against
// this marker before any gold moves.
type settlementMarker struct {
	ChampionEntryID int64     `json:"championEntryId"`
	SettledAt       time.Time `json:"settledAt"`
}

func rewardsSettledKey(sessionID string) string {
	return sessionID + ":rewards_settled"
}

// settleTournament resolves the betting instance on the champion and pays out
// the placing rewards. Safe to replay: a prior settlement marker makes the
// whole call a no-op, and the betting sink is idempotent on its own.
func (e *Engine) settleTournament(db *gorm.DB, sessionID string, champion *models.TournamentEntry) error {
	var marker settlementMarker
	err := e.states.Get(StateNamespace, rewardsSettledKey(sessionID), &marker)
	if err == nil {
		log.Printf("[TOURNAMENT] session %s rewards already settled at %s, skipping",
			sessionID, marker.SettledAt.Format(time.RFC3339))
		return nil
	}
	if !errors.Is(err, state.ErrNotFound) {
		return fmt.Errorf("failed to check settlement marker: %w", err)
	}

	if err := e.settleBetting(db, sessionID, champion); err != nil {
		// A lost betting instance must not hold the rewards hostage.
		log.Printf("[TOURNAMENT] warning: session %s betting settlement failed: %v", sessionID, err)
	}
	if err := e.payRewards(db, sessionID, champion); err != nil {
		return err
	}

	if _, err := e.states.Increment(StateNamespace, sessionID+":completed", 1); err != nil {
		return fmt.Errorf("failed to bump completion counter: %w", err)
	}
	marker = settlementMarker{ChampionEntryID: champion.ID, SettledAt: e.now()}
	if err := e.states.Set(StateNamespace, rewardsSettledKey(sessionID), &marker); err != nil {
		return fmt.Errorf("failed to write settlement marker: %w", err)
	}
	return nil
}

// settleBetting pays the tickets placed on the champion. Betting candidates
// are keyed by round-of-16 entry id, so the champion's row is traced back
// through its promotion chain to the bracket entry bettors saw.
func (e *Engine) settleBetting(db *gorm.DB, sessionID string, champion *models.TournamentEntry) error {
	instance, err := e.bets.Latest(sessionID)
	if errors.Is(err, betting.ErrInstanceNotFound) {
		log.Printf("[TOURNAMENT] session %s has no betting instance to settle", sessionID)
		return nil
	}
	if err != nil {
		return err
	}

	origin, err := bracketOrigin(db, champion)
	if err != nil {
		return err
	}
	if origin == nil {
		return fmt.Errorf("champion entry %d has no round-of-16 ancestor", champion.ID)
	}
	return e.bets.Settle(instance.ID, origin.ID)
}

// bracketOrigin walks an entry's promotion chain back to its round-of-16 row.
func bracketOrigin(db *gorm.DB, entry *models.TournamentEntry) (*models.TournamentEntry, error) {
	current := entry
	for current.GroupNo < GroupRoundOf16Base || current.GroupNo >= GroupQuarterfinalBase {
		if current.SourceEntryID == 0 {
			return nil, nil
		}
		var parent models.TournamentEntry
		if err := db.First(&parent, "id = ?", current.SourceEntryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to walk promotion chain from entry %d: %w", current.ID, err)
		}
		current = &parent
	}
	return current, nil
}

// payRewards credits gold and rank score for the champion, the runner-up and
// both losing semifinalists. Filler entries earn nothing. The unique payout
// index is the second line of defense behind the settlement marker.
func (e *Engine) payRewards(db *gorm.DB, sessionID string, champion *models.TournamentEntry) error {
	type award struct {
		entry   *models.TournamentEntry
		placing int
		gold    int
		points  int
	}
	awards := []award{{champion, PlacingChampion, rewardChampionGold, rewardChampionPoints}}

	finalists, err := entriesByGroup(db, sessionID, GroupFinalMatch)
	if err != nil {
		return err
	}
	finalistIDs := make(map[int64]bool)
	for i := range finalists {
		finalistIDs[finalists[i].ID] = true
		if finalists[i].ID != champion.SourceEntryID {
			awards = append(awards, award{&finalists[i], PlacingRunnerUp, rewardRunnerUpGold, rewardRunnerUpPoints})
		}
	}

	promotedFrom := make(map[int64]bool)
	for i := range finalists {
		promotedFrom[finalists[i].SourceEntryID] = true
	}
	for g := 0; g < semiPhases; g++ {
		semis, err := entriesByGroup(db, sessionID, GroupSemifinalBase+g)
		if err != nil {
			return err
		}
		for i := range semis {
			if !promotedFrom[semis[i].ID] {
				awards = append(awards, award{&semis[i], PlacingSemifinalist, rewardSemifinalGold, rewardSemifinalPoints})
			}
		}
	}

	for _, a := range awards {
		if a.entry.CharacterID == 0 {
			continue // unnamed fillers are not paid
		}
		payout := models.RewardPayout{
			SessionID:   sessionID,
			CharacterID: a.entry.CharacterID,
			Placing:     a.placing,
			Amount:      a.gold,
		}
		if err := db.Create(&payout).Error; err != nil {
			return fmt.Errorf("failed to record payout for character %d: %w", a.entry.CharacterID, err)
		}
		if err := db.Model(&models.Character{}).
			Where("id = ?", a.entry.CharacterID).
			Updates(map[string]interface{}{
				"gold":       gorm.Expr("gold + ?", a.gold),
				"rank_score": gorm.Expr("rank_score + ?", a.points),
			}).Error; err != nil {
			return fmt.Errorf("failed to credit character %d: %w", a.entry.CharacterID, err)
		}
		log.Printf("[TOURNAMENT] session %s: character %d (%s) paid %d gold for placing %d",
			sessionID, a.entry.CharacterID, a.entry.Name, a.gold, a.placing)
	}
	return nil
}
