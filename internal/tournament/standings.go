package tournament

import (
	"errors"
	"fmt"
	"sort"

	"arena-platform/backend/internal/models"

	"gorm.io/gorm"
)

// standingPoints is the primary ranking key within a group.
func standingPoints(e *models.TournamentEntry) int {
	return e.Win*3 + e.Draw
}

// sortStandings orders entries by points descending, score descending. The
// sort is stable so equal records keep their slot order.
func sortStandings(entries []models.TournamentEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		pi, pj := standingPoints(&entries[i]), standingPoints(&entries[j])
		if pi != pj {
			return pi > pj
		}
		return entries[i].Score > entries[j].Score
	})
}

// assignPromotionRanks recomputes promotion_rank for one group, writing
// 1..topN on the advancing entries and 0 on everyone else.
func assignPromotionRanks(db *gorm.DB, sessionID string, group, topN int) error {
	entries, err := entriesByGroup(db, sessionID, group)
	if err != nil {
		return err
	}
	sortStandings(entries)

	for i := range entries {
		rank := 0
		if i < topN {
			rank = i + 1
		}
		if entries[i].PromotionRank == rank {
			continue
		}
		if err := db.Model(&models.TournamentEntry{}).
			Where("id = ?", entries[i].ID).
			Update("promotion_rank", rank).Error; err != nil {
			return fmt.Errorf("failed to set promotion rank for entry %d: %w", entries[i].ID, err)
		}
	}
	return nil
}

// entriesByGroup loads one group's entries ordered by slot.
func entriesByGroup(db *gorm.DB, sessionID string, group int) ([]models.TournamentEntry, error) {
	var entries []models.TournamentEntry
	if err := db.Where("session_id = ? AND group_no = ?", sessionID, group).
		Order("slot ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load group %d: %w", group, err)
	}
	return entries, nil
}

// entryAt loads the entry occupying one slot of one group. A missing entry
// returns nil without an error; callers treat that as a data-integrity
// warning and skip the sub-step.
func entryAt(db *gorm.DB, sessionID string, group, slot int) (*models.TournamentEntry, error) {
	var entry models.TournamentEntry
	err := db.Where("session_id = ? AND group_no = ? AND slot = ?", sessionID, group, slot).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// recordOutcome applies one match result to both entries' standing columns.
func recordOutcome(db *gorm.DB, a, b *models.TournamentEntry, result fightResult) error {
	type delta struct {
		entry *models.TournamentEntry
		win   int
		draw  int
		lose  int
		gl    int
	}
	deltas := []delta{
		{entry: a, gl: result.goalDiff[0]},
		{entry: b, gl: result.goalDiff[1]},
	}
	switch result.winner {
	case 0:
		deltas[0].win, deltas[1].lose = 1, 1
	case 1:
		deltas[1].win, deltas[0].lose = 1, 1
	default:
		deltas[0].draw, deltas[1].draw = 1, 1
	}

	for _, d := range deltas {
		updates := map[string]interface{}{
			"win":   gorm.Expr("win + ?", d.win),
			"draw":  gorm.Expr("draw + ?", d.draw),
			"lose":  gorm.Expr("lose + ?", d.lose),
			"score": gorm.Expr("score + ?", d.gl),
		}
		if err := db.Model(&models.TournamentEntry{}).
			Where("id = ?", d.entry.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to record outcome for entry %d: %w", d.entry.ID, err)
		}
	}
	return nil
}
