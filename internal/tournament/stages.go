package tournament

import (
	"errors"
	"fmt"
	"log"
	"math"

	"arena-platform/backend/internal/betting"
	"arena-platform/backend/internal/models"

	"gorm.io/gorm"
)

// stepSignupClosed fills every qualifying group to capacity. Open slots are
// assigned from eligible session characters by weighted random draw (weight =
// stat score ^ 1.5); once candidates run out the remainder is padded with
// unnamed filler entries so all 8 groups hold 8 entrants.
func (e *Engine) stepSignupClosed(db *gorm.DB, sessionID string, st *SchedulerState) error {
	var existing []models.TournamentEntry
	if err := db.Where("session_id = ? AND group_no < ?", sessionID, groupCount).
		Find(&existing).Error; err != nil {
		return fmt.Errorf("failed to load signup entries: %w", err)
	}

	occupied := make(map[int]map[int]bool)
	entered := make(map[int64]bool)
	for _, entry := range existing {
		if occupied[entry.GroupNo] == nil {
			occupied[entry.GroupNo] = make(map[int]bool)
		}
		occupied[entry.GroupNo][entry.Slot] = true
		if entry.CharacterID != 0 {
			entered[entry.CharacterID] = true
		}
	}

	var characters []models.Character
	if err := db.Where("session_id = ?", sessionID).Find(&characters).Error; err != nil {
		return fmt.Errorf("failed to load session characters: %w", err)
	}
	candidates := make([]models.Character, 0, len(characters))
	for _, c := range characters {
		if !entered[c.ID] {
			candidates = append(candidates, c)
		}
	}

	var created []models.TournamentEntry
	for group := 0; group < groupCount; group++ {
		for slot := 0; slot < groupSize; slot++ {
			if occupied[group] != nil && occupied[group][slot] {
				continue
			}
			entry := e.fillEntry(sessionID, group, slot, st.CompetitionType, &candidates)
			created = append(created, entry)
		}
	}
	if len(created) > 0 {
		if err := db.Create(&created).Error; err != nil {
			return fmt.Errorf("failed to create qualifying entries: %w", err)
		}
	}

	log.Printf("[TOURNAMENT] session %s: qualifying groups filled (%d entries added)",
		sessionID, len(created))
	e.narrate(sessionID, "The arena gates close. Qualifying rounds begin.")
	st.State = StateQualifying
	st.Phase = 0
	return nil
}

// fillEntry picks one open slot's occupant: a weighted-random candidate while
// any remain, otherwise a generated filler.
func (e *Engine) fillEntry(sessionID string, group, slot, competitionType int, candidates *[]models.Character) models.TournamentEntry {
	if len(*candidates) > 0 {
		idx := e.weightedPick(*candidates, competitionType)
		c := (*candidates)[idx]
		*candidates = append((*candidates)[:idx], (*candidates)[idx+1:]...)
		return models.TournamentEntry{
			SessionID:   sessionID,
			GroupNo:     group,
			Slot:        slot,
			CharacterID: c.ID,
			NPC:         c.NPC,
			Name:        c.Name,
			Leadership:  c.Leadership,
			Strength:    c.Strength,
			Intel:       c.Intel,
			Level:       c.Level,
		}
	}
	stat := func() int { return 40 + e.rng.Intn(41) }
	return models.TournamentEntry{
		SessionID:  sessionID,
		GroupNo:    group,
		Slot:       slot,
		NPC:        true,
		Name:       fmt.Sprintf("Gladiator %d-%d", group, slot),
		Leadership: stat(),
		Strength:   stat(),
		Intel:      stat(),
		Level:      1 + e.rng.Intn(5),
	}
}

// weightedPick draws one candidate index with probability proportional to
// statScore^1.5.
func (e *Engine) weightedPick(candidates []models.Character, competitionType int) int {
	weights := make([]float64, len(candidates))
	var total float64
	for i, c := range candidates {
		w := math.Pow(float64(characterStat(competitionType, &c)), 1.5)
		if w < 1 {
			w = 1
		}
		weights[i] = w
		total += w
	}
	target := e.rng.Float64() * total
	for i, w := range weights {
		target -= w
		if target < 0 {
			return i
		}
	}
	return len(candidates) - 1
}

func characterStat(competitionType int, c *models.Character) int {
	switch competitionType {
	case CompetitionLeadership:
		return c.Leadership
	case CompetitionStrength:
		return c.Strength
	case CompetitionIntel:
		return c.Intel
	default:
		return int(math.Round(float64(c.Leadership+c.Strength+c.Intel) / 3))
	}
}

// stepQualifying plays one round-robin pairing across all 8 qualifying
// groups. On the final phase it also computes each group's top four.
func (e *Engine) stepQualifying(db *gorm.DB, sessionID string, st *SchedulerState) error {
	aSlot, bSlot := qualifyingPair(st.Phase)
	for group := 0; group < groupCount; group++ {
		if err := e.playGroupMatch(db, sessionID, GroupQualifyingBase+group, aSlot, bSlot, st.CompetitionType); err != nil {
			return err
		}
	}

	if st.Phase < qualifyingPhases-1 {
		st.Phase++
		return nil
	}
	for group := 0; group < groupCount; group++ {
		if err := assignPromotionRanks(db, sessionID, GroupQualifyingBase+group, qualifyingPromoted); err != nil {
			return err
		}
	}
	e.narrate(sessionID, "Qualifying is over. The seeding draw begins.")
	st.State = StateSeeding
	st.Phase = 0
	return nil
}

// playGroupMatch runs one round-robin fight between two slots of one group.
// Missing entries are logged and skipped rather than failing the tick.
func (e *Engine) playGroupMatch(db *gorm.DB, sessionID string, group, aSlot, bSlot, competitionType int) error {
	a, err := entryAt(db, sessionID, group, aSlot)
	if err != nil {
		return err
	}
	b, err := entryAt(db, sessionID, group, bSlot)
	if err != nil {
		return err
	}
	if a == nil || b == nil {
		log.Printf("[TOURNAMENT] warning: session %s group %d missing entry for slots %d/%d, match skipped",
			sessionID, group, aSlot, bSlot)
		return nil
	}
	result := fight(e.rng, a, b, competitionType, modeRoundRobin)
	return recordOutcome(db, a, b, result)
}

// stepSeeding draws one qualifier into a finals round-robin group. Phases
// 0-7 draw among the group winners, 8-15 among the runners-up, 16-31 among
// the remaining third and fourth seeds; a drawn entry leaves its pool.
func (e *Engine) stepSeeding(db *gorm.DB, sessionID string, st *SchedulerState) error {
	var ranks []int
	switch {
	case st.Phase < 8:
		ranks = []int{1}
	case st.Phase < 16:
		ranks = []int{2}
	default:
		ranks = []int{3, 4}
	}

	pool, err := seedPool(db, sessionID, ranks)
	if err != nil {
		return err
	}
	if len(pool) == 0 {
		log.Printf("[TOURNAMENT] warning: session %s seeding phase %d has an empty pool, draw skipped",
			sessionID, st.Phase)
	} else {
		pick := pool[e.rng.Intn(len(pool))]
		target := GroupFinalsBase + st.Phase%groupCount
		placed, err := entriesByGroup(db, sessionID, target)
		if err != nil {
			return err
		}
		if _, err := promoteEntry(db, &pick, target, len(placed)); err != nil {
			return err
		}
	}

	if st.Phase < seedingPhases-1 {
		st.Phase++
		return nil
	}
	e.narrate(sessionID, "The finals groups are drawn.")
	st.State = StateFinalsRoundRobin
	st.Phase = 0
	return nil
}

// seedPool lists qualifying entries with the given promotion ranks that have
// not been drawn into a finals group yet.
func seedPool(db *gorm.DB, sessionID string, ranks []int) ([]models.TournamentEntry, error) {
	var drawnIDs []int64
	if err := db.Model(&models.TournamentEntry{}).
		Where("session_id = ? AND group_no BETWEEN ? AND ?",
			sessionID, GroupFinalsBase, GroupFinalsBase+groupCount-1).
		Pluck("source_entry_id", &drawnIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to load drawn seeds: %w", err)
	}

	query := db.Where("session_id = ? AND group_no < ? AND promotion_rank IN ?",
		sessionID, groupCount, ranks)
	if len(drawnIDs) > 0 {
		query = query.Where("id NOT IN ?", drawnIDs)
	}
	var pool []models.TournamentEntry
	if err := query.Find(&pool).Error; err != nil {
		return nil, fmt.Errorf("failed to load seed pool: %w", err)
	}
	return pool, nil
}

// stepFinalsRoundRobin plays one of the six fixed pairings in every finals
// group; the last phase also computes each group's top two.
func (e *Engine) stepFinalsRoundRobin(db *gorm.DB, sessionID string, st *SchedulerState) error {
	pair := finalsPairs[st.Phase%len(finalsPairs)]
	for group := 0; group < groupCount; group++ {
		if err := e.playGroupMatch(db, sessionID, GroupFinalsBase+group, pair[0], pair[1], st.CompetitionType); err != nil {
			return err
		}
	}

	if st.Phase < finalsPhases-1 {
		st.Phase++
		return nil
	}
	for group := 0; group < groupCount; group++ {
		if err := assignPromotionRanks(db, sessionID, GroupFinalsBase+group, finalsPromoted); err != nil {
			return err
		}
	}
	st.State = StateBracketAssign
	st.Phase = 0
	return nil
}

// stepBracketAssign builds the round of 16 and opens the betting window.
// Match m pits the winner of finals group m against the runner-up of finals
// group (m+4) mod 8, so the two qualifiers of one group cannot meet before
// the quarterfinals.
func (e *Engine) stepBracketAssign(db *gorm.DB, sessionID string, unit int, st *SchedulerState) error {
	candidates := make(map[int64]string)
	for m := 0; m < groupCount; m++ {
		rank1, err := entryByRank(db, sessionID, GroupFinalsBase+m, 1)
		if err != nil {
			return err
		}
		rank2, err := entryByRank(db, sessionID, GroupFinalsBase+(m+4)%groupCount, 2)
		if err != nil {
			return err
		}
		for slot, src := range []*models.TournamentEntry{rank1, rank2} {
			if src == nil {
				log.Printf("[TOURNAMENT] warning: session %s bracket match %d side %d has no qualifier",
					sessionID, m, slot)
				continue
			}
			placed, err := promoteEntry(db, src, GroupRoundOf16Base+m, slot)
			if err != nil {
				return err
			}
			candidates[placed.ID] = placed.Name
		}
	}

	now := e.now()
	if _, err := e.bets.Open(sessionID, candidates, now, now.Add(bettingWindow(unit))); err != nil && !errors.Is(err, betting.ErrAlreadyOpen) {
		return fmt.Errorf("failed to open betting: %w", err)
	}
	e.narrate(sessionID, "Sixteen remain. Betting on the champion is open.")
	st.State = StateBetting
	st.Phase = 0
	return nil
}

// entryByRank finds the entry holding one promotion rank within a group.
func entryByRank(db *gorm.DB, sessionID string, group, rank int) (*models.TournamentEntry, error) {
	var entry models.TournamentEntry
	err := db.Where("session_id = ? AND group_no = ? AND promotion_rank = ?",
		sessionID, group, rank).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// stepBettingClose shuts the betting window and releases the bracket.
func (e *Engine) stepBettingClose(db *gorm.DB, sessionID string, st *SchedulerState) error {
	instance, err := e.bets.OpenInstance(sessionID)
	switch {
	case errors.Is(err, betting.ErrInstanceNotFound):
		log.Printf("[TOURNAMENT] warning: session %s has no open betting instance to close", sessionID)
	case err != nil:
		return fmt.Errorf("failed to find betting instance: %w", err)
	default:
		if err := e.bets.Close(instance.ID); err != nil {
			return fmt.Errorf("failed to close betting: %w", err)
		}
	}
	e.narrate(sessionID, "Betting is closed. The round of sixteen begins.")
	st.State = StateRoundOf16
	st.Phase = 0
	return nil
}

// bracketRound describes one elimination stage: where its matches live and
// where winners go.
type bracketRound struct {
	baseGroup int
	matches   int
	nextBase  int
	nextState int
}

var (
	roundOf16    = bracketRound{GroupRoundOf16Base, roundOf16Phases, GroupQuarterfinalBase, StateQuarterfinal}
	quarterfinal = bracketRound{GroupQuarterfinalBase, quarterPhases, GroupSemifinalBase, StateSemifinal}
	semifinal    = bracketRound{GroupSemifinalBase, semiPhases, GroupFinalMatch, StateFinal}
	grandFinal   = bracketRound{GroupFinalMatch, 1, GroupChampion, StateClosed}
)

// stepElimination plays the single match at the current phase of an
// elimination round and promotes the winner into the next round's group.
// The grand final additionally settles betting and rewards and closes the
// tournament.
func (e *Engine) stepElimination(db *gorm.DB, sessionID string, st *SchedulerState, round bracketRound) error {
	m := st.Phase
	group := round.baseGroup + m
	a, err := entryAt(db, sessionID, group, 0)
	if err != nil {
		return err
	}
	b, err := entryAt(db, sessionID, group, 1)
	if err != nil {
		return err
	}

	var winner *models.TournamentEntry
	switch {
	case a == nil && b == nil:
		log.Printf("[TOURNAMENT] warning: session %s group %d has no entrants, match skipped",
			sessionID, group)
	case a == nil || b == nil:
		// Walkover: the present side advances without a fight.
		winner = a
		if winner == nil {
			winner = b
		}
		log.Printf("[TOURNAMENT] warning: session %s group %d decided by walkover for entry %d",
			sessionID, group, winner.ID)
	default:
		result := fight(e.rng, a, b, st.CompetitionType, modeElimination)
		if err := recordOutcome(db, a, b, result); err != nil {
			return err
		}
		winner = a
		if result.winner == 1 {
			winner = b
		}
	}

	var champion *models.TournamentEntry
	if winner != nil {
		placed, err := promoteEntry(db, winner, round.nextBase+m/2, m%2)
		if err != nil {
			return err
		}
		if round.nextBase == GroupChampion {
			champion = placed
		}
	}

	if st.Phase < round.matches-1 {
		st.Phase++
		return nil
	}
	st.State = round.nextState
	st.Phase = 0
	if round.nextBase != GroupChampion {
		return nil
	}

	// The bracket is complete: crown, settle, and close the cycle.
	if champion != nil {
		e.narrate(sessionID, fmt.Sprintf("%s is the arena champion.", champion.Name))
		if err := e.settleTournament(db, sessionID, champion); err != nil {
			return err
		}
	} else {
		log.Printf("[TOURNAMENT] warning: session %s final produced no champion, settlement skipped",
			sessionID)
	}
	st.AutoAdvance = false
	return nil
}

// promoteEntry inserts a fresh row for an advancing participant in the next
// group. Prior rows are history and are never moved.
func promoteEntry(db *gorm.DB, src *models.TournamentEntry, group, slot int) (*models.TournamentEntry, error) {
	next := models.TournamentEntry{
		SessionID:     src.SessionID,
		GroupNo:       group,
		Slot:          slot,
		CharacterID:   src.CharacterID,
		SourceEntryID: src.ID,
		NPC:           src.NPC,
		Name:          src.Name,
		Leadership:    src.Leadership,
		Strength:      src.Strength,
		Intel:         src.Intel,
		Level:         src.Level,
	}
	if err := db.Create(&next).Error; err != nil {
		return nil, fmt.Errorf("failed to promote entry %d to group %d: %w", src.ID, group, err)
	}
	return &next, nil
}
