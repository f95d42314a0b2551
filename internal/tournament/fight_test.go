package tournament

import (
	"math"
	"math/rand"
	"testing"

	"arena-platform/backend/internal/models"
)

func testEntry(leadership, strength, intel, level int) *models.TournamentEntry {
	return &models.TournamentEntry{
		Leadership: leadership,
		Strength:   strength,
		Intel:      intel,
		Level:      level,
	}
}

func TestEliminationAlwaysProducesWinner(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := testEntry(80, 80, 80, 5)
	b := testEntry(80, 80, 80, 5)

	for i := 0; i < 500; i++ {
		result := fight(rng, a, b, CompetitionAggregate, modeElimination)
		if result.winner != 0 && result.winner != 1 {
			t.Fatalf("elimination fight %d ended without a winner: %d", i, result.winner)
		}
	}
}

func TestRoundRobinCanDraw(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := testEntry(90, 90, 90, 5)
	b := testEntry(90, 90, 90, 5)

	outcomes := make(map[int]int)
	for i := 0; i < 2000; i++ {
		result := fight(rng, a, b, CompetitionAggregate, modeRoundRobin)
		outcomes[result.winner]++
	}
	if outcomes[-1] == 0 {
		t.Error("expected at least one draw between equal opponents in round-robin mode")
	}
	if outcomes[0] == 0 || outcomes[1] == 0 {
		t.Errorf("expected both sides to win sometimes, got %v", outcomes)
	}
}

func TestLevelAdjustmentsSymmetric(t *testing.T) {
	tests := []struct {
		levelA, levelB int
	}{
		{5, 5},
		{10, 1},
		{1, 10},
		{3, 2},
	}
	for _, tt := range tests {
		adjA, adjB := levelAdjustments(tt.levelA, tt.levelB)
		if math.Abs((adjA-1)+(adjB-1)) > 1e-9 {
			t.Errorf("levels (%d, %d): adjustments %f and %f are not symmetric about 1", tt.levelA, tt.levelB, adjA, adjB)
		}
		if tt.levelA > tt.levelB && adjA <= adjB {
			t.Errorf("levels (%d, %d): higher level should get the larger adjustment", tt.levelA, tt.levelB)
		}
	}
}

func TestStatForCompetitionTypes(t *testing.T) {
	entry := testEntry(60, 90, 30, 1)
	tests := []struct {
		competitionType int
		want            int
	}{
		{CompetitionLeadership, 60},
		{CompetitionStrength, 90},
		{CompetitionIntel, 30},
		{CompetitionAggregate, 60},
	}
	for _, tt := range tests {
		if got := statFor(tt.competitionType, entry); got != tt.want {
			t.Errorf("statFor(%d) = %d, want %d", tt.competitionType, got, tt.want)
		}
	}
}

func TestGoalDiffSignsOpposite(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := testEntry(95, 95, 95, 10)
	b := testEntry(40, 40, 40, 1)

	for i := 0; i < 100; i++ {
		result := fight(rng, a, b, CompetitionAggregate, modeElimination)
		if result.goalDiff[0]+result.goalDiff[1] > 1 || result.goalDiff[0]+result.goalDiff[1] < -1 {
			// Rounding can shift the sum by at most one.
			t.Fatalf("goal differentials %v do not mirror each other", result.goalDiff)
		}
	}
}
