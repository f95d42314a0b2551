package tournament

import (
	"math"
	"math/rand"

	"arena-platform/backend/internal/models"
)

type fightMode int

const (
	modeRoundRobin  fightMode = iota // max 10 rounds, draws allowed
	modeElimination                  // max 100 rounds, always produces a winner
)

const (
	roundRobinMaxRounds  = 10
	eliminationMaxRounds = 100
)

// fightResult reports the outcome for the two sides of one match. winner is
// 0 or 1 for a decided match and -1 for a draw. goalDiff feeds the score
// column used as the secondary ranking key.
type fightResult struct {
	winner   int
	goalDiff [2]int
}

// statFor returns the stat value scoring this competition type.
func statFor(competitionType int, e *models.TournamentEntry) int {
	switch competitionType {
	case CompetitionLeadership:
		return e.Leadership
	case CompetitionStrength:
		return e.Strength
	case CompetitionIntel:
		return e.Intel
	default:
		return int(math.Round(float64(e.Leadership+e.Strength+e.Intel) / 3))
	}
}

// levelAdjustments favors the higher-level side and penalizes the lower-level
// side by the same magnitude.
func levelAdjustments(levelA, levelB int) (float64, float64) {
	if levelA == levelB {
		return 1, 1
	}
	delta := levelA - levelB
	if delta < 0 {
		delta = -delta
	}
	adj := math.Log10(1+float64(delta)) / 10
	if levelA > levelB {
		return 1 + adj, 1 - adj
	}
	return 1 - adj, 1 + adj
}

// fight simulates one match between sides a and b.
//
// Each side's energy starts at round(stat * levelAdjustment * 10). Per round
// both sides take round(ownStat * uniform[90,110] / 130) base damage plus,
// with probability equal to the attacker's stat percent, a bonus hit of
// round(attackerStat * uniform[10,50] / 130); both energies drop
// simultaneously. A simultaneous knockout is a draw in round-robin mode; in
// elimination mode both energies reset to half their initial value and the
// fight continues. An elimination fight that reaches the round cap is decided
// by remaining energy, then by slot order.
func fight(rng *rand.Rand, a, b *models.TournamentEntry, competitionType int, mode fightMode) fightResult {
	statA := statFor(competitionType, a)
	statB := statFor(competitionType, b)
	adjA, adjB := levelAdjustments(a.Level, b.Level)

	initialA := int(math.Round(float64(statA) * adjA * 10))
	initialB := int(math.Round(float64(statB) * adjB * 10))
	energyA, energyB := initialA, initialB

	maxRounds := roundRobinMaxRounds
	if mode == modeElimination {
		maxRounds = eliminationMaxRounds
	}

	var dealtA, dealtB int // damage each side has inflicted on the other
	result := fightResult{winner: -1}

	for round := 0; round < maxRounds; round++ {
		dmgToB := damage(rng, statA, statB)
		dmgToA := damage(rng, statB, statA)
		energyA -= dmgToA
		energyB -= dmgToB
		dealtA += dmgToB
		dealtB += dmgToA

		if energyA <= 0 && energyB <= 0 {
			if mode == modeRoundRobin {
				break // draw
			}
			energyA = initialA / 2
			energyB = initialB / 2
			continue
		}
		if energyA <= 0 {
			result.winner = 1
			break
		}
		if energyB <= 0 {
			result.winner = 0
			break
		}
	}

	if result.winner == -1 && mode == modeElimination {
		// Round cap reached: remaining energy decides, slot order breaks ties.
		if energyB > energyA {
			result.winner = 1
		} else {
			result.winner = 0
		}
	}

	result.goalDiff[0] = int(math.Round(float64(dealtA-dealtB) / 50))
	result.goalDiff[1] = int(math.Round(float64(dealtB-dealtA) / 50))
	return result
}

// damage computes the hit one attacker lands in a single round. The base
// component scales with the defender's stat, the bonus with the attacker's.
func damage(rng *rand.Rand, attackerStat, defenderStat int) int {
	total := int(math.Round(float64(defenderStat) * (90 + rng.Float64()*20) / 130))
	if rng.Float64()*100 < float64(attackerStat) {
		total += int(math.Round(float64(attackerStat) * (10 + rng.Float64()*40) / 130))
	}
	return total
}
