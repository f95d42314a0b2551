package tournament

// Scheduler states. The numeric values are persisted, do not renumber.
const (
	StateClosed = iota
	StateSignupClosed
	StateQualifying
	StateSeeding
	StateFinalsRoundRobin
	StateBracketAssign
	StateBetting
	StateRoundOf16
	StateQuarterfinal
	StateSemifinal
	StateFinal
)

// Competition types select which stat axis scores the matches.
const (
	CompetitionAggregate = iota
	CompetitionLeadership
	CompetitionStrength
	CompetitionIntel
)

// Group number ranges. A group encodes both the stage and the bracket
// position; within elimination groups slot 0 and 1 are the two match sides.
const (
	GroupQualifyingBase   = 0  // groups 0-7, 8 entrants each
	GroupFinalsBase       = 10 // groups 10-17, 4 entrants each
	GroupRoundOf16Base    = 20 // groups 20-27, one match each
	GroupQuarterfinalBase = 30 // groups 30-33
	GroupSemifinalBase    = 40 // groups 40-41
	GroupFinalMatch       = 50
	GroupChampion         = 60
)

const (
	groupCount      = 8
	groupSize       = 8
	finalsGroupSize = 4

	qualifyingPhases = 56 // 28 pairings, both sides
	seedingPhases    = 32
	finalsPhases     = 6
	roundOf16Phases  = 8
	quarterPhases    = 4
	semiPhases       = 2

	qualifyingPromoted = 4 // advance per qualifying group
	finalsPromoted     = 2 // advance per finals group
)

// qualifyingPairs is the fixed round-robin schedule for an 8-entrant group:
// 7 rounds of 4 pairings covering every unordered slot pair exactly once.
// Phases 0-27 index it directly, phases 28-55 replay it with sides swapped.
// In-progress tournaments resume by phase number, so the order is frozen.
var qualifyingPairs = [28][2]int{
	{0, 7}, {1, 6}, {2, 5}, {3, 4},
	{1, 7}, {2, 0}, {3, 6}, {4, 5},
	{2, 7}, {3, 1}, {4, 0}, {5, 6},
	{3, 7}, {4, 2}, {5, 1}, {6, 0},
	{4, 7}, {5, 3}, {6, 2}, {0, 1},
	{5, 7}, {6, 4}, {0, 3}, {1, 2},
	{6, 7}, {0, 5}, {1, 4}, {2, 3},
}

// finalsPairs covers every unordered pair of a 4-entrant group exactly once.
var finalsPairs = [6][2]int{
	{0, 1}, {2, 3}, {0, 2}, {1, 3}, {0, 3}, {1, 2},
}

// qualifyingPair returns the two slot indices that face off at the given
// qualifying phase, with sides swapped in the second half of the schedule.
func qualifyingPair(phase int) (int, int) {
	pair := qualifyingPairs[phase%len(qualifyingPairs)]
	if phase >= len(qualifyingPairs) {
		return pair[1], pair[0]
	}
	return pair[0], pair[1]
}

var stateNames = map[int]string{
	StateClosed:           "CLOSED",
	StateSignupClosed:     "SIGNUP_CLOSED",
	StateQualifying:       "QUALIFYING",
	StateSeeding:          "SEEDING",
	StateFinalsRoundRobin: "FINALS_ROUND_ROBIN",
	StateBracketAssign:    "BRACKET_ASSIGN",
	StateBetting:          "BETTING",
	StateRoundOf16:        "ROUND_OF_16",
	StateQuarterfinal:     "QUARTERFINAL",
	StateSemifinal:        "SEMIFINAL",
	StateFinal:            "FINAL",
}

func stateName(state int) string {
	if name, ok := stateNames[state]; ok {
		return name
	}
	return "UNKNOWN"
}
