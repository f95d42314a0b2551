package tournament

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"arena-platform/backend/internal/betting"
	"arena-platform/backend/internal/models"
	"arena-platform/backend/internal/narrative"
	"arena-platform/backend/internal/state"

	"gorm.io/gorm"
)

// StateNamespace is the persistent-state namespace holding scheduler
// documents, keyed by session id.
const StateNamespace = "tournament"

const (
	minUnitSeconds = 5
	maxUnitSeconds = 120

	// maxIterations bounds the catch-up replay after long downtime.
	maxIterations = 600

	// minBettingWindowSeconds is the floor for how long a betting window
	// stays open regardless of the session's turn term.
	minBettingWindowSeconds = 3600
)

// SchedulerState is the persisted position of one tournament instance.
type SchedulerState struct {
	State           int       `json:"state"`
	Phase           int       `json:"phase"`
	CompetitionType int       `json:"competitionType"`
	AutoAdvance     bool      `json:"autoAdvance"`
	NextRunAt       time.Time `json:"nextRunAt"`
}

// Engine advances tournament instances through their stage graph. All methods
// assume the caller already holds the per-session distributed lock; the
// engine itself only guarantees sequential consistency within one Process
// call.
type Engine struct {
	db     *gorm.DB
	states *state.Store
	bets   *betting.Sink
	events *narrative.Log
	rng    *rand.Rand
	now    func() time.Time
}

// New creates a tournament engine over the shared database handle. The
// driver runs one Process goroutine per session, so the engine's rand source
// is serialized behind a mutex.
func New(db *gorm.DB, states *state.Store, bets *betting.Sink, events *narrative.Log) *Engine {
	src := rand.NewSource(time.Now().UnixNano()).(rand.Source64)
	return &Engine{
		db:     db,
		states: states,
		bets:   bets,
		events: events,
		rng:    rand.New(&lockedSource{src: src}),
		now:    time.Now,
	}
}

// lockedSource serializes access to a rand source. rand.Rand is not safe for
// concurrent use, and every session's fights and draws share the engine's
// source.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source64
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

// Announce opens a new tournament cycle for a session: prior entry rows are
// cleared and the scheduler state is reset to SIGNUP_CLOSED so the next tick
// begins filling groups.
func (e *Engine) Announce(ctx context.Context, sessionID string, competitionType int) error {
	db := e.db.WithContext(ctx)
	if err := db.Where("session_id = ?", sessionID).
		Delete(&models.TournamentEntry{}).Error; err != nil {
		return fmt.Errorf("failed to clear previous tournament entries: %w", err)
	}
	if err := e.states.Delete(StateNamespace, rewardsSettledKey(sessionID)); err != nil {
		return fmt.Errorf("failed to clear settlement marker: %w", err)
	}
	st := SchedulerState{
		State:           StateSignupClosed,
		Phase:           0,
		CompetitionType: competitionType,
		AutoAdvance:     true,
		NextRunAt:       e.now(),
	}
	if err := e.states.Set(StateNamespace, sessionID, &st); err != nil {
		return fmt.Errorf("failed to write scheduler state: %w", err)
	}
	log.Printf("[TOURNAMENT] announced new tournament for session %s (competition type %d)",
		sessionID, competitionType)
	return nil
}

// Process is the driver entry point: it reads the scheduler state, computes
// how many ticks have elapsed since nextRunAt and replays that many stage
// transitions. State is persisted once, at the end, so a failed replay leaves
// the stored position untouched and the next tick retries from the same
// point. Entering BETTING stops the replay early; the betting window is real
// time that must not be fast-forwarded.
func (e *Engine) Process(ctx context.Context, sessionID string) error {
	db := e.db.WithContext(ctx)

	var session models.GameSession
	if err := db.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var st SchedulerState
	if err := e.states.Get(StateNamespace, sessionID, &st); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil // no tournament scheduled for this session
		}
		return fmt.Errorf("failed to load scheduler state for %s: %w", sessionID, err)
	}
	if !st.AutoAdvance {
		return nil
	}
	now := e.now()
	if now.Before(st.NextRunAt) {
		return nil
	}

	unit := clampUnit(session.TurnTermMinutes)
	iterations := int(now.Sub(st.NextRunAt).Seconds())/unit + 1
	if iterations > maxIterations {
		iterations = maxIterations
	}

	enteredBetting := false
	for i := 0; i < iterations; i++ {
		if err := e.step(db, sessionID, unit, &st); err != nil {
			stageErr := &StageError{SessionID: sessionID, State: st.State, Phase: st.Phase, Err: err}
			log.Printf("[TOURNAMENT] replay aborted: %v", stageErr)
			return stageErr
		}
		if st.State == StateBetting {
			enteredBetting = true
			break
		}
	}

	if enteredBetting {
		st.NextRunAt = now.Add(bettingWindow(unit))
	} else {
		st.NextRunAt = st.NextRunAt.Add(time.Duration(unit*iterations) * time.Second)
	}
	if err := e.states.Set(StateNamespace, sessionID, &st); err != nil {
		return fmt.Errorf("failed to persist scheduler state for %s: %w", sessionID, err)
	}
	return nil
}

// step executes exactly one stage transition, mutating st in place. Durable
// side effects (entry rows, betting, rewards) happen here; the scheduler
// document itself is only written by Process.
func (e *Engine) step(db *gorm.DB, sessionID string, unit int, st *SchedulerState) error {
	switch st.State {
	case StateClosed:
		return nil
	case StateSignupClosed:
		return e.stepSignupClosed(db, sessionID, st)
	case StateQualifying:
		return e.stepQualifying(db, sessionID, st)
	case StateSeeding:
		return e.stepSeeding(db, sessionID, st)
	case StateFinalsRoundRobin:
		return e.stepFinalsRoundRobin(db, sessionID, st)
	case StateBracketAssign:
		return e.stepBracketAssign(db, sessionID, unit, st)
	case StateBetting:
		return e.stepBettingClose(db, sessionID, st)
	case StateRoundOf16:
		return e.stepElimination(db, sessionID, st, roundOf16)
	case StateQuarterfinal:
		return e.stepElimination(db, sessionID, st, quarterfinal)
	case StateSemifinal:
		return e.stepElimination(db, sessionID, st, semifinal)
	case StateFinal:
		return e.stepElimination(db, sessionID, st, grandFinal)
	default:
		return fmt.Errorf("%w: state %d", ErrInvalidState, st.State)
	}
}

// clampUnit converts a session's turn term to the catch-up unit in seconds.
func clampUnit(turnTermMinutes int) int {
	if turnTermMinutes < minUnitSeconds {
		return minUnitSeconds
	}
	if turnTermMinutes > maxUnitSeconds {
		return maxUnitSeconds
	}
	return turnTermMinutes
}

// bettingWindow is how long a betting instance stays open.
func bettingWindow(unit int) time.Duration {
	seconds := unit * 60
	if seconds < minBettingWindowSeconds {
		seconds = minBettingWindowSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (e *Engine) narrate(sessionID, message string) {
	if e.events != nil {
		e.events.Append("tournament:"+sessionID, message)
	}
}
