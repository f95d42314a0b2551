package tournament

import (
	"errors"
	"fmt"
)

// Tournament errors
var (
	ErrSessionNotFound  = errors.New("game session not found")
	ErrNoSchedulerState = errors.New("no scheduler state for session")
	ErrInvalidState     = errors.New("invalid scheduler state")
)

// StageError wraps a failure inside one stage handler with enough context to
// find the exact replay position it aborted at.
type StageError struct {
	SessionID string
	State     int
	Phase     int
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s phase %d failed for session %s: %v",
		stateName(e.State), e.Phase, e.SessionID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
