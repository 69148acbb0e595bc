package gate

import (
	"errors"
	"fmt"
)

var (
	// ErrChallengeDismissed is returned when the second-factor prompt is closed without a code.
	ErrChallengeDismissed = errors.New("second-factor challenge dismissed")

	// ErrBodyNotReplayable is returned when a request must be resubmitted but its body
	// cannot be re-read (no GetBody).
	ErrBodyNotReplayable = errors.New("request body cannot be replayed")
)

// DecorateError is returned when the pre-send hook cannot prepare a request.
// It is never retried.
type DecorateError struct {
	Err error
}

func (e *DecorateError) Error() string {
	if e == nil || e.Err == nil {
		return "gate: decorate request"
	}
	return fmt.Sprintf("gate: decorate request: %v", e.Err)
}

func (e *DecorateError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RefreshError carries an unexpected failure of the shared session refresh back to the
// request that initiated it.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	if e == nil || e.Err == nil {
		return "gate: session refresh failed"
	}
	return fmt.Sprintf("gate: session refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ChallengeError rejects a request that was parked on a second-factor challenge.
type ChallengeError struct {
	Err error
}

func (e *ChallengeError) Error() string {
	if e == nil || e.Err == nil {
		return "gate: second-factor challenge failed"
	}
	return fmt.Sprintf("gate: second-factor challenge failed: %v", e.Err)
}

func (e *ChallengeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
