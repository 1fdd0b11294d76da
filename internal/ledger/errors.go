package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job id is unknown or already purged.
	ErrJobNotFound = errors.New("job not found")

	// ErrAlreadyClaimed is returned when a claim loses the race against an
	// active runner holding the job's claim token.
	ErrAlreadyClaimed = errors.New("job already claimed")

	// ErrStaleRunner is returned when a commit carries a claim token that no
	// longer matches the job record. The committing runner must stop.
	ErrStaleRunner = errors.New("claim token mismatch, runner is stale")

	// ErrProgressRegression is returned when a commit would decrease progress.
	ErrProgressRegression = errors.New("progress must be non-decreasing")
)

// IllegalTransitionError rejects a pause/resume/cancel/delete request that is
// inapplicable given the job's current status. The record is left unchanged.
type IllegalTransitionError struct {
	Current Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from status %q", e.Current)
}

// ValidationError marks bad configuration or input detected before any
// segment runs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}
