package swap

import "errors"

// Validation failures: bad input shape, never retried automatically.
var (
	ErrMessageTooLong       = errors.New("swap: message exceeds 500 characters")
	ErrReceiverGoalRequired = errors.New("swap: receiver goal must be resolved by accept time")
	ErrReceiverGoalMismatch = errors.New("swap: receiver goal differs from the one chosen at propose time")
)

// Eligibility failures: the proposal may not legally be created with this
// input; not retryable without changing it.
var (
	ErrSelfSwap         = errors.New("swap: proposer and receiver are the same user")
	ErrGoalNotOwned     = errors.New("swap: goal is not owned by its stated user")
	ErrGoalNotVisible   = errors.New("swap: proposer goal is not visible to the receiver")
	ErrDuplicatePending = errors.New("swap: a pending proposal already exists for this goal pairing")
	ErrGoalBusy         = errors.New("swap: goal already has an active swap")
)

// Permission and conflict failures on transitions. Forbidden means the actor
// may never perform the action; AlreadyTerminal means the proposal moved on
// and the client should refresh its view.
var (
	ErrForbidden         = errors.New("swap: actor is not allowed to perform this transition")
	ErrAlreadyTerminal   = errors.New("swap: proposal is already in a terminal state")
	ErrInvalidTransition = errors.New("swap: invalid state transition")
)

// ErrNotFound is returned when no proposal exists for the identifier.
var ErrNotFound = errors.New("swap: proposal not found")
