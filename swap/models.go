package swap

import "time"

// State is the lifecycle position of a proposal. Pending is the only
// non-terminal state.
type State string

const (
	StatePending   State = "pending"
	StateAccepted  State = "accepted"
	StateDeclined  State = "declined"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition is permitted from s.
func (s State) Terminal() bool {
	switch s {
	case StateAccepted, StateDeclined, StateCancelled:
		return true
	default:
		return false
	}
}

// MaxMessageLen caps the optional free-text message attached to a proposal.
const MaxMessageLen = 500

// Proposal mirrors the swap_proposals table. ReceiverGoalID may stay empty
// until accept time; RespondedAt is set exactly once, on the terminal
// transition.
type Proposal struct {
	ID             string
	ProposerUserID string
	ReceiverUserID string
	ProposerGoalID string
	ReceiverGoalID string
	Message        string
	State          State
	CreatedAt      time.Time
	RespondedAt    *time.Time
}

// Event captures an immutable lifecycle event for a proposal.
type Event struct {
	ID        int64
	SwapID    string
	Seq       int
	Type      string
	ActorID   *string
	CreatedAt time.Time
	Payload   []byte
}

// Event types appended alongside each state change.
const (
	EventProposed  = "SWAP_PROPOSED"
	EventAccepted  = "SWAP_ACCEPTED"
	EventDeclined  = "SWAP_DECLINED"
	EventCancelled = "SWAP_CANCELLED"
)

// Scope selects a read-side projection of a user's proposals.
type Scope string

const (
	ScopeIncoming Scope = "incoming"
	ScopeOutgoing Scope = "outgoing"
	ScopeActive   Scope = "active"
	ScopeHistory  Scope = "history"
)

// ValidScope reports whether s names a known projection.
func ValidScope(s Scope) bool {
	switch s {
	case ScopeIncoming, ScopeOutgoing, ScopeActive, ScopeHistory:
		return true
	default:
		return false
	}
}
