package swap

import (
	"context"
	"fmt"
)

// GoalDirectory is the goal collaborator consumed by the checker. Ownership
// and visibility rules live with the goal domain, not here.
type GoalDirectory interface {
	IsOwner(ctx context.Context, userID, goalID string) (bool, error)
	IsVisible(ctx context.Context, goalID, viewerID string) (bool, error)
}

// Pairing identifies a would-be swap by its user pair and goal pair.
// ReceiverGoalID may be empty when the choice is deferred.
type Pairing struct {
	ProposerUserID string
	ReceiverUserID string
	ProposerGoalID string
	ReceiverGoalID string
}

// PendingIndex is the read side of the store the checker consults. The
// duplicate check here is advisory; the storage-level uniqueness constraint is
// the authoritative guard under concurrent proposes.
type PendingIndex interface {
	HasPendingForPairing(ctx context.Context, pairing Pairing) (bool, error)
	HasActiveForGoal(ctx context.Context, goalID string) (bool, error)
}

// Eligibility decides whether a proposal may legally be created. It performs
// reads only and never mutates state.
type Eligibility struct {
	goals GoalDirectory
	index PendingIndex

	// allowConcurrent permits a goal to sit in more than one accepted swap.
	allowConcurrent bool
}

// NewEligibility builds a checker over the goal directory and pending index.
func NewEligibility(goals GoalDirectory, index PendingIndex, allowConcurrent bool) *Eligibility {
	return &Eligibility{
		goals:           goals,
		index:           index,
		allowConcurrent: allowConcurrent,
	}
}

// Check applies the eligibility rules in order, short-circuiting on the first
// failure. receiverGoalID may be empty when the choice is deferred.
func (e *Eligibility) Check(ctx context.Context, proposerUserID, proposerGoalID, receiverUserID, receiverGoalID string) error {
	if proposerUserID == receiverUserID {
		return ErrSelfSwap
	}

	owned, err := e.goals.IsOwner(ctx, proposerUserID, proposerGoalID)
	if err != nil {
		return fmt.Errorf("swap: check proposer goal ownership: %w", err)
	}
	if !owned {
		return ErrGoalNotOwned
	}

	visible, err := e.goals.IsVisible(ctx, proposerGoalID, receiverUserID)
	if err != nil {
		return fmt.Errorf("swap: check proposer goal visibility: %w", err)
	}
	if !visible {
		return ErrGoalNotVisible
	}

	if receiverGoalID != "" {
		owned, err := e.goals.IsOwner(ctx, receiverUserID, receiverGoalID)
		if err != nil {
			return fmt.Errorf("swap: check receiver goal ownership: %w", err)
		}
		if !owned {
			return ErrGoalNotOwned
		}
	}

	dup, err := e.index.HasPendingForPairing(ctx, Pairing{
		ProposerUserID: proposerUserID,
		ReceiverUserID: receiverUserID,
		ProposerGoalID: proposerGoalID,
		ReceiverGoalID: receiverGoalID,
	})
	if err != nil {
		return fmt.Errorf("swap: check pending pairing: %w", err)
	}
	if dup {
		return ErrDuplicatePending
	}

	if !e.allowConcurrent {
		for _, goalID := range []string{proposerGoalID, receiverGoalID} {
			if goalID == "" {
				continue
			}
			busy, err := e.index.HasActiveForGoal(ctx, goalID)
			if err != nil {
				return fmt.Errorf("swap: check active swaps for goal: %w", err)
			}
			if busy {
				return ErrGoalBusy
			}
		}
	}

	return nil
}
