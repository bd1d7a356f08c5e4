package follow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"questswap/swap"
)

// TopicRetry carries follow creations that failed during the synchronous
// accept path; the outbox worker replays them until they land.
const TopicRetry = "swap.follow.retry"

// Creator is the idempotent follow-creation collaborator.
type Creator interface {
	EnsureFollow(ctx context.Context, userID, goalID string) error
}

// RetryQueue enqueues a deferred follow creation outside any transaction.
type RetryQueue interface {
	Enqueue(ctx context.Context, topic string, payload map[string]any) error
}

// PartialError reports which follow legs failed and were queued for retry.
// The accept itself has already committed when this is returned.
type PartialError struct {
	Legs []string
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("follow: %d follow creation(s) deferred to retry: %s", len(e.Legs), strings.Join(e.Legs, "; "))
}

// Dispatcher creates the reciprocal follow relationships when a swap is
// accepted: proposer follows the receiver's goal and vice versa. Each leg is
// attempted independently; a failed leg is queued for out-of-band retry and
// never unwinds the other leg or the accepted state.
type Dispatcher struct {
	follows Creator
	retries RetryQueue
}

// NewDispatcher wires the side-effect dispatcher.
func NewDispatcher(follows Creator, retries RetryQueue) *Dispatcher {
	return &Dispatcher{follows: follows, retries: retries}
}

// OnAccepted implements swap.Dispatcher.
func (d *Dispatcher) OnAccepted(ctx context.Context, p swap.Proposal) error {
	legs := []struct {
		userID string
		goalID string
	}{
		{p.ProposerUserID, p.ReceiverGoalID},
		{p.ReceiverUserID, p.ProposerGoalID},
	}

	errs := make([]error, len(legs))
	g, gctx := errgroup.WithContext(ctx)
	for i, leg := range legs {
		i, leg := i, leg
		g.Go(func() error {
			errs[i] = d.follows.EnsureFollow(gctx, leg.userID, leg.goalID)
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for i, err := range errs {
		if err == nil {
			continue
		}
		leg := legs[i]
		// The accept already committed; the retry enqueue must not inherit an
		// expired dispatch deadline.
		retryCtx := context.WithoutCancel(ctx)
		if d.retries != nil {
			payload := map[string]any{
				"swap_id": p.ID,
				"user_id": leg.userID,
				"goal_id": leg.goalID,
			}
			if qerr := d.retries.Enqueue(retryCtx, TopicRetry, payload); qerr != nil {
				failed = append(failed, fmt.Sprintf("%s -> %s: %v (retry enqueue also failed: %v)", leg.userID, leg.goalID, err, qerr))
				continue
			}
		}
		failed = append(failed, fmt.Sprintf("%s -> %s: %v", leg.userID, leg.goalID, err))
	}

	if len(failed) > 0 {
		return &PartialError{Legs: failed}
	}
	return nil
}

// RetryHandler returns the outbox handler that replays deferred follow
// creations. Safe to run repeatedly because EnsureFollow is idempotent.
func RetryHandler(follows Creator) func(ctx context.Context, payload []byte) error {
	return func(ctx context.Context, payload []byte) error {
		var msg struct {
			UserID string `json:"user_id"`
			GoalID string `json:"goal_id"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("follow: decode retry payload: %w", err)
		}
		return follows.EnsureFollow(ctx, msg.UserID, msg.GoalID)
	}
}
