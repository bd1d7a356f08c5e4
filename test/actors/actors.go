package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"questswap/swap"
)

// Seed holds the users and goals the actors battle over.
type Seed struct {
	Users []string
	// Goals maps each user to their goal IDs.
	Goals map[string][]string
}

func (s Seed) randomUser() string {
	return s.Users[rand.Intn(len(s.Users))]
}

func (s Seed) randomGoal(userID string) string {
	goals := s.Goals[userID]
	return goals[rand.Intn(len(goals))]
}

// Proposer fires proposals between random user pairs. Rejections are the
// normal case under contention and are swallowed.
func Proposer(ctx context.Context, svc *swap.Service, seed Seed, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		proposer := seed.randomUser()
		receiver := seed.randomUser()

		params := swap.ProposeParams{
			ProposerUserID: proposer,
			ReceiverUserID: receiver,
			ProposerGoalID: seed.randomGoal(proposer),
		}
		// Half the proposals name the receiver's goal up front, half defer it.
		if rand.Intn(2) == 0 {
			params.ReceiverGoalID = seed.randomGoal(receiver)
		}
		if rand.Intn(3) == 0 {
			params.Message = fmt.Sprintf("swap with me %d", rand.Int63())
		}

		if _, err := svc.Propose(ctx, params); !benign(err) {
			return fmt.Errorf("proposer: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Responder picks a random incoming proposal and accepts or declines it.
// Accept and decline race against cancel on the same rows.
func Responder(ctx context.Context, svc *swap.Service, seed Seed, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		userID := seed.randomUser()
		incoming, err := svc.List(ctx, userID, swap.ScopeIncoming)
		if !benign(err) {
			return fmt.Errorf("responder list: %w", err)
		}
		if len(incoming) > 0 {
			p := incoming[rand.Intn(len(incoming))]
			if rand.Intn(2) == 0 {
				params := swap.AcceptParams{ProposalID: p.ID, ActorID: userID}
				if p.ReceiverGoalID == "" {
					params.ReceiverGoalID = seed.randomGoal(userID)
				}
				if _, err := svc.Accept(ctx, params); !benign(err) {
					return fmt.Errorf("responder accept: %w", err)
				}
			} else {
				if _, err := svc.Decline(ctx, swap.TransitionParams{ProposalID: p.ID, ActorID: userID}); !benign(err) {
					return fmt.Errorf("responder decline: %w", err)
				}
			}
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Canceller withdraws random outgoing proposals, racing the responders.
func Canceller(ctx context.Context, svc *swap.Service, seed Seed, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		userID := seed.randomUser()
		outgoing, err := svc.List(ctx, userID, swap.ScopeOutgoing)
		if !benign(err) {
			return fmt.Errorf("canceller list: %w", err)
		}
		if len(outgoing) > 0 {
			p := outgoing[rand.Intn(len(outgoing))]
			if _, err := svc.Cancel(ctx, swap.TransitionParams{ProposalID: p.ID, ActorID: userID}); !benign(err) {
				return fmt.Errorf("canceller: %w", err)
			}
		}
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}

// benign reports whether err is an expected outcome under contention or
// chaos, as opposed to a real defect.
func benign(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	for _, sentinel := range []error{
		swap.ErrSelfSwap,
		swap.ErrGoalNotOwned,
		swap.ErrGoalNotVisible,
		swap.ErrDuplicatePending,
		swap.ErrGoalBusy,
		swap.ErrForbidden,
		swap.ErrAlreadyTerminal,
		swap.ErrInvalidTransition,
		swap.ErrNotFound,
		swap.ErrReceiverGoalRequired,
		swap.ErrReceiverGoalMismatch,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	// Chaos kills backends at random; retryable connection failures and
	// serialization hiccups are expected noise.
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "57P01", "40001", "08006", "08003":
			return true
		}
	}
	return false
}
