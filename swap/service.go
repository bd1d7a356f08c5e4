package swap

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Outbox topics emitted on lifecycle changes. Notification delivery happens
// downstream of the outbox; the core only hands off.
const (
	TopicProposed  = "swap.proposed"
	TopicAccepted  = "swap.accepted"
	TopicDeclined  = "swap.declined"
	TopicCancelled = "swap.cancelled"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OutboxWriter enqueues a message in the caller's transaction.
type OutboxWriter interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// Dispatcher performs the accept side effects: creating the reciprocal follow
// relationships. Failures must not unwind the accepted state.
type Dispatcher interface {
	OnAccepted(ctx context.Context, p Proposal) error
}

// Service owns the proposal lifecycle. All state mutation funnels through the
// repository's conditional write.
type Service struct {
	pool       TxBeginner
	repo       Repository
	goals      GoalDirectory
	checker    *Eligibility
	outbox     OutboxWriter
	dispatcher Dispatcher

	dispatchTimeout time.Duration
	idGen           func() string
	now             func() time.Time
}

// NewService wires the swap state machine. outbox and dispatcher may be nil in
// tests that do not exercise side effects.
func NewService(pool TxBeginner, repo Repository, goals GoalDirectory, checker *Eligibility, outbox OutboxWriter, dispatcher Dispatcher) *Service {
	return &Service{
		pool:            pool,
		repo:            repo,
		goals:           goals,
		checker:         checker,
		outbox:          outbox,
		dispatcher:      dispatcher,
		dispatchTimeout: 3 * time.Second,
		idGen:           func() string { return uuid.NewString() },
		now:             time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithDispatchTimeout(d time.Duration) *Service {
	s.dispatchTimeout = d
	return s
}

// ProposeParams carries the propose input. ReceiverGoalID and Message are
// optional; an empty ReceiverGoalID defers the choice to accept time.
type ProposeParams struct {
	ProposerUserID string
	ReceiverUserID string
	ProposerGoalID string
	ReceiverGoalID string
	Message        string
}

// Propose validates eligibility and creates a pending proposal.
func (s *Service) Propose(ctx context.Context, params ProposeParams) (Proposal, error) {
	if params.ProposerUserID == "" {
		return Proposal{}, fmt.Errorf("swap: missing proposer user id")
	}
	if params.ReceiverUserID == "" {
		return Proposal{}, fmt.Errorf("swap: missing receiver user id")
	}
	if params.ProposerGoalID == "" {
		return Proposal{}, fmt.Errorf("swap: missing proposer goal id")
	}
	if utf8.RuneCountInString(params.Message) > MaxMessageLen {
		return Proposal{}, ErrMessageTooLong
	}

	if err := s.checker.Check(ctx, params.ProposerUserID, params.ProposerGoalID, params.ReceiverUserID, params.ReceiverGoalID); err != nil {
		return Proposal{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Proposal{}, fmt.Errorf("swap: begin propose tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.Create(ctx, tx, Proposal{
		ID:             s.idGen(),
		ProposerUserID: params.ProposerUserID,
		ReceiverUserID: params.ReceiverUserID,
		ProposerGoalID: params.ProposerGoalID,
		ReceiverGoalID: params.ReceiverGoalID,
		Message:        params.Message,
	})
	if err != nil {
		return Proposal{}, err
	}

	eventPayload := map[string]any{
		"proposer_user_id": created.ProposerUserID,
		"receiver_user_id": created.ReceiverUserID,
		"proposer_goal_id": created.ProposerGoalID,
	}
	if err := s.repo.AppendEvent(ctx, tx, created.ID, EventProposed, created.ProposerUserID, eventPayload); err != nil {
		return Proposal{}, err
	}

	if s.outbox != nil {
		payload := map[string]any{
			"swap_id":          created.ID,
			"receiver_user_id": created.ReceiverUserID,
		}
		if err := s.outbox.Enqueue(ctx, tx, TopicProposed, payload); err != nil {
			return Proposal{}, fmt.Errorf("swap: enqueue propose outbox: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Proposal{}, fmt.Errorf("swap: commit propose: %w", err)
	}

	return created, nil
}

// AcceptParams carries the accept input. ReceiverGoalID is required here when
// the proposal deferred it.
type AcceptParams struct {
	ProposalID     string
	ActorID        string
	ReceiverGoalID string
}

// AcceptResult reports the accepted proposal plus any side-effect failure.
// FollowWarning being non-nil means the accept committed but the follow
// relationships are still being retried out of band.
type AcceptResult struct {
	Proposal      Proposal
	FollowWarning error
}

// Accept transitions a pending proposal to accepted on behalf of the receiver
// and dispatches the reciprocal follow creation.
func (s *Service) Accept(ctx context.Context, params AcceptParams) (AcceptResult, error) {
	current, err := s.repo.GetByID(ctx, params.ProposalID)
	if err != nil {
		return AcceptResult{}, err
	}
	if current.ReceiverUserID != params.ActorID {
		return AcceptResult{}, ErrForbidden
	}

	receiverGoalID := current.ReceiverGoalID
	switch {
	case receiverGoalID == "" && params.ReceiverGoalID == "":
		return AcceptResult{}, ErrReceiverGoalRequired
	case receiverGoalID == "":
		receiverGoalID = params.ReceiverGoalID
	case params.ReceiverGoalID != "" && params.ReceiverGoalID != receiverGoalID:
		return AcceptResult{}, ErrReceiverGoalMismatch
	}

	owned, err := s.goals.IsOwner(ctx, params.ActorID, receiverGoalID)
	if err != nil {
		return AcceptResult{}, fmt.Errorf("swap: check receiver goal at accept: %w", err)
	}
	if !owned {
		return AcceptResult{}, ErrGoalNotOwned
	}

	accepted, err := s.applyTransition(ctx, current, params.ActorID, StateAccepted, receiverGoalID)
	if err != nil {
		return AcceptResult{}, err
	}

	result := AcceptResult{Proposal: accepted}
	if s.dispatcher != nil {
		dctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
		defer cancel()
		result.FollowWarning = s.dispatcher.OnAccepted(dctx, accepted)
	}

	return result, nil
}

// TransitionParams identifies the proposal and the acting user for decline and
// cancel.
type TransitionParams struct {
	ProposalID string
	ActorID    string
}

// Decline transitions a pending proposal to declined on behalf of the
// receiver.
func (s *Service) Decline(ctx context.Context, params TransitionParams) (Proposal, error) {
	current, err := s.repo.GetByID(ctx, params.ProposalID)
	if err != nil {
		return Proposal{}, err
	}
	if current.ReceiverUserID != params.ActorID {
		return Proposal{}, ErrForbidden
	}
	return s.applyTransition(ctx, current, params.ActorID, StateDeclined, "")
}

// Cancel transitions a pending proposal to cancelled on behalf of the
// proposer.
func (s *Service) Cancel(ctx context.Context, params TransitionParams) (Proposal, error) {
	current, err := s.repo.GetByID(ctx, params.ProposalID)
	if err != nil {
		return Proposal{}, err
	}
	if current.ProposerUserID != params.ActorID {
		return Proposal{}, ErrForbidden
	}
	return s.applyTransition(ctx, current, params.ActorID, StateCancelled, "")
}

// applyTransition executes the conditional write plus event and outbox rows in
// one transaction. Concurrent losers surface ErrAlreadyTerminal from the CAS.
func (s *Service) applyTransition(ctx context.Context, current Proposal, actorID string, next State, receiverGoalID string) (Proposal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Proposal{}, fmt.Errorf("swap: begin transition tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated, err := s.repo.CompareAndSwapState(ctx, tx, CASParams{
		ID:             current.ID,
		Expected:       StatePending,
		Next:           next,
		RespondedAt:    s.now(),
		ReceiverGoalID: receiverGoalID,
	})
	if err != nil {
		return Proposal{}, err
	}

	eventType, topic := transitionEvent(next)
	eventPayload := map[string]any{
		"previous_state": string(StatePending),
		"next_state":     string(next),
	}
	if err := s.repo.AppendEvent(ctx, tx, updated.ID, eventType, actorID, eventPayload); err != nil {
		return Proposal{}, err
	}

	if s.outbox != nil {
		payload := map[string]any{
			"swap_id":          updated.ID,
			"proposer_user_id": updated.ProposerUserID,
			"receiver_user_id": updated.ReceiverUserID,
			"state":            string(next),
		}
		if err := s.outbox.Enqueue(ctx, tx, topic, payload); err != nil {
			return Proposal{}, fmt.Errorf("swap: enqueue transition outbox: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Proposal{}, fmt.Errorf("swap: commit transition: %w", err)
	}

	return updated, nil
}

func transitionEvent(next State) (eventType, topic string) {
	switch next {
	case StateAccepted:
		return EventAccepted, TopicAccepted
	case StateDeclined:
		return EventDeclined, TopicDeclined
	default:
		return EventCancelled, TopicCancelled
	}
}

// List materializes one of the dashboard projections for a user.
func (s *Service) List(ctx context.Context, userID string, scope Scope) ([]Proposal, error) {
	if userID == "" {
		return nil, fmt.Errorf("swap: missing user id")
	}
	if !ValidScope(scope) {
		return nil, fmt.Errorf("swap: unknown scope %q", scope)
	}
	return s.repo.ListByScope(ctx, userID, scope)
}

// GetForUser fetches a single proposal visible to the given participant.
// Non-participants get ErrNotFound rather than an existence hint.
func (s *Service) GetForUser(ctx context.Context, id, userID string) (Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if p.ProposerUserID != userID && p.ReceiverUserID != userID {
		return Proposal{}, ErrNotFound
	}
	return p, nil
}
