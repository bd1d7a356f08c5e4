package swap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the swap record store. CompareAndSwapState is the sole
// mutation entry point for lifecycle fields; nothing else updates state or
// responded_at.
type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, p Proposal) (Proposal, error)
	GetByID(ctx context.Context, id string) (Proposal, error)
	CompareAndSwapState(ctx context.Context, tx pgx.Tx, params CASParams) (Proposal, error)
	AppendEvent(ctx context.Context, tx pgx.Tx, swapID, eventType string, actorID string, payload map[string]any) error
	ListByScope(ctx context.Context, userID string, scope Scope) ([]Proposal, error)

	PendingIndex
}

// CASParams is the conditional write applied by the state machine. The update
// only lands while the row still holds Expected; a lost race surfaces as
// ErrAlreadyTerminal.
type CASParams struct {
	ID          string
	Expected    State
	Next        State
	RespondedAt time.Time

	// ReceiverGoalID, when non-empty, resolves a deferred receiver goal as
	// part of the same conditional write.
	ReceiverGoalID string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed swap repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const proposalColumns = `id, proposer_user_id, receiver_user_id, proposer_goal_id,
	COALESCE(receiver_goal_id::text, ''), COALESCE(message, ''), state::text, created_at, responded_at`

// Create inserts a new pending proposal. A violation of the pending-pairing
// uniqueness index is the authoritative duplicate guard and maps to
// ErrDuplicatePending.
func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, p Proposal) (Proposal, error) {
	const insertSQL = `
		INSERT INTO swap_proposals (id, proposer_user_id, receiver_user_id, proposer_goal_id, receiver_goal_id, message, state)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, NULLIF($5, '')::uuid, NULLIF($6, ''), 'pending')
		RETURNING ` + proposalColumns

	row := tx.QueryRow(ctx, insertSQL,
		p.ID,
		p.ProposerUserID,
		p.ReceiverUserID,
		p.ProposerGoalID,
		p.ReceiverGoalID,
		p.Message,
	)

	created, err := scanProposal(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Proposal{}, ErrDuplicatePending
		}
		return Proposal{}, fmt.Errorf("swap: insert proposal: %w", err)
	}
	return created, nil
}

// GetByID fetches a proposal by its primary key.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM swap_proposals WHERE id = $1`

	p, err := scanProposal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Proposal{}, ErrNotFound
		}
		return Proposal{}, fmt.Errorf("swap: get proposal: %w", err)
	}
	return p, nil
}

// CompareAndSwapState applies the conditional transition. When the update
// misses, the current row decides the error: missing row is ErrNotFound, a
// terminal row is ErrAlreadyTerminal, anything else is ErrInvalidTransition.
func (r *PGRepository) CompareAndSwapState(ctx context.Context, tx pgx.Tx, params CASParams) (Proposal, error) {
	updateSQL := `
		UPDATE swap_proposals
		SET state = $3::swap_state,
		    responded_at = $4,
		    receiver_goal_id = COALESCE(NULLIF($5, '')::uuid, receiver_goal_id)
		WHERE id = $1 AND state = $2::swap_state
		RETURNING ` + proposalColumns

	p, err := scanProposal(tx.QueryRow(ctx, updateSQL,
		params.ID,
		params.Expected,
		params.Next,
		params.RespondedAt,
		params.ReceiverGoalID,
	))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Proposal{}, fmt.Errorf("swap: conditional state update: %w", err)
	}

	var current string
	switch err := tx.QueryRow(ctx, `SELECT state::text FROM swap_proposals WHERE id = $1`, params.ID).Scan(&current); {
	case errors.Is(err, pgx.ErrNoRows):
		return Proposal{}, ErrNotFound
	case err != nil:
		return Proposal{}, fmt.Errorf("swap: inspect state after conflict: %w", err)
	}

	if State(current).Terminal() {
		return Proposal{}, ErrAlreadyTerminal
	}
	return Proposal{}, ErrInvalidTransition
}

// AppendEvent records an immutable lifecycle event in the caller's
// transaction. Seq is monotonic per swap.
func (r *PGRepository) AppendEvent(ctx context.Context, tx pgx.Tx, swapID, eventType string, actorID string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("swap: marshal event payload: %w", err)
	}

	var actor any
	if actorID != "" {
		actor = actorID
	}

	const insertSQL = `
		INSERT INTO swap_events (swap_id, seq, event_type, actor_id, payload)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3::uuid, $4::jsonb
		FROM swap_events
		WHERE swap_id = $1
	`
	if _, err := tx.Exec(ctx, insertSQL, swapID, eventType, actor, body); err != nil {
		return fmt.Errorf("swap: insert event: %w", err)
	}
	return nil
}

// HasPendingForPairing reports whether a pending proposal exists for the same
// user pair and goal pair in either direction. The pairing's receiver goal may
// be empty for a deferred choice.
func (r *PGRepository) HasPendingForPairing(ctx context.Context, pairing Pairing) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM swap_proposals
			WHERE state = 'pending'
			  AND (
			      (proposer_user_id = $1 AND receiver_user_id = $2
			       AND proposer_goal_id = $3 AND receiver_goal_id IS NOT DISTINCT FROM NULLIF($4, '')::uuid)
			   OR (proposer_user_id = $2 AND receiver_user_id = $1
			       AND NULLIF($4, '') IS NOT NULL AND proposer_goal_id = $4::uuid AND receiver_goal_id = $3)
			  )
		)
	`

	var exists bool
	err := r.pool.QueryRow(ctx, query,
		pairing.ProposerUserID,
		pairing.ReceiverUserID,
		pairing.ProposerGoalID,
		pairing.ReceiverGoalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("swap: query pending pairing: %w", err)
	}
	return exists, nil
}

// HasActiveForGoal reports whether the goal participates in any accepted swap.
func (r *PGRepository) HasActiveForGoal(ctx context.Context, goalID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM swap_proposals
			WHERE state = 'accepted'
			  AND (proposer_goal_id = $1 OR receiver_goal_id = $1)
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, goalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("swap: query active swaps for goal: %w", err)
	}
	return exists, nil
}

// ListByScope materializes one of the dashboard projections for a user.
func (r *PGRepository) ListByScope(ctx context.Context, userID string, scope Scope) ([]Proposal, error) {
	base := `SELECT ` + proposalColumns + ` FROM swap_proposals `

	var query string
	switch scope {
	case ScopeIncoming:
		query = base + `WHERE state = 'pending' AND receiver_user_id = $1 ORDER BY created_at DESC`
	case ScopeOutgoing:
		query = base + `WHERE state = 'pending' AND proposer_user_id = $1 ORDER BY created_at DESC`
	case ScopeActive:
		query = base + `WHERE state = 'accepted' AND (proposer_user_id = $1 OR receiver_user_id = $1) ORDER BY responded_at DESC`
	case ScopeHistory:
		query = base + `WHERE state IN ('accepted', 'declined', 'cancelled') AND (proposer_user_id = $1 OR receiver_user_id = $1) ORDER BY responded_at DESC`
	default:
		return nil, fmt.Errorf("swap: unknown scope %q", scope)
	}

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("swap: list %s: %w", scope, err)
	}
	defer rows.Close()

	out := make([]Proposal, 0, 8)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("swap: scan proposal: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("swap: iterate proposals: %w", err)
	}
	return out, nil
}

func scanProposal(row pgx.Row) (Proposal, error) {
	var p Proposal
	return p, row.Scan(
		&p.ID,
		&p.ProposerUserID,
		&p.ReceiverUserID,
		&p.ProposerGoalID,
		&p.ReceiverGoalID,
		&p.Message,
		&p.State,
		&p.CreatedAt,
		&p.RespondedAt,
	)
}
