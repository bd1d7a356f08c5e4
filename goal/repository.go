package goal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested goal does not exist.
var ErrNotFound = errors.New("goal: not found")

// Repository provides goal lookups, including the ownership and visibility
// checks consumed by the swap eligibility checker.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed goal repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new goal owned by ownerID.
func (r *Repository) Create(ctx context.Context, ownerID, title string, visibility Visibility) (Goal, error) {
	const insertSQL = `
		INSERT INTO goals (owner_id, title, visibility)
		VALUES ($1, $2, $3::goal_visibility)
		RETURNING id, owner_id, title, visibility::text, created_at, updated_at
	`

	g, err := scanGoal(r.pool.QueryRow(ctx, insertSQL, ownerID, title, visibility))
	if err != nil {
		return Goal{}, fmt.Errorf("goal: insert: %w", err)
	}
	return g, nil
}

// GetByID fetches a goal by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Goal, error) {
	const query = `
		SELECT id, owner_id, title, visibility::text, created_at, updated_at
		FROM goals
		WHERE id = $1
	`

	g, err := scanGoal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Goal{}, ErrNotFound
		}
		return Goal{}, fmt.Errorf("goal: get by id: %w", err)
	}
	return g, nil
}

// ListByOwner fetches the goals owned by a user, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]Goal, error) {
	const query = `
		SELECT id, owner_id, title, visibility::text, created_at, updated_at
		FROM goals
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("goal: list by owner: %w", err)
	}
	defer rows.Close()

	out := make([]Goal, 0, 8)
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("goal: scan: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("goal: iterate: %w", err)
	}
	return out, nil
}

// IsOwner reports whether the goal exists and belongs to userID.
func (r *Repository) IsOwner(ctx context.Context, userID, goalID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM goals WHERE id = $1 AND owner_id = $2)`

	var owned bool
	if err := r.pool.QueryRow(ctx, query, goalID, userID).Scan(&owned); err != nil {
		return false, fmt.Errorf("goal: check owner: %w", err)
	}
	return owned, nil
}

// IsVisible reports whether viewerID may see the goal: public goals always,
// followers-only goals when the viewer already follows them, private goals for
// the owner only.
func (r *Repository) IsVisible(ctx context.Context, goalID, viewerID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM goals g
			WHERE g.id = $1
			  AND (
			      g.visibility = 'public'
			   OR g.owner_id = $2
			   OR (g.visibility = 'followers' AND EXISTS (
			          SELECT 1 FROM goal_follows f WHERE f.goal_id = g.id AND f.user_id = $2))
			  )
		)
	`

	var visible bool
	if err := r.pool.QueryRow(ctx, query, goalID, viewerID).Scan(&visible); err != nil {
		return false, fmt.Errorf("goal: check visibility: %w", err)
	}
	return visible, nil
}

func scanGoal(row pgx.Row) (Goal, error) {
	var g Goal
	return g, row.Scan(
		&g.ID,
		&g.OwnerID,
		&g.Title,
		&g.Visibility,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
}
