package follow

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository manages goal-follow relationships. Creation is idempotent: a
// follow that already exists is a no-op, never an error.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed follow repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureFollow creates the follow relationship if it does not already exist.
func (r *Repository) EnsureFollow(ctx context.Context, userID, goalID string) error {
	if userID == "" || goalID == "" {
		return fmt.Errorf("follow: user id and goal id required")
	}
	const insertSQL = `
		INSERT INTO goal_follows (user_id, goal_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, goal_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, insertSQL, userID, goalID); err != nil {
		return fmt.Errorf("follow: ensure %s -> %s: %w", userID, goalID, err)
	}
	return nil
}

// Exists reports whether userID follows goalID.
func (r *Repository) Exists(ctx context.Context, userID, goalID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM goal_follows WHERE user_id = $1 AND goal_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, goalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("follow: check exists: %w", err)
	}
	return exists, nil
}
