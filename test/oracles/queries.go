package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run repeatedly during a stress epoch. Each
// query selects violating rows, so any result is a failure.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_pending_per_pairing",
			SQL: `SELECT LEAST(proposer_user_id, receiver_user_id),
                         GREATEST(proposer_user_id, receiver_user_id),
                         LEAST(proposer_goal_id, receiver_goal_id),
                         GREATEST(proposer_goal_id, receiver_goal_id),
                         COUNT(*)
                  FROM swap_proposals
                  WHERE state = 'pending'
                  GROUP BY 1, 2, 3, 4
                  HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_terminal_iff_responded",
			SQL: `SELECT id, state, responded_at FROM swap_proposals
                  WHERE (state = 'pending') <> (responded_at IS NULL)`,
		},
		{
			Name: "O3_accepted_has_both_goals",
			SQL: `SELECT id FROM swap_proposals
                  WHERE state = 'accepted' AND receiver_goal_id IS NULL`,
		},
		{
			Name: "O4_event_seq_monotonic",
			SQL: `WITH seqs AS (
                      SELECT swap_id, seq,
                             LAG(seq) OVER (PARTITION BY swap_id ORDER BY seq) AS prev
                      FROM swap_events)
                  SELECT * FROM seqs WHERE prev IS NOT NULL AND seq <= prev`,
		},
		{
			Name: "O5_no_self_swaps",
			SQL: `SELECT id FROM swap_proposals
                  WHERE proposer_user_id = receiver_user_id`,
		},
		{
			Name: "O6_every_swap_has_proposed_event",
			SQL: `SELECT p.id FROM swap_proposals p
                  WHERE NOT EXISTS (
                      SELECT 1 FROM swap_events e
                      WHERE e.swap_id = p.id AND e.event_type = 'SWAP_PROPOSED' AND e.seq = 1
                  )`,
		},
		{
			Name: "O7_terminal_has_closing_event",
			SQL: `SELECT p.id, p.state FROM swap_proposals p
                  WHERE p.state <> 'pending'
                    AND NOT EXISTS (
                        SELECT 1 FROM swap_events e
                        WHERE e.swap_id = p.id
                          AND e.event_type = 'SWAP_' || UPPER(p.state::text)
                    )`,
		},
		{
			Name: "O8_outbox_not_stuck",
			SQL: `SELECT id, topic, attempts FROM outbox
                  WHERE status NOT IN ('processed', 'dead')
                    AND now() - created_at > interval '5 minutes'`,
		},
		{
			Name: "O9_accepted_swaps_have_follows",
			SQL: `SELECT p.id FROM swap_proposals p
                  WHERE p.state = 'accepted'
                    AND p.responded_at < now() - interval '30 seconds'
                    AND NOT EXISTS (
                        SELECT 1 FROM outbox o
                        WHERE o.topic = 'swap.follow.retry'
                          AND o.status = 'dead'
                          AND o.payload->>'swap_id' = p.id::text)
                    AND (NOT EXISTS (
                            SELECT 1 FROM goal_follows f
                            WHERE f.user_id = p.proposer_user_id AND f.goal_id = p.receiver_goal_id)
                         OR NOT EXISTS (
                            SELECT 1 FROM goal_follows f
                            WHERE f.user_id = p.receiver_user_id AND f.goal_id = p.proposer_goal_id))`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text) or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
