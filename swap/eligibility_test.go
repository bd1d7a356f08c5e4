package swap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubDirectory struct {
	owners map[string]string
	hidden map[string]bool
}

func (s *stubDirectory) IsOwner(_ context.Context, userID, goalID string) (bool, error) {
	return s.owners[goalID] == userID, nil
}

func (s *stubDirectory) IsVisible(_ context.Context, goalID, _ string) (bool, error) {
	return !s.hidden[goalID], nil
}

type stubIndex struct {
	pendingPairing bool
	activeGoals    map[string]bool
}

func (s *stubIndex) HasPendingForPairing(_ context.Context, _ Pairing) (bool, error) {
	return s.pendingPairing, nil
}

func (s *stubIndex) HasActiveForGoal(_ context.Context, goalID string) (bool, error) {
	return s.activeGoals[goalID], nil
}

func TestEligibility_Check(t *testing.T) {
	baseOwners := map[string]string{"goal-a": "alice", "goal-b": "bob"}

	tests := []struct {
		name            string
		owners          map[string]string
		hidden          map[string]bool
		pendingPairing  bool
		activeGoals     map[string]bool
		allowConcurrent bool

		proposer     string
		proposerGoal string
		receiver     string
		receiverGoal string

		wantErr error
	}{
		{
			name:         "valid proposal",
			owners:       baseOwners,
			proposer:     "alice",
			proposerGoal: "goal-a",
			receiver:     "bob",
			receiverGoal: "goal-b",
		},
		{
			name:         "valid with deferred receiver goal",
			owners:       baseOwners,
			proposer:     "alice",
			proposerGoal: "goal-a",
			receiver:     "bob",
		},
		{
			name:         "self swap",
			owners:       baseOwners,
			proposer:     "alice",
			proposerGoal: "goal-a",
			receiver:     "alice",
			wantErr:      ErrSelfSwap,
		},
		{
			name:         "proposer does not own goal",
			owners:       baseOwners,
			proposer:     "alice",
			proposerGoal: "goal-b",
			receiver:     "bob",
			wantErr:      ErrGoalNotOwned,
		},
		{
			name:         "proposer goal hidden from receiver",
			owners:       baseOwners,
			hidden:       map[string]bool{"goal-a": true},
			proposer:     "alice",
			proposerGoal: "goal-a",
			receiver:     "bob",
			wantErr:      ErrGoalNotVisible,
		},
		{
			name:         "receiver does not own named goal",
			owners:       baseOwners,
			proposer:     "alice",
			proposerGoal: "goal-a",
			receiver:     "bob",
			receiverGoal: "goal-a",
			wantErr:      ErrGoalNotOwned,
		},
		{
			name:           "duplicate pending pairing",
			owners:         baseOwners,
			pendingPairing: true,
			proposer:       "alice",
			proposerGoal:   "goal-a",
			receiver:       "bob",
			receiverGoal:   "goal-b",
			wantErr:        ErrDuplicatePending,
		},
		{
			name:         "proposer goal already in accepted swap",
			owners:       baseOwners,
			activeGoals:  map[string]bool{"goal-a": true},
			proposer:     "alice",
			proposerGoal: "goal-a",
			receiver:     "bob",
			receiverGoal: "goal-b",
			wantErr:      ErrGoalBusy,
		},
		{
			name:         "receiver goal already in accepted swap",
			owners:       baseOwners,
			activeGoals:  map[string]bool{"goal-b": true},
			proposer:     "alice",
			proposerGoal: "goal-a",
			receiver:     "bob",
			receiverGoal: "goal-b",
			wantErr:      ErrGoalBusy,
		},
		{
			name:            "busy goal allowed when concurrency enabled",
			owners:          baseOwners,
			activeGoals:     map[string]bool{"goal-a": true, "goal-b": true},
			allowConcurrent: true,
			proposer:        "alice",
			proposerGoal:    "goal-a",
			receiver:        "bob",
			receiverGoal:    "goal-b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := &stubDirectory{owners: tt.owners, hidden: tt.hidden}
			idx := &stubIndex{pendingPairing: tt.pendingPairing, activeGoals: tt.activeGoals}
			checker := NewEligibility(dir, idx, tt.allowConcurrent)

			err := checker.Check(context.Background(), tt.proposer, tt.proposerGoal, tt.receiver, tt.receiverGoal)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
