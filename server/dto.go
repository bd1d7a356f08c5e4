package server

import (
	"time"

	"questswap/auth"
	"questswap/goal"
	"questswap/swap"
)

type proposalJSON struct {
	ID             string     `json:"id"`
	ProposerUserID string     `json:"proposer_user_id"`
	ReceiverUserID string     `json:"receiver_user_id"`
	ProposerGoalID string     `json:"proposer_goal_id"`
	ReceiverGoalID string     `json:"receiver_goal_id,omitempty"`
	Message        string     `json:"message,omitempty"`
	State          string     `json:"state"`
	CreatedAt      time.Time  `json:"created_at"`
	RespondedAt    *time.Time `json:"responded_at,omitempty"`
}

func toProposalJSON(p swap.Proposal) proposalJSON {
	return proposalJSON{
		ID:             p.ID,
		ProposerUserID: p.ProposerUserID,
		ReceiverUserID: p.ReceiverUserID,
		ProposerGoalID: p.ProposerGoalID,
		ReceiverGoalID: p.ReceiverGoalID,
		Message:        p.Message,
		State:          string(p.State),
		CreatedAt:      p.CreatedAt,
		RespondedAt:    p.RespondedAt,
	}
}

func toProposalListJSON(ps []swap.Proposal) []proposalJSON {
	out := make([]proposalJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProposalJSON(p))
	}
	return out
}

type goalJSON struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Title      string    `json:"title"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toGoalJSON(g goal.Goal) goalJSON {
	return goalJSON{
		ID:         g.ID,
		OwnerID:    g.OwnerID,
		Title:      g.Title,
		Visibility: string(g.Visibility),
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	}
}

type userJSON struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserJSON(u auth.User) userJSON {
	return userJSON{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}
