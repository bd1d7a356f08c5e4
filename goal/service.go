package goal

import (
	"context"
	"fmt"
	"strings"
)

// Reader abstracts repository operations for the service.
type Reader interface {
	Create(ctx context.Context, ownerID, title string, visibility Visibility) (Goal, error)
	GetByID(ctx context.Context, id string) (Goal, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Goal, error)
}

// Service exposes business-level goal operations for the API surface.
type Service struct {
	repo Reader
}

// NewService builds a Service using the provided repository.
func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

// Create validates and stores a new goal.
func (s *Service) Create(ctx context.Context, ownerID, title string, visibility Visibility) (Goal, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Goal{}, fmt.Errorf("goal: title required")
	}
	if visibility == "" {
		visibility = VisibilityPublic
	}
	if !ValidVisibility(visibility) {
		return Goal{}, fmt.Errorf("goal: invalid visibility %q", visibility)
	}
	return s.repo.Create(ctx, ownerID, title, visibility)
}

// GetByID returns the goal for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Goal, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByOwner returns the goals owned by a user.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Goal, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}
