package goal

import "time"

// Visibility controls who can see a goal and therefore who can be offered it
// in a swap.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
	VisibilityPrivate   Visibility = "private"
)

// ValidVisibility reports whether v is a known visibility level.
func ValidVisibility(v Visibility) bool {
	switch v {
	case VisibilityPublic, VisibilityFollowers, VisibilityPrivate:
		return true
	default:
		return false
	}
}

// Goal is the domain representation of a quest-map goal. Only the fields the
// swap protocol needs are modeled here; node content lives elsewhere.
type Goal struct {
	ID         string
	OwnerID    string
	Title      string
	Visibility Visibility
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
