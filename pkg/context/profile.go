package context

import (
	"context"
	"time"
)

// ProfileItem is one opaque per-user/system preference surfaced in a
// built Context, generalized from the teacher's usermemory.UserProfile
// from per-user to per-tenant+agent scope (spec.md §4.H treats profile
// items as "opaque here" — no schema beyond content/topics).
type ProfileItem struct {
	Key       string                 `json:"key"`
	Content   string                 `json:"content,omitempty"`
	Topics    map[string]interface{} `json:"topics,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// ProfileStore sources the profile items a Builder injects into
// rendered context, adapted from the teacher's
// usermemory.UserProfileStore (SaveProfile/GetProfileByUserID) but keyed
// by tenant+agent instead of a single userID, since a memory-hierarchy
// tenant may host many agents each with their own persona/preferences.
type ProfileStore interface {
	// GetProfile returns the profile items for tenantID/agentID, or an
	// empty slice if none exist. Implementations must not return
	// memory.ErrNotFound for "no profile yet" — that is a normal, empty
	// result, not an error.
	GetProfile(ctx context.Context, tenantID, agentID string) ([]ProfileItem, error)
}

// NoopProfileStore is the zero-configuration ProfileStore: every lookup
// returns no items. Builder falls back to this when constructed without
// an explicit ProfileStore, so profile injection is opt-in.
type NoopProfileStore struct{}

// GetProfile always returns an empty slice.
func (NoopProfileStore) GetProfile(ctx context.Context, tenantID, agentID string) ([]ProfileItem, error) {
	return nil, nil
}
