// Package profile resolves per-user profiles for prompt composition and relay
// metadata. Lookups never fail the enclosing request.
package profile

import (
	"context"
	"log/slog"
	"slices"

	"github.com/careconnector/gateway/internal/database"
)

// Profile is the read-only view of a user's stored profile. The zero value is
// the default profile used when no record exists.
type Profile struct {
	UserID      string              `json:"userId,omitempty"`
	Name        string              `json:"name,omitempty"`
	Email       string              `json:"email,omitempty"`
	SafetyFlags map[string][]string `json:"safetyFlags,omitempty"`
}

// HasFlags reports whether the profile carries at least one safety flag value.
func (p Profile) HasFlags() bool {
	for _, values := range p.SafetyFlags {
		if len(values) > 0 {
			return true
		}
	}
	return false
}

// Reader is the subset of the profile store the accessor needs.
type Reader interface {
	GetUserProfile(ctx context.Context, userID string) (*database.UserProfile, error)
}

// Accessor wraps a Reader and converts every storage failure into a miss.
type Accessor struct {
	store Reader
	log   *slog.Logger
}

// NewAccessor creates an Accessor over store.
func NewAccessor(store Reader, log *slog.Logger) *Accessor {
	if log == nil {
		log = slog.Default()
	}
	return &Accessor{
		store: store,
		log:   log.With("component", "profile_accessor"),
	}
}

// Lookup returns the profile for userID and whether a record was found.
// An empty id, a missing record and a storage error all yield the zero Profile.
func (a *Accessor) Lookup(ctx context.Context, userID string) (Profile, bool) {
	if userID == "" || a.store == nil {
		return Profile{}, false
	}

	stored, err := a.store.GetUserProfile(ctx, userID)
	if err != nil {
		a.log.WarnContext(ctx, "Profile lookup failed, using default profile", "user_id", userID, "error", err)
		return Profile{}, false
	}
	if stored == nil {
		a.log.DebugContext(ctx, "No profile stored, using default profile", "user_id", userID)
		return Profile{}, false
	}

	p := Profile{
		UserID: stored.UserID,
		Name:   stored.DisplayName,
		Email:  stored.Email,
	}
	if len(stored.SafetyFlags) > 0 {
		p.SafetyFlags = make(map[string][]string, len(stored.SafetyFlags))
		for category, values := range stored.SafetyFlags {
			p.SafetyFlags[category] = slices.Clone(values)
		}
	}
	return p, true
}
