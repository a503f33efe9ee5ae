// Package instruction composes the per-user system instruction sent to the
// model from the static safety policy and the user's safety flags.
package instruction

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/careconnector/gateway/internal/profile"
)

// Policy is the static template the builder starts from.
type Policy interface {
	Base() string
	Clause(category, substance string) string
}

// ProfileLookup resolves a user's profile and never fails.
type ProfileLookup interface {
	Lookup(ctx context.Context, userID string) (profile.Profile, bool)
}

// Builder builds system instructions. It holds no per-user state: every call
// resolves the profile again and composes a fresh string.
type Builder struct {
	policy   Policy
	profiles ProfileLookup
	log      *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(policy Policy, profiles ProfileLookup, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		policy:   policy,
		profiles: profiles,
		log:      log.With("component", "instruction_builder"),
	}
}

// Build returns the system instruction for userID.
func (b *Builder) Build(ctx context.Context, userID string) string {
	p, found := b.profiles.Lookup(ctx, userID)
	instruction := Compose(b.policy, p)

	b.log.DebugContext(ctx, "Built system instruction",
		"user_id", userID,
		"profile_found", found,
		"has_flags", p.HasFlags(),
		"length", len(instruction))

	return instruction
}

// Compose appends one exclusion clause per flagged value to the policy base.
// Categories are emitted in sorted order and values in stored order, so equal
// inputs always give equal output. A profile without flags yields Base().
func Compose(policy Policy, p profile.Profile) string {
	base := policy.Base()
	if !p.HasFlags() {
		return base
	}

	categories := make([]string, 0, len(p.SafetyFlags))
	for category := range p.SafetyFlags {
		categories = append(categories, category)
	}
	slices.Sort(categories)

	var clauses []string
	for _, category := range categories {
		for _, value := range p.SafetyFlags[category] {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			clauses = append(clauses, "- "+policy.Clause(category, value))
		}
	}
	if len(clauses) == 0 {
		return base
	}

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\n## USER SAFETY CONSTRAINTS [CRITICAL]\n")
	sb.WriteString(strings.Join(clauses, "\n"))
	return sb.String()
}
