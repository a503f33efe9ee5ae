package instruction_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careconnector/gateway/internal/instruction"
	"github.com/careconnector/gateway/internal/policy"
	"github.com/careconnector/gateway/internal/profile"
)

const testPolicy = `
instruction: Be careful.
disclaimer: Not medical advice.
flag_clauses:
  allergies: "User is allergic to {substance}; never recommend it."
default_flag_clause: "Avoid {substance}."
`

type staticProfiles map[string]profile.Profile

func (s staticProfiles) Lookup(_ context.Context, userID string) (profile.Profile, bool) {
	p, ok := s[userID]
	return p, ok
}

func newBuilder(t *testing.T, profiles staticProfiles) (*instruction.Builder, *policy.Template) {
	t.Helper()
	tmpl, err := policy.Parse([]byte(testPolicy))
	require.NoError(t, err)
	return instruction.NewBuilder(tmpl, profiles, slog.New(slog.NewTextHandler(io.Discard, nil))), tmpl
}

func TestBuild_NoProfileYieldsTemplate(t *testing.T) {
	t.Parallel()
	b, tmpl := newBuilder(t, staticProfiles{
		"noflags": {UserID: "noflags", Name: "Plain"},
	})

	for _, userID := range []string{"unknown", "", "noflags"} {
		assert.Equal(t, tmpl.Base(), b.Build(context.Background(), userID), userID)
	}
}

func TestBuild_AllergyClausePerUserIsolation(t *testing.T) {
	t.Parallel()
	b, tmpl := newBuilder(t, staticProfiles{
		"alice": {UserID: "alice", SafetyFlags: map[string][]string{"allergies": {"ibuprofen"}}},
		"bob":   {UserID: "bob", SafetyFlags: map[string][]string{"allergies": {"penicillin"}}},
	})
	ctx := context.Background()

	alice := b.Build(ctx, "alice")
	bob := b.Build(ctx, "bob")

	assert.True(t, strings.HasPrefix(alice, tmpl.Base()))
	assert.Contains(t, alice, "User is allergic to ibuprofen; never recommend it.")
	assert.NotContains(t, alice, "penicillin")

	assert.Contains(t, bob, "User is allergic to penicillin; never recommend it.")
	assert.NotContains(t, bob, "ibuprofen")

	assert.NotEqual(t, alice, bob)
}

func TestBuild_IsDeterministic(t *testing.T) {
	t.Parallel()
	b, _ := newBuilder(t, staticProfiles{
		"demo": {SafetyFlags: map[string][]string{
			"medications": {"warfarin"},
			"allergies":   {"latex", "aspirin"},
			"diet":        {"gluten"},
		}},
	})

	first := b.Build(context.Background(), "demo")
	for i := 0; i < 20; i++ {
		require.Equal(t, first, b.Build(context.Background(), "demo"))
	}

	// categories sorted, values in stored order
	iLatex := strings.Index(first, "latex")
	iAspirin := strings.Index(first, "aspirin")
	iGluten := strings.Index(first, "gluten")
	iWarfarin := strings.Index(first, "warfarin")
	assert.True(t, iLatex < iAspirin && iAspirin < iGluten && iGluten < iWarfarin, first)
}

func TestBuild_ConcurrentUsersDoNotLeak(t *testing.T) {
	t.Parallel()
	profiles := staticProfiles{}
	for i := 0; i < 16; i++ {
		id := fmt.Sprintf("user-%d", i)
		profiles[id] = profile.Profile{SafetyFlags: map[string][]string{"allergies": {fmt.Sprintf("substance-%d-x", i)}}}
	}
	b, _ := newBuilder(t, profiles)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = b.Build(context.Background(), fmt.Sprintf("user-%d", i))
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		for j := 0; j < 16; j++ {
			marker := fmt.Sprintf("substance-%d-x", j)
			if i == j {
				assert.Contains(t, got, marker)
			} else {
				assert.NotContains(t, got, marker)
			}
		}
	}
}

func TestCompose_BlankValuesAreIgnored(t *testing.T) {
	t.Parallel()
	_, tmpl := newBuilder(t, nil)

	got := instruction.Compose(tmpl, profile.Profile{SafetyFlags: map[string][]string{"allergies": {" ", ""}}})
	assert.Equal(t, tmpl.Base(), got)

	got = instruction.Compose(tmpl, profile.Profile{SafetyFlags: map[string][]string{"diet": {"gluten"}}})
	assert.Contains(t, got, "Avoid gluten.")
}
