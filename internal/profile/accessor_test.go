package profile_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/careconnector/gateway/internal/database"
	"github.com/careconnector/gateway/internal/profile"
)

type fakeReader struct {
	profiles map[string]*database.UserProfile
	err      error
	calls    int
}

func (f *fakeReader) GetUserProfile(_ context.Context, userID string) (*database.UserProfile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles[userID], nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestLookup(t *testing.T) {
	t.Parallel()

	stored := &database.UserProfile{
		UserID:      "demo",
		DisplayName: "Demo Patient",
		Email:       "demo@example.com",
		SafetyFlags: map[string][]string{"allergies": {"ibuprofen"}},
	}

	tests := []struct {
		name      string
		reader    *fakeReader
		userID    string
		want      profile.Profile
		wantFound bool
	}{
		{
			name:      "found",
			reader:    &fakeReader{profiles: map[string]*database.UserProfile{"demo": stored}},
			userID:    "demo",
			want:      profile.Profile{UserID: "demo", Name: "Demo Patient", Email: "demo@example.com", SafetyFlags: map[string][]string{"allergies": {"ibuprofen"}}},
			wantFound: true,
		},
		{
			name:   "missing record",
			reader: &fakeReader{profiles: map[string]*database.UserProfile{}},
			userID: "ghost",
		},
		{
			name:   "storage error is a miss",
			reader: &fakeReader{err: errors.New("disk on fire")},
			userID: "demo",
		},
		{
			name:   "empty id",
			reader: &fakeReader{},
			userID: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			acc := profile.NewAccessor(tt.reader, discard())

			got, found := acc.Lookup(context.Background(), tt.userID)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}

func TestLookup_ReturnsIndependentCopy(t *testing.T) {
	t.Parallel()

	stored := &database.UserProfile{
		UserID:      "demo",
		SafetyFlags: map[string][]string{"allergies": {"ibuprofen"}},
	}
	acc := profile.NewAccessor(&fakeReader{profiles: map[string]*database.UserProfile{"demo": stored}}, discard())

	got, _ := acc.Lookup(context.Background(), "demo")
	got.SafetyFlags["allergies"][0] = "changed"

	assert.Equal(t, "ibuprofen", stored.SafetyFlags["allergies"][0])
}

func TestHasFlags(t *testing.T) {
	t.Parallel()

	assert.False(t, profile.Profile{}.HasFlags())
	assert.False(t, profile.Profile{SafetyFlags: map[string][]string{"allergies": nil}}.HasFlags())
	assert.True(t, profile.Profile{SafetyFlags: map[string][]string{"allergies": {"latex"}}}.HasFlags())
}
