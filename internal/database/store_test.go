package database_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careconnector/gateway/internal/database"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	store, _ := newTestDB(t)
	return store
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestDB(t *testing.T) (database.Store, *sqlx.DB) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "profiles.db"), discard)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db, discard) })

	return database.NewStore(db, discard), db
}

func TestGetUserProfile_MissReturnsNil(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	profile, err := store.GetUserProfile(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestGetUserProfile_EmptyIDIsRejected(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, err := store.GetUserProfile(context.Background(), "  ")
	assert.Error(t, err)
}

func TestSaveUserProfile_RoundTripPreservesFlagOrder(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	err := store.SaveUserProfile(ctx, &database.UserProfile{
		UserID:      "demo",
		DisplayName: "Demo Patient",
		Email:       "demo@example.com",
		SafetyFlags: map[string][]string{
			"allergies":   {"penicillin", "ibuprofen", "ibuprofen", " "},
			"medications": {"warfarin"},
		},
	})
	require.NoError(t, err)

	got, err := store.GetUserProfile(ctx, "demo")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Demo Patient", got.DisplayName)
	assert.Equal(t, "demo@example.com", got.Email)
	assert.Equal(t, []string{"penicillin", "ibuprofen"}, got.SafetyFlags["allergies"])
	assert.Equal(t, []string{"warfarin"}, got.SafetyFlags["medications"])
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSaveUserProfile_UpdateReplacesFlags(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUserProfile(ctx, &database.UserProfile{
		UserID:      "u1",
		SafetyFlags: map[string][]string{"allergies": {"latex"}},
	}))
	require.NoError(t, store.SaveUserProfile(ctx, &database.UserProfile{
		UserID:      "u1",
		Email:       "u1@example.com",
		SafetyFlags: map[string][]string{"allergies": {"aspirin"}},
	}))

	got, err := store.GetUserProfile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1@example.com", got.Email)
	assert.Equal(t, map[string][]string{"allergies": {"aspirin"}}, got.SafetyFlags)
}

func TestSaveUserProfile_RejectsInvalidInput(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	tests := []struct {
		name    string
		profile *database.UserProfile
	}{
		{name: "nil profile", profile: nil},
		{name: "empty user id", profile: &database.UserProfile{UserID: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.SaveUserProfile(context.Background(), tt.profile))
		})
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	require.NoError(t, store.RunSQLMaintenance(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.RunSQLMaintenance(ctx), context.Canceled)
}

func TestSeedProfiles(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  - user_id: demo
    name: Demo Patient
    email: demo@example.com
    safety_flags:
      allergies: [ibuprofen]
  - user_id: plain
`), 0o600))

	require.NoError(t, database.SeedProfiles(ctx, store, path, log))

	demo, err := store.GetUserProfile(ctx, "demo")
	require.NoError(t, err)
	require.NotNil(t, demo)
	assert.Equal(t, []string{"ibuprofen"}, demo.SafetyFlags["allergies"])

	plain, err := store.GetUserProfile(ctx, "plain")
	require.NoError(t, err)
	require.NotNil(t, plain)
	assert.Empty(t, plain.SafetyFlags)

	assert.NoError(t, database.SeedProfiles(ctx, store, "", log))
}

func TestLoadSeedFile_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	noID := filepath.Join(dir, "noid.yaml")
	require.NoError(t, os.WriteFile(noID, []byte("profiles:\n  - name: x\n"), 0o600))
	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("profiles: [\n"), 0o600))

	for _, path := range []string{noID, broken, filepath.Join(dir, "missing.yaml")} {
		_, err := database.LoadSeedFile(path)
		assert.Error(t, err, path)
	}
}

func TestDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{input: "profiles.db", expected: "profiles.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{input: "file:profiles.db?mode=rwc", expected: "file:profiles.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{input: "profiles.db?_pragma=busy_timeout(100)", expected: "profiles.db?_pragma=busy_timeout(100)&_pragma=foreign_keys(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, database.DSN(tt.input))
		})
	}
}

func TestOpen_EnforcesForeignKeys(t *testing.T) {
	t.Parallel()
	store, db := newTestDB(t)
	ctx := context.Background()

	var enabled int
	require.NoError(t, db.GetContext(ctx, &enabled, "PRAGMA foreign_keys;"))
	assert.Equal(t, 1, enabled)

	require.NoError(t, store.SaveUserProfile(ctx, &database.UserProfile{
		UserID:      "demo",
		SafetyFlags: map[string][]string{"allergies": {"ibuprofen", "penicillin"}},
	}))

	_, err := db.ExecContext(ctx, "DELETE FROM user_profiles WHERE user_id = ?", "demo")
	require.NoError(t, err)

	var orphans int
	require.NoError(t, db.GetContext(ctx, &orphans, "SELECT COUNT(*) FROM safety_flags WHERE user_id = ?", "demo"))
	assert.Zero(t, orphans)

	_, err = db.ExecContext(ctx,
		"INSERT INTO safety_flags (user_id, category, value, position) VALUES (?, ?, ?, ?)",
		"ghost", "allergies", "latex", 0)
	assert.Error(t, err, "flags for unknown users must be rejected")
}

func TestOpen_RejectsEmptyPath(t *testing.T) {
	t.Parallel()
	_, err := database.Open(" ", discard)
	assert.Error(t, err)
}
