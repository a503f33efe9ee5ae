package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/careconnector/gateway/internal/errors"
)

// Store defines the interface for profile store operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetUserProfile retrieves a user profile with its safety flags. Returns nil, nil if not found.
	GetUserProfile(ctx context.Context, userID string) (*UserProfile, error)

	// SaveUserProfile inserts or updates a user profile and replaces its safety flags.
	SaveUserProfile(ctx context.Context, profile *UserProfile) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUserProfile retrieves a user profile and its flags by user ID.
func (s *sqlxStore) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user_id cannot be empty")
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var profile UserProfile
	query := `SELECT user_id, display_name, email, created_at, updated_at
	          FROM user_profiles WHERE user_id = ?`

	err := s.db.GetContext(ctx, &profile, query, userID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Not found is expected, not an error
		s.logger.DebugContext(ctx, "No user profile found", "user_id", userID)
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching user profile",
			"user_id", userID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user profile by ID", "user_id", userID, "error", err)
		return nil, apperrors.NewDatabaseError(fmt.Sprintf("failed to get user profile for user ID %q", userID), err)
	}

	var flags []SafetyFlag
	err = s.db.SelectContext(ctx, &flags,
		`SELECT id, user_id, category, value, position
		 FROM safety_flags WHERE user_id = ?
		 ORDER BY category ASC, position ASC, id ASC`, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting safety flags", "user_id", userID, "error", err)
		return nil, apperrors.NewDatabaseError(fmt.Sprintf("failed to get safety flags for user ID %q", userID), err)
	}

	profile.SafetyFlags = make(map[string][]string, len(flags))
	for _, f := range flags {
		profile.SafetyFlags[f.Category] = append(profile.SafetyFlags[f.Category], f.Value)
	}

	s.logger.DebugContext(ctx, "Successfully retrieved user profile", "user_id", userID, "flag_count", len(flags))
	return &profile, nil
}

// SaveUserProfile upserts the profile row and replaces all of its safety flags
// in a single transaction.
func (s *sqlxStore) SaveUserProfile(ctx context.Context, profile *UserProfile) error {
	if profile == nil {
		return fmt.Errorf("cannot save nil user profile")
	}
	if strings.TrimSpace(profile.UserID) == "" {
		return fmt.Errorf("user profile must have a non-empty user_id")
	}

	now := time.Now().UTC()
	profile.UpdatedAt = now
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving user profile",
			"user_id", profile.UserID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	query := `
        INSERT INTO user_profiles (user_id, display_name, email, created_at, updated_at)
        VALUES (:user_id, :display_name, :email, :created_at, :updated_at)
        ON CONFLICT(user_id) DO UPDATE SET
            display_name = excluded.display_name,
            email = excluded.email,
            updated_at = excluded.updated_at;
    `
	if _, err := tx.NamedExecContext(ctx, query, profile); err != nil {
		s.logger.ErrorContext(ctx, "Error saving user profile", "user_id", profile.UserID, "error", err)
		return fmt.Errorf("failed to save user profile %q: %w", profile.UserID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM safety_flags WHERE user_id = ?`, profile.UserID); err != nil {
		s.logger.ErrorContext(ctx, "Error clearing safety flags", "user_id", profile.UserID, "error", err)
		return fmt.Errorf("failed to clear safety flags for %q: %w", profile.UserID, err)
	}

	flagCount := 0
	for category, values := range profile.SafetyFlags {
		for i, value := range values {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO safety_flags (user_id, category, value, position) VALUES (?, ?, ?, ?)`,
				profile.UserID, category, value, i)
			if err != nil {
				s.logger.ErrorContext(ctx, "Error saving safety flag",
					"user_id", profile.UserID, "category", category, "error", err)
				return fmt.Errorf("failed to save safety flag %s for %q: %w", category, profile.UserID, err)
			}
			flagCount++
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "user_id", profile.UserID, "error", err)
		return apperrors.NewDatabaseError("failed to commit transaction", err)
	}
	// Successfully committed, set tx to nil to avoid rollback
	tx = nil

	s.logger.DebugContext(ctx, "User profile saved successfully", "user_id", profile.UserID, "flag_count", flagCount)
	return nil
}

// RunSQLMaintenance performs database maintenance tasks like VACUUM.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
