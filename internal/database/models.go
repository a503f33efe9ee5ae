package database

import "time"

// UserProfile is the stored identity and medical-safety context of a user.
// SafetyFlags maps a category (e.g. "allergies") to its values in stored order.
type UserProfile struct {
	UserID      string    `db:"user_id"`
	DisplayName string    `db:"display_name"`
	Email       string    `db:"email"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`

	SafetyFlags map[string][]string `db:"-"`
}

// SafetyFlag is one row of the safety_flags table.
type SafetyFlag struct {
	ID       int64  `db:"id"`
	UserID   string `db:"user_id"`
	Category string `db:"category"`
	Value    string `db:"value"`
	Position int    `db:"position"`
}
