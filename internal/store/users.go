package store

import (
	"database/sql"
	"time"

	"github.com/streamtheme-io/streamtheme/internal/models"
)

const userColumns = `id, full_name, email, password_hash, phone_number, age,
	is_email_verified, verification_token, trial_used, trial_expiry,
	password_reset_token, password_reset_expiry, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.FullName, &user.Email, &user.PasswordHash,
		&user.PhoneNumber, &user.Age, &user.IsEmailVerified, &user.VerificationToken,
		&user.TrialUsed, &user.TrialExpiry, &user.PasswordResetToken,
		&user.PasswordResetExpiry, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser creates a new user with a pending email verification token
func (s *Store) CreateUser(fullName, email, passwordHash string, phone *string, age *int, verificationToken string) (*models.User, error) {
	now := time.Now().UTC()
	user := &models.User{
		FullName:          fullName,
		Email:             email,
		PasswordHash:      passwordHash,
		PhoneNumber:       phone,
		Age:               age,
		VerificationToken: &verificationToken,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	result, err := s.db.Exec(
		`INSERT INTO users (full_name, email, password_hash, phone_number, age,
			is_email_verified, verification_token, trial_used, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, 0, 1, ?, ?)`,
		user.FullName, user.Email, user.PasswordHash, user.PhoneNumber, user.Age,
		verificationToken, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	user.ID = id

	return user, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(email string) (*models.User, error) {
	return scanUser(s.db.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE email = ?", email,
	))
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(id int64) (*models.User, error) {
	return scanUser(s.db.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE id = ?", id,
	))
}

// VerifyUserEmail consumes a verification token and marks the email verified
func (s *Store) VerifyUserEmail(token string) error {
	result, err := s.db.Exec(
		"UPDATE users SET is_email_verified = 1, verification_token = NULL, updated_at = ? WHERE verification_token = ?",
		time.Now().UTC(), token,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateUserProfile updates the mutable profile fields
func (s *Store) UpdateUserProfile(userID int64, fullName string, phone *string, age *int) error {
	_, err := s.db.Exec(
		"UPDATE users SET full_name = ?, phone_number = ?, age = ?, updated_at = ? WHERE id = ?",
		fullName, phone, age, time.Now().UTC(), userID,
	)
	return err
}

// SetPasswordResetToken stores a reset token with its expiry
func (s *Store) SetPasswordResetToken(userID int64, token string, expiry time.Time) error {
	_, err := s.db.Exec(
		"UPDATE users SET password_reset_token = ?, password_reset_expiry = ?, updated_at = ? WHERE id = ?",
		token, expiry, time.Now().UTC(), userID,
	)
	return err
}

// GetUserByResetToken retrieves a user by an unexpired password reset token
func (s *Store) GetUserByResetToken(token string, now time.Time) (*models.User, error) {
	return scanUser(s.db.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE password_reset_token = ? AND password_reset_expiry > ?",
		token, now,
	))
}

// ResetPassword sets a new password hash and clears the reset token
func (s *Store) ResetPassword(userID int64, passwordHash string) error {
	_, err := s.db.Exec(
		`UPDATE users SET password_hash = ?, password_reset_token = NULL,
			password_reset_expiry = NULL, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), userID,
	)
	return err
}

// ActivateTrial flips the one-way trial latch and sets the trial window.
// The WHERE clause makes the latch atomic: a user whose trial_used flag
// is already set matches no rows and the caller sees sql.ErrNoRows.
func (s *Store) ActivateTrial(userID int64, expiry time.Time) error {
	result, err := s.db.Exec(
		"UPDATE users SET trial_used = 1, trial_expiry = ?, updated_at = ? WHERE id = ? AND trial_used = 0",
		expiry, time.Now().UTC(), userID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetUserActive blocks or unblocks a user account
func (s *Store) SetUserActive(userID int64, active bool) error {
	result, err := s.db.Exec(
		"UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?",
		active, time.Now().UTC(), userID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetUserPassword replaces a user's password hash
func (s *Store) SetUserPassword(userID int64, passwordHash string) error {
	result, err := s.db.Exec(
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash, time.Now().UTC(), userID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteUser removes a user. Subscriptions, theme configs and purchases
// cascade through foreign keys; transactions carry no FK and are cleared
// explicitly.
func (s *Store) DeleteUser(userID int64) error {
	if _, err := s.db.Exec("DELETE FROM transactions WHERE user_id = ?", userID); err != nil {
		return err
	}
	result, err := s.db.Exec("DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountUsers returns the total number of users
func (s *Store) CountUsers() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// GetRecentUsers returns the most recently registered users
func (s *Store) GetRecentUsers(limit int) ([]*models.User, error) {
	rows, err := s.db.Query(
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UserWithStats is a users-list row with purchase aggregates
type UserWithStats struct {
	models.User
	PurchaseCount int        `json:"purchase_count"`
	TotalSpent    float64    `json:"total_spent"`
	ActivePlan    *string    `json:"active_plan"`
	PlanExpiry    *time.Time `json:"plan_expiry"`
}

// ListUsersWithStats returns all users with their subscription aggregates
func (s *Store) ListUsersWithStats(now time.Time) ([]*UserWithStats, error) {
	rows, err := s.db.Query(`
		SELECT u.id, u.full_name, u.email, u.phone_number, u.is_email_verified,
			u.trial_used, u.is_active, u.created_at,
			(SELECT COUNT(*) FROM subscriptions sub WHERE sub.user_id = u.id) AS purchase_count,
			(SELECT COALESCE(SUM(sub.price_paid), 0) FROM subscriptions sub WHERE sub.user_id = u.id) AS total_spent,
			(SELECT sub.plan_id FROM subscriptions sub
				WHERE sub.user_id = u.id AND sub.status = 'ACTIVE' AND sub.expiry_date > ?
				ORDER BY sub.expiry_date DESC LIMIT 1) AS active_plan,
			(SELECT sub.expiry_date FROM subscriptions sub
				WHERE sub.user_id = u.id AND sub.status = 'ACTIVE' AND sub.expiry_date > ?
				ORDER BY sub.expiry_date DESC LIMIT 1) AS plan_expiry
		FROM users u
		ORDER BY u.created_at DESC`, now, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*UserWithStats
	for rows.Next() {
		u := &UserWithStats{}
		err := rows.Scan(
			&u.ID, &u.FullName, &u.Email, &u.PhoneNumber, &u.IsEmailVerified,
			&u.TrialUsed, &u.IsActive, &u.CreatedAt,
			&u.PurchaseCount, &u.TotalSpent, &u.ActivePlan, &u.PlanExpiry,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
