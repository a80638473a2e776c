package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/streamtheme-io/streamtheme/internal/models"
)

const themeColumns = `id, user_id, layout_id, config, public_token,
	active_session_id, last_heartbeat, updated_at`

func scanTheme(row interface{ Scan(...any) error }) (*models.ThemeCustomization, error) {
	theme := &models.ThemeCustomization{}
	err := row.Scan(
		&theme.ID, &theme.UserID, &theme.LayoutID, &theme.Config,
		&theme.PublicToken, &theme.ActiveSessionID, &theme.LastHeartbeat, &theme.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return theme, nil
}

// UpsertThemeConfig saves a theme configuration for a (user, layout)
// pair. An existing row keeps its public token so overlay URLs survive
// edits; only a brand new row gets the supplied token.
func (s *Store) UpsertThemeConfig(userID int64, layoutID, config, newToken string) (*models.ThemeCustomization, error) {
	now := time.Now().UTC()

	existing, err := s.GetThemeConfig(userID, layoutID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if existing != nil {
		_, err := s.db.Exec(
			"UPDATE theme_customizations SET config = ?, updated_at = ? WHERE id = ?",
			config, now, existing.ID,
		)
		if err != nil {
			return nil, err
		}
		existing.Config = config
		existing.UpdatedAt = now
		return existing, nil
	}

	result, err := s.db.Exec(
		"INSERT INTO theme_customizations (user_id, layout_id, config, public_token, updated_at) VALUES (?, ?, ?, ?, ?)",
		userID, layoutID, config, newToken, now,
	)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.ThemeCustomization{
		ID:          id,
		UserID:      userID,
		LayoutID:    layoutID,
		Config:      config,
		PublicToken: newToken,
		UpdatedAt:   now,
	}, nil
}

// GetThemeConfig retrieves the saved configuration for a (user, layout) pair
func (s *Store) GetThemeConfig(userID int64, layoutID string) (*models.ThemeCustomization, error) {
	return scanTheme(s.db.QueryRow(
		"SELECT "+themeColumns+" FROM theme_customizations WHERE user_id = ? AND layout_id = ?",
		userID, layoutID,
	))
}

// GetThemeByPublicToken retrieves a theme customization by overlay token
func (s *Store) GetThemeByPublicToken(token string) (*models.ThemeCustomization, error) {
	return scanTheme(s.db.QueryRow(
		"SELECT "+themeColumns+" FROM theme_customizations WHERE public_token = ?",
		token,
	))
}

// ListUserThemes returns all saved theme configurations for a user
func (s *Store) ListUserThemes(userID int64) ([]*models.ThemeCustomization, error) {
	rows, err := s.db.Query(
		"SELECT "+themeColumns+" FROM theme_customizations WHERE user_id = ?",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var themes []*models.ThemeCustomization
	for rows.Next() {
		theme, err := scanTheme(rows)
		if err != nil {
			return nil, err
		}
		themes = append(themes, theme)
	}
	return themes, rows.Err()
}

// ClaimOverlaySession records a viewer session as the active one for a
// (user, layout) pair. Last writer wins: the newest overlay load always
// takes the lock, superseding whatever session held it before.
func (s *Store) ClaimOverlaySession(userID int64, layoutID, sessionID string, now time.Time) error {
	_, err := s.db.Exec(
		"UPDATE theme_customizations SET active_session_id = ?, last_heartbeat = ? WHERE user_id = ? AND layout_id = ?",
		sessionID, now, userID, layoutID,
	)
	return err
}

// RefreshHeartbeat bumps last_heartbeat only while the given session
// still holds the lock. Returns the number of rows touched; zero means
// another session has claimed the overlay since.
func (s *Store) RefreshHeartbeat(userID int64, layoutID, sessionID string, now time.Time) (int64, error) {
	result, err := s.db.Exec(
		"UPDATE theme_customizations SET last_heartbeat = ? WHERE user_id = ? AND layout_id = ? AND active_session_id = ?",
		now, userID, layoutID, sessionID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
