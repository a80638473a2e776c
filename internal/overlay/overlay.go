// Package overlay serves the public theme URL that streamers paste into
// OBS, including the single-viewer session lock.
package overlay

import (
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/streamtheme-io/streamtheme/internal/models"
	"github.com/streamtheme-io/streamtheme/internal/store"
)

// HeartbeatStaleAfter is how long a lock holder may go silent before a
// viewer should treat the lock as abandoned
const HeartbeatStaleAfter = 45 * time.Second

var (
	// ErrTokenNotFound means the public token resolves to nothing
	ErrTokenNotFound = errors.New("overlay token not found")
	// ErrSessionSuperseded means another viewer session took the lock
	ErrSessionSuperseded = errors.New("overlay session superseded")
)

// Resolution is what a public overlay load gets back
type Resolution struct {
	LayoutID  string  `json:"layoutId"`
	Config    *string `json:"config"`
	IsExpired bool    `json:"isExpired"`
}

// Service resolves overlay tokens and manages the session lock
type Service struct {
	store *store.Store
}

// NewService creates an overlay service
func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// Resolve loads the overlay for a public token. Subscription tokens are
// checked first, then trial tokens living on theme customizations. A
// lapsed grant is not an error: the caller gets isExpired so the overlay
// can render its expired state instead of breaking the stream scene.
// A non-empty sessionID always claims the session lock (last writer
// wins), superseding whichever OBS instance held it before.
func (s *Service) Resolve(token, sessionID string) (*Resolution, error) {
	now := time.Now().UTC()

	var userID int64
	var layoutID string

	sub, err := s.store.GetSubscriptionByPublicToken(token)
	switch {
	case err == nil:
		if sub.Status != models.SubscriptionStatusActive || sub.IsExpired(now) {
			return &Resolution{LayoutID: sub.LayoutID, IsExpired: true}, nil
		}
		userID = sub.UserID
		layoutID = sub.LayoutID

	case errors.Is(err, sql.ErrNoRows):
		theme, err := s.store.GetThemeByPublicToken(token)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		if err != nil {
			return nil, err
		}

		user, err := s.store.GetUserByID(theme.UserID)
		if err != nil {
			return nil, err
		}

		// A theme token normally rides on a trial, but a subscription
		// covering the same layout also keeps it alive
		if !user.TrialActive(now) {
			covered, err := s.store.HasActiveSubscriptionForLayout(user.ID, theme.LayoutID, now)
			if err != nil {
				return nil, err
			}
			if !covered {
				return &Resolution{LayoutID: theme.LayoutID, IsExpired: true}, nil
			}
		}
		userID = theme.UserID
		layoutID = theme.LayoutID

	default:
		return nil, err
	}

	resolution := &Resolution{LayoutID: layoutID}
	theme, err := s.store.GetThemeConfig(userID, layoutID)
	if err == nil {
		resolution.Config = &theme.Config
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if sessionID != "" {
		if err := s.store.ClaimOverlaySession(userID, layoutID, sessionID, now); err != nil {
			return nil, err
		}
	}

	return resolution, nil
}

// Heartbeat refreshes the session lock for a viewer. Only subscription
// tokens carry heartbeats. A refresh that touches no row means another
// session claimed the overlay since this viewer loaded it.
func (s *Service) Heartbeat(token, sessionID string) error {
	sub, err := s.store.GetSubscriptionByPublicToken(token)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTokenNotFound
	}
	if err != nil {
		return err
	}

	rows, err := s.store.RefreshHeartbeat(sub.UserID, sub.LayoutID, sessionID, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows == 0 {
		log.Printf("[OVERLAY] Session %s lost the lock for token %s", sessionID, token)
		return ErrSessionSuperseded
	}
	return nil
}
