// Package access resolves what a user may currently use: an active
// subscription outranks a live trial, and everything else is no access.
package access

import (
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/streamtheme-io/streamtheme/internal/models"
	"github.com/streamtheme-io/streamtheme/internal/store"
)

// TrialDuration is the length of the free trial window
const TrialDuration = 24 * time.Hour

// ErrTrialAlreadyUsed is returned when a user tries to start a second trial
var ErrTrialAlreadyUsed = errors.New("trial already used")

// Status is the resolved access state for a user
type Status struct {
	HasAccess  bool              `json:"hasAccess"`
	AccessType models.AccessType `json:"accessType"`
	Expiry     *time.Time        `json:"expiry"`
	TrialUsed  bool              `json:"trialUsed"`
}

// Resolver computes access status from the store
type Resolver struct {
	store *store.Store
}

// NewResolver creates an access resolver
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Status resolves the user's current access. The check is a pure read;
// lapsed subscriptions and trials are detected by comparing expiry
// against now, no background job flips anything.
func (r *Resolver) Status(userID int64) (*Status, error) {
	now := time.Now().UTC()

	sub, err := r.store.GetActiveSubscription(userID, now)
	if err == nil {
		expiry := sub.ExpiryDate
		user, err := r.store.GetUserByID(userID)
		if err != nil {
			return nil, err
		}
		return &Status{
			HasAccess:  true,
			AccessType: models.AccessTypeSubscription,
			Expiry:     &expiry,
			TrialUsed:  user.TrialUsed,
		}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	user, err := r.store.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	if user.TrialActive(now) {
		return &Status{
			HasAccess:  true,
			AccessType: models.AccessTypeTrial,
			Expiry:     user.TrialExpiry,
			TrialUsed:  true,
		}, nil
	}

	return &Status{
		HasAccess:  false,
		AccessType: models.AccessTypeNone,
		TrialUsed:  user.TrialUsed,
	}, nil
}

// StartTrial activates the one-time free trial. The trial_used flag is
// a one-way latch: it is set here and never cleared, even after the
// trial window lapses.
func (r *Resolver) StartTrial(userID int64) (time.Time, error) {
	user, err := r.store.GetUserByID(userID)
	if err != nil {
		return time.Time{}, err
	}
	if user.TrialUsed {
		return time.Time{}, ErrTrialAlreadyUsed
	}

	expiry := time.Now().UTC().Add(TrialDuration)
	if err := r.store.ActivateTrial(userID, expiry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost a race with a concurrent activation
			return time.Time{}, ErrTrialAlreadyUsed
		}
		return time.Time{}, err
	}

	log.Printf("[TRIAL] Trial started for user %d, expires %s", userID, expiry.Format(time.RFC3339))
	return expiry, nil
}
