package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streamtheme-io/streamtheme/internal/auth"
	"github.com/streamtheme-io/streamtheme/internal/models"
)

const passwordResetTTL = time.Hour

// RegisterHandler creates a new user account and sends the verification mail
func (api *Api) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string  `json:"name"`
		Email    string  `json:"email"`
		Password string  `json:"password"`
		Phone    *string `json:"phone"`
		Age      *int    `json:"age"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Name, email and password are required")
		return
	}
	if len(req.Password) < 6 {
		respondError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	if _, err := api.store.GetUserByEmail(req.Email); err == nil {
		respondError(w, http.StatusBadRequest, "Email already registered")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	hash, err := models.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	verificationToken := uuid.NewString()
	user, err := api.store.CreateUser(req.Name, req.Email, hash, req.Phone, req.Age, verificationToken)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	if err := api.mailer.SendVerificationEmail(user.Email, user.FullName, verificationToken); err != nil {
		log.Printf("[EMAIL] Failed to send verification email to %s: %v", user.Email, err)
	}

	log.Printf("[AUTH] Registered user %d (%s)", user.ID, user.Email)
	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "Registration successful. Please check your email to verify your account.",
	})
}

// VerifyEmailHandler consumes an email verification token
func (api *Api) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Token == "" {
		respondError(w, http.StatusBadRequest, "Token is required")
		return
	}

	if err := api.store.VerifyUserEmail(req.Token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusBadRequest, "Invalid verification token")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully"})
}

// LoginHandler checks credentials and sets the login cookie
func (api *Api) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := api.store.GetUserByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !user.ValidatePassword(req.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !user.IsEmailVerified {
		respondError(w, http.StatusForbidden, "Please verify your email before logging in")
		return
	}
	if !user.IsActive {
		respondError(w, http.StatusForbidden, "Account is blocked")
		return
	}

	token, err := api.tokens.GenerateUserToken(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status, err := api.access.Status(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.UserTokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"id":         user.ID,
		"name":       user.FullName,
		"email":      user.Email,
		"phone":      user.PhoneNumber,
		"hasAccess":  status.HasAccess,
		"accessType": status.AccessType,
		"trialUsed":  status.TrialUsed,
		"token":      token,
	})
}

// LogoutHandler clears the login cookie
func (api *Api) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// purchaseEntry is one row of the dashboard's purchases list
type purchaseEntry struct {
	LayoutID      string    `json:"layoutId"`
	PlanID        string    `json:"planId"`
	DurationLabel string    `json:"durationLabel"`
	PricePaid     float64   `json:"pricePaid"`
	Expiry        time.Time `json:"expiry"`
	PublicToken   string    `json:"publicToken"`
	Config        *string   `json:"config"`
}

func durationLabel(months int) string {
	switch months {
	case 1:
		return "1 month"
	case 12:
		return "1 year"
	default:
		return fmt.Sprintf("%d months", months)
	}
}

// MeHandler returns the profile plus the purchases powering the dashboard
func (api *Api) MeHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())
	now := time.Now().UTC()

	user, err := api.store.GetUserByID(claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status, err := api.access.Status(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	subs, err := api.store.ListActiveUserSubscriptions(user.ID, now)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	themes, err := api.store.ListUserThemes(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	themeByLayout := make(map[string]*models.ThemeCustomization, len(themes))
	for _, theme := range themes {
		themeByLayout[theme.LayoutID] = theme
	}

	purchases := make([]purchaseEntry, 0, len(subs)+1)
	coveredLayouts := make(map[string]bool)
	for _, sub := range subs {
		entry := purchaseEntry{
			LayoutID:    sub.LayoutID,
			PlanID:      sub.PlanID,
			PricePaid:   sub.PricePaid,
			Expiry:      sub.ExpiryDate,
			PublicToken: sub.PublicToken,
		}
		if plan, err := api.store.GetPlan(sub.PlanID); err == nil {
			entry.DurationLabel = durationLabel(plan.DurationMonths)
		}
		if theme := themeByLayout[sub.LayoutID]; theme != nil {
			entry.Config = &theme.Config
		}
		purchases = append(purchases, entry)
		coveredLayouts[sub.LayoutID] = true
	}

	// A live trial shows up as a pseudo purchase of the default layout
	// unless a real subscription already covers it
	if user.TrialActive(now) && !coveredLayouts[models.DefaultLayoutID] {
		entry := purchaseEntry{
			LayoutID:      models.DefaultLayoutID,
			PlanID:        "trial",
			DurationLabel: "trial",
			Expiry:        *user.TrialExpiry,
		}
		if theme := themeByLayout[models.DefaultLayoutID]; theme != nil {
			entry.PublicToken = theme.PublicToken
			entry.Config = &theme.Config
		}
		purchases = append(purchases, entry)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":         user.ID,
		"name":       user.FullName,
		"email":      user.Email,
		"phone":      user.PhoneNumber,
		"age":        user.Age,
		"hasAccess":  status.HasAccess,
		"accessType": status.AccessType,
		"expiry":     status.Expiry,
		"trialUsed":  status.TrialUsed,
		"purchases":  purchases,
	})
}

// UpdateProfileHandler updates the caller's profile fields
func (api *Api) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())

	var req struct {
		Name  string  `json:"name"`
		Phone *string `json:"phone"`
		Age   *int    `json:"age"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}

	if err := api.store.UpdateUserProfile(claims.UserID, req.Name, req.Phone, req.Age); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Profile updated"})
}

// ForgotPasswordHandler issues a password reset token
func (api *Api) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		respondError(w, http.StatusBadRequest, "Email is required")
		return
	}

	user, err := api.store.GetUserByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "No account found with that email")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resetToken := uuid.NewString()
	expiry := time.Now().UTC().Add(passwordResetTTL)
	if err := api.store.SetPasswordResetToken(user.ID, resetToken, expiry); err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := api.mailer.SendPasswordResetEmail(user.Email, user.FullName, resetToken); err != nil {
		log.Printf("[EMAIL] Failed to send reset email to %s: %v", user.Email, err)
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Password reset email sent"})
}

// ResetPasswordHandler consumes a reset token and sets the new password
func (api *Api) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Token == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Token and password are required")
		return
	}
	if len(req.Password) < 6 {
		respondError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	user, err := api.store.GetUserByResetToken(req.Token, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusBadRequest, "Invalid or expired reset token")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	hash, err := models.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := api.store.ResetPassword(user.ID, hash); err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}
