package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/streamtheme-io/streamtheme/internal/models"
	"github.com/streamtheme-io/streamtheme/internal/overlay"
)

// ListLayoutsHandler returns the active layout catalog
func (api *Api) ListLayoutsHandler(w http.ResponseWriter, r *http.Request) {
	layouts, err := api.store.ListLayouts(true)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if layouts == nil {
		layouts = []*models.Layout{}
	}
	respondJSON(w, http.StatusOK, layouts)
}

// ListPlansHandler returns the active subscription plans
func (api *Api) ListPlansHandler(w http.ResponseWriter, r *http.Request) {
	plans, err := api.store.ListPlans(true)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if plans == nil {
		plans = []*models.SubscriptionPlan{}
	}
	respondJSON(w, http.StatusOK, plans)
}

// ListProductsHandler returns the active product catalog
func (api *Api) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := api.store.ListProducts(true)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if products == nil {
		products = []*models.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

// GetProductHandler returns a single product
func (api *Api) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	product, err := api.store.GetProduct(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// CreateSupportQueryHandler stores a message from the public support form
func (api *Api) CreateSupportQueryHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string  `json:"name"`
		Email   string  `json:"email"`
		Subject *string `json:"subject"`
		Message string  `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Message == "" {
		respondError(w, http.StatusBadRequest, "Name, email and message are required")
		return
	}

	query := &models.SupportQuery{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	}
	if err := api.store.CreateSupportQuery(query); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to submit query")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"message": "Support query submitted"})
}

// ResolveOverlayHandler serves the public overlay URL that OBS loads.
// A sessionId query parameter claims the session lock for the caller.
func (api *Api) ResolveOverlayHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	sessionID := r.URL.Query().Get("sessionId")

	resolution, err := api.overlay.Resolve(token, sessionID)
	if err != nil {
		if errors.Is(err, overlay.ErrTokenNotFound) {
			respondError(w, http.StatusNotFound, "Overlay not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, resolution)
}

// OverlayHeartbeatHandler refreshes the session lock for a viewer. A
// 409 tells a superseded OBS instance to stop rendering.
func (api *Api) OverlayHeartbeatHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token     string `json:"token"`
		SessionID string `json:"sessionId"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Token == "" || req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "token and sessionId are required")
		return
	}

	if err := api.overlay.Heartbeat(req.Token, req.SessionID); err != nil {
		switch {
		case errors.Is(err, overlay.ErrTokenNotFound):
			respondError(w, http.StatusNotFound, "Overlay not found")
		case errors.Is(err, overlay.ErrSessionSuperseded):
			respondError(w, http.StatusConflict, "Session superseded")
		default:
			respondError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
