package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/streamtheme-io/streamtheme/internal/access"
	"github.com/streamtheme-io/streamtheme/internal/auth"
	"github.com/streamtheme-io/streamtheme/internal/models"
)

// AccessStatusHandler reports the caller's resolved access state
func (api *Api) AccessStatusHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())

	status, err := api.access.Status(claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// StartTrialHandler activates the one-time free trial
func (api *Api) StartTrialHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())

	expiry, err := api.access.StartTrial(claims.UserID)
	if err != nil {
		if errors.Is(err, access.ErrTrialAlreadyUsed) {
			respondError(w, http.StatusBadRequest, "Trial already used")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user, err := api.store.GetUserByID(claims.UserID)
	if err == nil {
		if err := api.mailer.SendTrialStartedEmail(user.Email, user.FullName, expiry); err != nil {
			log.Printf("[EMAIL] Failed to send trial email to %s: %v", user.Email, err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"expiry":  expiry,
	})
}

// CreateOrderHandler creates a gateway order for a subscription plan
func (api *Api) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())

	var req struct {
		PlanID string `json:"planId"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PlanID == "" {
		respondError(w, http.StatusBadRequest, "planId is required")
		return
	}

	plan, err := api.store.GetPlan(req.PlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Plan not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user, err := api.store.GetUserByID(claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	amountPaise := int64(math.Round(plan.Price * 100))
	receipt := fmt.Sprintf("sub_%d_%d", user.ID, time.Now().Unix())
	order, err := api.payments.CreateOrder(r.Context(), amountPaise, "INR", receipt)
	if err != nil {
		respondError(w, http.StatusBadGateway, "Failed to create payment order")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"orderId":  order.ID,
		"amount":   order.Amount,
		"currency": order.Currency,
		"keyId":    api.payments.KeyID(),
		"planId":   plan.ID,
		"name":     user.FullName,
		"email":    user.Email,
		"contact":  user.PhoneNumber,
	})
}

// VerifyPaymentHandler verifies a checkout signature and activates the
// subscription. A signature mismatch records a FAILED transaction and
// changes nothing else.
func (api *Api) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())

	var req struct {
		OrderID   string `json:"orderId"`
		PaymentID string `json:"paymentId"`
		Signature string `json:"signature"`
		PlanID    string `json:"planId"`
	}
	if err := decodeJSON(r, &req); err != nil || req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		respondError(w, http.StatusBadRequest, "orderId, paymentId and signature are required")
		return
	}

	plan, err := api.store.GetPlan(req.PlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Plan not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := api.payments.VerifySignature(req.OrderID, req.PaymentID, req.Signature); err != nil {
		api.recordTransaction(claims.UserID, req.OrderID, req.PaymentID, plan.Price, "FAILED")
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"status":  "FAILED",
			"message": "Invalid Signature",
		})
		return
	}

	now := time.Now().UTC()
	sub := &models.Subscription{
		UserID:      claims.UserID,
		PlanID:      plan.ID,
		LayoutID:    models.DefaultLayoutID,
		StartDate:   now,
		ExpiryDate:  now.AddDate(0, plan.DurationMonths, 0),
		PricePaid:   plan.Price,
		OrderID:     &req.OrderID,
		PaymentID:   &req.PaymentID,
		Status:      models.SubscriptionStatusActive,
		PublicToken: uuid.NewString(),
	}
	if err := api.store.CreateSubscription(sub); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to activate subscription")
		return
	}

	api.recordTransaction(claims.UserID, req.OrderID, req.PaymentID, plan.Price, "SUCCESS")
	log.Printf("[PAYMENT] Subscription %d activated for user %d (plan %s)", sub.ID, claims.UserID, plan.ID)

	if user, err := api.store.GetUserByID(claims.UserID); err == nil {
		if err := api.mailer.SendSubscriptionActivatedEmail(user.Email, user.FullName, plan.Name, sub.ExpiryDate); err != nil {
			log.Printf("[EMAIL] Failed to send confirmation email to %s: %v", user.Email, err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "SUCCESS",
		"publicToken": sub.PublicToken,
		"expiry":      sub.ExpiryDate,
	})
}

// CreateProductOrderHandler creates a gateway order for a one-time product
func (api *Api) CreateProductOrderHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())

	var req struct {
		ProductID int64 `json:"productId"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ProductID == 0 {
		respondError(w, http.StatusBadRequest, "productId is required")
		return
	}

	product, err := api.store.GetProduct(req.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	amountPaise := int64(math.Round(product.Price * 100))
	receipt := fmt.Sprintf("prod_%d_%d", claims.UserID, time.Now().Unix())
	order, err := api.payments.CreateOrder(r.Context(), amountPaise, "INR", receipt)
	if err != nil {
		respondError(w, http.StatusBadGateway, "Failed to create payment order")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"orderId":   order.ID,
		"amount":    order.Amount,
		"currency":  order.Currency,
		"keyId":     api.payments.KeyID(),
		"productId": product.ID,
	})
}

// VerifyProductPaymentHandler verifies a product checkout and returns
// the download link
func (api *Api) VerifyProductPaymentHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())

	var req struct {
		OrderID   string `json:"orderId"`
		PaymentID string `json:"paymentId"`
		Signature string `json:"signature"`
		ProductID int64  `json:"productId"`
	}
	if err := decodeJSON(r, &req); err != nil || req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		respondError(w, http.StatusBadRequest, "orderId, paymentId and signature are required")
		return
	}

	product, err := api.store.GetProduct(req.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := api.payments.VerifySignature(req.OrderID, req.PaymentID, req.Signature); err != nil {
		api.recordTransaction(claims.UserID, req.OrderID, req.PaymentID, product.Price, "FAILED")
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"status":  "FAILED",
			"message": "Invalid Signature",
		})
		return
	}

	purchase := &models.ProductPurchase{
		UserID:        claims.UserID,
		ProductID:     product.ID,
		TransactionID: req.PaymentID,
		PricePaid:     product.Price,
	}
	if err := api.store.CreateProductPurchase(purchase); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to record purchase")
		return
	}
	api.recordTransaction(claims.UserID, req.OrderID, req.PaymentID, product.Price, "SUCCESS")

	fileURL := product.FileURL
	if api.files != nil {
		if url, err := api.files.DownloadURL(r.Context(), product.FileURL); err == nil {
			fileURL = url
		} else {
			log.Printf("[STORAGE] Failed to presign %s: %v", product.FileURL, err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "SUCCESS",
		"fileUrl": fileURL,
	})
}

// SaveThemeConfigHandler upserts the caller's theme configuration for a layout
func (api *Api) SaveThemeConfigHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.UserFromContext(r.Context())

	var req struct {
		LayoutID string          `json:"layoutId"`
		Config   json.RawMessage `json:"config"`
	}
	if err := decodeJSON(r, &req); err != nil || req.LayoutID == "" || len(req.Config) == 0 {
		respondError(w, http.StatusBadRequest, "layoutId and config are required")
		return
	}

	theme, err := api.store.UpsertThemeConfig(claims.UserID, req.LayoutID, string(req.Config), uuid.NewString())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save configuration")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":     "Configuration saved",
		"layoutId":    theme.LayoutID,
		"publicToken": theme.PublicToken,
	})
}

// recordTransaction appends a bookkeeping row; failures are logged, not fatal
func (api *Api) recordTransaction(userID int64, orderID, paymentID string, amount float64, status string) {
	tx := &models.Transaction{
		UserID:    &userID,
		OrderID:   &orderID,
		PaymentID: &paymentID,
		Amount:    &amount,
		Status:    status,
	}
	if err := api.store.CreateTransaction(tx); err != nil {
		log.Printf("[PAYMENT] Failed to record %s transaction for order %s: %v", status, orderID, err)
	}
}
