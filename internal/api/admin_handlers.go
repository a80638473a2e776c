package api

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/streamtheme-io/streamtheme/internal/models"
	"github.com/streamtheme-io/streamtheme/internal/store"
)

// GiftPlanID marks admin-granted subscriptions in place of a paid plan
const GiftPlanID = "gift"

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// AdminLoginHandler checks back-office credentials and issues a bearer token
func (api *Api) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	admin, err := api.store.GetAdminByUsername(req.Username)
	if err != nil || !admin.ValidatePassword(req.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := api.tokens.GenerateAdminToken(admin)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("[ADMIN] Admin %s logged in", admin.Username)
	respondJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"username": admin.Username,
	})
}

// AdminStatsHandler returns the dashboard summary numbers
func (api *Api) AdminStatsHandler(w http.ResponseWriter, r *http.Request) {
	userCount, err := api.store.CountUsers()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	activeSubs, err := api.store.CountActiveSubscriptions(time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	revenue, err := api.store.TotalRevenue()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	recent, err := api.store.GetRecentUsers(5)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if recent == nil {
		recent = []*models.User{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"userCount":           userCount,
		"activeSubscriptions": activeSubs,
		"totalRevenue":        revenue,
		"recentUsers":         recent,
	})
}

// AdminListTransactionsHandler returns the payment bookkeeping log
func (api *Api) AdminListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := api.store.ListTransactions()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}
	respondJSON(w, http.StatusOK, txs)
}

// ---- Users ----

// AdminListUsersHandler returns all users with purchase aggregates
func (api *Api) AdminListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := api.store.ListUsersWithStats(time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if users == nil {
		users = []*store.UserWithStats{}
	}
	respondJSON(w, http.StatusOK, users)
}

// AdminCreateUserHandler creates a pre-verified user account
func (api *Api) AdminCreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string  `json:"name"`
		Email    string  `json:"email"`
		Password string  `json:"password"`
		Phone    *string `json:"phone"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Name, email and password are required")
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

	user, err := api.store.CreateUser(req.Name, req.Email, hash, req.Phone, nil, uuid.NewString())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	// Admin-created accounts skip the verification mail round trip
	if err := api.store.VerifyUserEmail(*user.VerificationToken); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"id": user.ID, "email": user.Email})
}

// AdminDeleteUserHandler removes a user and everything hanging off it
func (api *Api) AdminDeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	if err := api.store.DeleteUser(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("[ADMIN] Deleted user %d", id)
	respondJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

func (api *Api) setUserActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	if err := api.store.SetUserActive(id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	message := "User blocked"
	if active {
		message = "User unblocked"
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// AdminBlockUserHandler blocks a user from logging in
func (api *Api) AdminBlockUserHandler(w http.ResponseWriter, r *http.Request) {
	api.setUserActive(w, r, false)
}

// AdminUnblockUserHandler restores a blocked account
func (api *Api) AdminUnblockUserHandler(w http.ResponseWriter, r *http.Request) {
	api.setUserActive(w, r, true)
}

// AdminSetUserPasswordHandler force-sets a user's password
func (api *Api) AdminSetUserPasswordHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil || len(req.Password) < 6 {
		respondError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	hash, err := models.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := api.store.SetUserPassword(id, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// ---- Subscriptions ----

// AdminListUserSubscriptionsHandler returns a user's full subscription history
func (api *Api) AdminListUserSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	subs, err := api.store.ListUserSubscriptions(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if subs == nil {
		subs = []*models.Subscription{}
	}
	respondJSON(w, http.StatusOK, subs)
}

// AdminGrantSubscriptionHandler grants a free subscription
func (api *Api) AdminGrantSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req struct {
		Months   int    `json:"months"`
		LayoutID string `json:"layoutId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Months <= 0 {
		req.Months = 1
	}
	if req.LayoutID == "" {
		req.LayoutID = models.DefaultLayoutID
	}

	if _, err := api.store.GetUserByID(id); err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	now := time.Now().UTC()
	sub := &models.Subscription{
		UserID:      id,
		PlanID:      GiftPlanID,
		LayoutID:    req.LayoutID,
		StartDate:   now,
		ExpiryDate:  now.AddDate(0, req.Months, 0),
		Status:      models.SubscriptionStatusActive,
		PublicToken: uuid.NewString(),
	}
	if err := api.store.CreateSubscription(sub); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to grant subscription")
		return
	}

	log.Printf("[ADMIN] Granted %d month(s) of %s to user %d", req.Months, req.LayoutID, id)
	respondJSON(w, http.StatusCreated, sub)
}

// AdminExtendSubscriptionHandler pushes a subscription's expiry forward
func (api *Api) AdminExtendSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid subscription id")
		return
	}

	var req struct {
		Months int `json:"months"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Months <= 0 {
		req.Months = 1
	}

	sub, err := api.store.ExtendSubscription(id, req.Months)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Subscription not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, sub)
}

// AdminRevokeSubscriptionsHandler expires all of a user's live
// subscriptions immediately. The next access check or overlay load
// sees the change.
func (api *Api) AdminRevokeSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	revoked, err := api.store.RevokeActiveSubscriptions(id, time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("[ADMIN] Revoked %d subscription(s) for user %d", revoked, id)
	respondJSON(w, http.StatusOK, map[string]any{"revoked": revoked})
}

// ---- Coupons ----

func (api *Api) AdminListCouponsHandler(w http.ResponseWriter, r *http.Request) {
	coupons, err := api.store.ListCoupons()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if coupons == nil {
		coupons = []*models.Coupon{}
	}
	respondJSON(w, http.StatusOK, coupons)
}

func (api *Api) AdminCreateCouponHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code          string              `json:"code"`
		DiscountType  models.DiscountType `json:"discount_type"`
		DiscountValue float64             `json:"discount_value"`
		Description   *string             `json:"description"`
		LayoutID      *string             `json:"layout_id"`
		MaxUses       int                 `json:"max_uses"`
		ExpiryDate    *time.Time          `json:"expiry_date"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Code == "" || req.DiscountValue <= 0 {
		respondError(w, http.StatusBadRequest, "Code and a positive discount value are required")
		return
	}
	if req.DiscountType == "" {
		req.DiscountType = models.DiscountTypePercent
	}

	coupon := &models.Coupon{
		Code:          req.Code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		Description:   req.Description,
		LayoutID:      req.LayoutID,
		MaxUses:       req.MaxUses,
		ExpiryDate:    req.ExpiryDate,
	}
	if err := api.store.CreateCoupon(coupon); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create coupon")
		return
	}
	respondJSON(w, http.StatusCreated, coupon)
}

func (api *Api) AdminDeleteCouponHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid coupon id")
		return
	}
	if err := api.store.DeleteCoupon(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Coupon not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Coupon deleted"})
}

// ---- Layouts ----

func (api *Api) AdminListLayoutsHandler(w http.ResponseWriter, r *http.Request) {
	layouts, err := api.store.ListLayouts(false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if layouts == nil {
		layouts = []*models.Layout{}
	}
	respondJSON(w, http.StatusOK, layouts)
}

func (api *Api) AdminCreateLayoutHandler(w http.ResponseWriter, r *http.Request) {
	var layout models.Layout
	if err := decodeJSON(r, &layout); err != nil || layout.ID == "" || layout.Name == "" {
		respondError(w, http.StatusBadRequest, "Layout id and name are required")
		return
	}

	if err := api.store.CreateLayout(&layout); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create layout")
		return
	}
	respondJSON(w, http.StatusCreated, layout)
}

func (api *Api) AdminUpdateLayoutHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var upd store.LayoutUpdate
	if err := decodeJSON(r, &upd); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := api.store.UpdateLayout(id, upd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Layout not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	layout, err := api.store.GetLayout(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, layout)
}

func (api *Api) AdminDeleteLayoutHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := api.store.DeleteLayout(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Layout not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Layout deleted"})
}

// ---- Support queries ----

func (api *Api) AdminListSupportQueriesHandler(w http.ResponseWriter, r *http.Request) {
	queries, err := api.store.ListSupportQueries()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if queries == nil {
		queries = []*models.SupportQuery{}
	}
	respondJSON(w, http.StatusOK, queries)
}

func (api *Api) AdminUpdateSupportStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid query id")
		return
	}

	var req struct {
		Status models.SupportStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil ||
		(req.Status != models.SupportStatusOpen && req.Status != models.SupportStatusClosed) {
		respondError(w, http.StatusBadRequest, "Status must be OPEN or CLOSED")
		return
	}

	if err := api.store.UpdateSupportQueryStatus(id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Query not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Status updated"})
}

func (api *Api) AdminDeleteSupportQueryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid query id")
		return
	}
	if err := api.store.DeleteSupportQuery(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Query not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Query deleted"})
}

// ---- Products ----

func (api *Api) AdminListProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := api.store.ListProducts(false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if products == nil {
		products = []*models.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

func (api *Api) AdminCreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := decodeJSON(r, &product); err != nil || product.Name == "" || product.FileURL == "" {
		respondError(w, http.StatusBadRequest, "Product name and file_url are required")
		return
	}

	if err := api.store.CreateProduct(&product); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (api *Api) AdminUpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	var upd store.ProductUpdate
	if err := decodeJSON(r, &upd); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := api.store.UpdateProduct(id, upd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	product, err := api.store.GetProduct(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (api *Api) AdminDeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product id")
		return
	}
	if err := api.store.DeleteProduct(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

// ---- Plans ----

func (api *Api) AdminListPlansHandler(w http.ResponseWriter, r *http.Request) {
	plans, err := api.store.ListPlans(false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if plans == nil {
		plans = []*models.SubscriptionPlan{}
	}
	respondJSON(w, http.StatusOK, plans)
}

func (api *Api) AdminUpdatePlanHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var upd store.PlanUpdate
	if err := decodeJSON(r, &upd); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := api.store.UpdatePlan(id, upd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Plan not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	plan, err := api.store.GetPlan(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, plan)
}
