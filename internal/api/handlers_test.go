package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/streamtheme-io/streamtheme/internal/auth"
	"github.com/streamtheme-io/streamtheme/internal/config"
	"github.com/streamtheme-io/streamtheme/internal/database"
	"github.com/streamtheme-io/streamtheme/internal/email"
	"github.com/streamtheme-io/streamtheme/internal/models"
	"github.com/streamtheme-io/streamtheme/internal/payment"
	"github.com/streamtheme-io/streamtheme/internal/store"
)

const testPaymentSecret = "test_secret"

type testClient struct {
	t     *testing.T
	app   *Api
	store *store.Store
	ip    string
}

func setupTestAPI(t *testing.T) *testClient {
	log.SetOutput(io.Discard)

	cfg := &config.Config{}
	cfg.APIPort = 8080
	cfg.ClientURL = "http://localhost:3000"
	cfg.Database.Type = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "api_test.db")
	cfg.JWT.Secret = "test-jwt-secret"

	db, err := database.Init(cfg)
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	tm, err := auth.NewTokenManager(cfg.JWT.Secret)
	assert.NoError(t, err)

	payments := payment.NewClient("rzp_test_key", testPaymentSecret)
	mailer := email.NewMailer("", "noreply@streamtheme.example", cfg.ClientURL)

	app, err := NewApi(cfg, s, tm, payments, mailer, nil)
	assert.NoError(t, err)

	// Each test gets its own rate limiter bucket
	return &testClient{t: t, app: app, store: s, ip: uuid.NewString()}
}

func (tc *testClient) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		assert.NoError(tc.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", tc.ip)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	tc.app.Router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

// createVerifiedUser registers a user directly and returns a login token
func (tc *testClient) createVerifiedUser(email string) (*models.User, string) {
	hash, err := models.HashPassword("secret123")
	assert.NoError(tc.t, err)
	user, err := tc.store.CreateUser("Test Streamer", email, hash, nil, nil, uuid.NewString())
	assert.NoError(tc.t, err)
	assert.NoError(tc.t, tc.store.VerifyUserEmail(*user.VerificationToken))

	token, err := tc.app.tokens.GenerateUserToken(user)
	assert.NoError(tc.t, err)
	return user, token
}

func (tc *testClient) adminToken() string {
	w := tc.do(http.MethodPost, "/api/admin/login", "", map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	assert.Equal(tc.t, http.StatusOK, w.Code)
	return decodeBody(tc.t, w)["token"].(string)
}

func signCheckout(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testPaymentSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHealthEndpoint(t *testing.T) {
	tc := setupTestAPI(t)

	w := tc.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestPublicCatalog(t *testing.T) {
	tc := setupTestAPI(t)

	w := tc.do(http.MethodGet, "/api/subscription-plans", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var plans []models.SubscriptionPlan
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&plans))
	assert.Len(t, plans, 3)

	w = tc.do(http.MethodGet, "/api/layouts", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var layouts []models.Layout
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&layouts))
	assert.Len(t, layouts, 1)
	assert.Equal(t, models.DefaultLayoutID, layouts[0].ID)
}

func TestRegistrationAndLogin(t *testing.T) {
	tc := setupTestAPI(t)

	t.Run("register", func(t *testing.T) {
		w := tc.do(http.MethodPost, "/api/auth/register", "", map[string]string{
			"name":     "New Streamer",
			"email":    "new@example.com",
			"password": "secret123",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		w := tc.do(http.MethodPost, "/api/auth/register", "", map[string]string{
			"name":     "Again",
			"email":    "new@example.com",
			"password": "secret123",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("login blocked before verification", func(t *testing.T) {
		w := tc.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "new@example.com",
			"password": "secret123",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("verify and login", func(t *testing.T) {
		user, err := tc.store.GetUserByEmail("new@example.com")
		assert.NoError(t, err)

		w := tc.do(http.MethodPost, "/api/auth/verify", "", map[string]string{
			"token": *user.VerificationToken,
		})
		assert.Equal(t, http.StatusOK, w.Code)

		w = tc.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "new@example.com",
			"password": "secret123",
		})
		assert.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.NotEmpty(t, body["token"])
		assert.False(t, body["hasAccess"].(bool))

		cookies := w.Result().Cookies()
		assert.NotEmpty(t, cookies)
		assert.Equal(t, auth.CookieName, cookies[0].Name)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := tc.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"email":    "new@example.com",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestBlockedUserCannotLogin(t *testing.T) {
	tc := setupTestAPI(t)
	user, _ := tc.createVerifiedUser("blocked@example.com")

	assert.NoError(t, tc.store.SetUserActive(user.ID, false))

	w := tc.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "blocked@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Account is blocked", decodeBody(t, w)["error"])
}

func TestAuthMiddleware(t *testing.T) {
	tc := setupTestAPI(t)
	_, token := tc.createVerifiedUser("middleware@example.com")

	t.Run("missing token", func(t *testing.T) {
		w := tc.do(http.MethodGet, "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := tc.do(http.MethodGet, "/api/auth/me", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bearer token", func(t *testing.T) {
		w := tc.do(http.MethodGet, "/api/auth/me", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("cookie token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("X-Forwarded-For", tc.ip)
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
		w := httptest.NewRecorder()
		tc.app.Router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestTrialFlow(t *testing.T) {
	tc := setupTestAPI(t)
	_, token := tc.createVerifiedUser("trial@example.com")

	w := tc.do(http.MethodGet, "/api/access-status", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.False(t, body["hasAccess"].(bool))
	assert.Equal(t, "NONE", body["accessType"])

	w = tc.do(http.MethodPost, "/api/trial/start", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody(t, w)["success"].(bool))

	w = tc.do(http.MethodPost, "/api/trial/start", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Trial already used", decodeBody(t, w)["error"])

	w = tc.do(http.MethodGet, "/api/access-status", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.True(t, body["hasAccess"].(bool))
	assert.Equal(t, "TRIAL", body["accessType"])
	assert.True(t, body["trialUsed"].(bool))
}

func TestPaymentVerification(t *testing.T) {
	tc := setupTestAPI(t)

	t.Run("valid signature activates subscription", func(t *testing.T) {
		_, token := tc.createVerifiedUser("payer@example.com")

		w := tc.do(http.MethodPost, "/api/payment/verify", token, map[string]string{
			"orderId":   "order_ok",
			"paymentId": "pay_ok",
			"signature": signCheckout("order_ok", "pay_ok"),
			"planId":    "monthly",
		})
		assert.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "SUCCESS", body["status"])
		assert.NotEmpty(t, body["publicToken"])

		var expiry time.Time
		assert.NoError(t, expiry.UnmarshalText([]byte(body["expiry"].(string))))
		assert.WithinDuration(t, time.Now().UTC().AddDate(0, 1, 0), expiry, time.Minute)

		w = tc.do(http.MethodGet, "/api/access-status", token, nil)
		status := decodeBody(t, w)
		assert.True(t, status["hasAccess"].(bool))
		assert.Equal(t, "SUBSCRIPTION", status["accessType"])
	})

	t.Run("bad signature fails closed", func(t *testing.T) {
		user, token := tc.createVerifiedUser("victim@example.com")

		w := tc.do(http.MethodPost, "/api/payment/verify", token, map[string]string{
			"orderId":   "order_bad",
			"paymentId": "pay_bad",
			"signature": "forged",
			"planId":    "monthly",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "FAILED", body["status"])
		assert.Equal(t, "Invalid Signature", body["message"])

		// No subscription appeared
		w = tc.do(http.MethodGet, "/api/access-status", token, nil)
		assert.False(t, decodeBody(t, w)["hasAccess"].(bool))

		// But the attempt was recorded
		txs, err := tc.store.ListTransactions()
		assert.NoError(t, err)
		var failed *models.Transaction
		for _, tx := range txs {
			if tx.OrderID != nil && *tx.OrderID == "order_bad" {
				failed = tx
			}
		}
		assert.NotNil(t, failed)
		assert.Equal(t, "FAILED", failed.Status)
		assert.Equal(t, user.ID, *failed.UserID)
	})

	t.Run("unknown plan", func(t *testing.T) {
		_, token := tc.createVerifiedUser("noplan@example.com")

		w := tc.do(http.MethodPost, "/api/payment/verify", token, map[string]string{
			"orderId":   "order_x",
			"paymentId": "pay_x",
			"signature": signCheckout("order_x", "pay_x"),
			"planId":    "lifetime",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSaveThemeConfigPreservesToken(t *testing.T) {
	tc := setupTestAPI(t)
	_, token := tc.createVerifiedUser("themer@example.com")

	w := tc.do(http.MethodPost, "/api/purchases/config", token, map[string]any{
		"layoutId": models.DefaultLayoutID,
		"config":   map[string]string{"color": "red"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	first := decodeBody(t, w)["publicToken"].(string)
	assert.NotEmpty(t, first)

	w = tc.do(http.MethodPost, "/api/purchases/config", token, map[string]any{
		"layoutId": models.DefaultLayoutID,
		"config":   map[string]string{"color": "blue"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, decodeBody(t, w)["publicToken"], "overlay URLs must survive edits")
}

func TestOverlayEndpoints(t *testing.T) {
	tc := setupTestAPI(t)
	user, token := tc.createVerifiedUser("overlay@example.com")

	w := tc.do(http.MethodPost, "/api/payment/verify", token, map[string]string{
		"orderId":   "order_ov",
		"paymentId": "pay_ov",
		"signature": signCheckout("order_ov", "pay_ov"),
		"planId":    "monthly",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	publicToken := decodeBody(t, w)["publicToken"].(string)

	_, err := tc.store.UpsertThemeConfig(user.ID, models.DefaultLayoutID, `{"color":"gold"}`, uuid.NewString())
	assert.NoError(t, err)

	t.Run("resolve", func(t *testing.T) {
		w := tc.do(http.MethodGet, "/api/public/"+publicToken+"?sessionId=obs-a", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.False(t, body["isExpired"].(bool))
		assert.Equal(t, models.DefaultLayoutID, body["layoutId"])
		assert.Equal(t, `{"color":"gold"}`, body["config"])
	})

	t.Run("unknown token", func(t *testing.T) {
		w := tc.do(http.MethodGet, "/api/public/"+uuid.NewString(), "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("heartbeat supersession", func(t *testing.T) {
		w := tc.do(http.MethodPost, "/api/public/heartbeat", "", map[string]string{
			"token": publicToken, "sessionId": "obs-a",
		})
		assert.Equal(t, http.StatusOK, w.Code)

		// A second OBS instance claims the lock
		w = tc.do(http.MethodGet, "/api/public/"+publicToken+"?sessionId=obs-b", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = tc.do(http.MethodPost, "/api/public/heartbeat", "", map[string]string{
			"token": publicToken, "sessionId": "obs-a",
		})
		assert.Equal(t, http.StatusConflict, w.Code)

		w = tc.do(http.MethodPost, "/api/public/heartbeat", "", map[string]string{
			"token": publicToken, "sessionId": "obs-b",
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("heartbeat unknown token", func(t *testing.T) {
		w := tc.do(http.MethodPost, "/api/public/heartbeat", "", map[string]string{
			"token": uuid.NewString(), "sessionId": "obs-a",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("revoked subscription renders expired", func(t *testing.T) {
		_, err := tc.store.RevokeActiveSubscriptions(user.ID, time.Now().UTC())
		assert.NoError(t, err)

		w := tc.do(http.MethodGet, "/api/public/"+publicToken, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, "a dead grant must not break the stream scene")
		assert.True(t, decodeBody(t, w)["isExpired"].(bool))
	})
}

func TestAdminEndpoints(t *testing.T) {
	tc := setupTestAPI(t)
	user, userToken := tc.createVerifiedUser("managed@example.com")
	adminToken := tc.adminToken()

	t.Run("user token rejected on admin routes", func(t *testing.T) {
		w := tc.do(http.MethodGet, "/api/admin/stats", userToken, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong admin credentials", func(t *testing.T) {
		w := tc.do(http.MethodPost, "/api/admin/login", "", map[string]string{
			"username": "admin", "password": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("stats", func(t *testing.T) {
		w := tc.do(http.MethodGet, "/api/admin/stats", adminToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, float64(1), body["userCount"])
	})

	t.Run("grant and revoke subscription", func(t *testing.T) {
		path := fmt.Sprintf("/api/admin/users/%d/subscriptions", user.ID)
		w := tc.do(http.MethodPost, path, adminToken, map[string]any{"months": 2})
		assert.Equal(t, http.StatusCreated, w.Code)

		var sub models.Subscription
		assert.NoError(t, json.NewDecoder(w.Body).Decode(&sub))
		assert.Equal(t, GiftPlanID, sub.PlanID)
		assert.WithinDuration(t, time.Now().UTC().AddDate(0, 2, 0), sub.ExpiryDate, time.Minute)

		w = tc.do(http.MethodGet, "/api/access-status", userToken, nil)
		assert.Equal(t, "SUBSCRIPTION", decodeBody(t, w)["accessType"])

		// Revocation is visible on the very next check
		w = tc.do(http.MethodPost, fmt.Sprintf("/api/admin/users/%d/revoke", user.ID), adminToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), decodeBody(t, w)["revoked"])

		w = tc.do(http.MethodGet, "/api/access-status", userToken, nil)
		assert.Equal(t, "NONE", decodeBody(t, w)["accessType"])
	})

	t.Run("block and unblock", func(t *testing.T) {
		w := tc.do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d/block", user.ID), adminToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = tc.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "managed@example.com", "password": "secret123",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = tc.do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d/unblock", user.ID), adminToken, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = tc.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "managed@example.com", "password": "secret123",
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("update plan", func(t *testing.T) {
		w := tc.do(http.MethodPut, "/api/admin/plans/monthly", adminToken, map[string]any{
			"price": 349,
		})
		assert.Equal(t, http.StatusOK, w.Code)

		var plan models.SubscriptionPlan
		assert.NoError(t, json.NewDecoder(w.Body).Decode(&plan))
		assert.Equal(t, 349.0, plan.Price)
		assert.Equal(t, "Monthly", plan.Name)
	})

	t.Run("extend subscription", func(t *testing.T) {
		path := fmt.Sprintf("/api/admin/users/%d/subscriptions", user.ID)
		w := tc.do(http.MethodPost, path, adminToken, map[string]any{"months": 1})
		assert.Equal(t, http.StatusCreated, w.Code)
		var sub models.Subscription
		assert.NoError(t, json.NewDecoder(w.Body).Decode(&sub))

		w = tc.do(http.MethodPut, fmt.Sprintf("/api/admin/subscriptions/%d/extend", sub.ID), adminToken, map[string]any{"months": 6})
		assert.Equal(t, http.StatusOK, w.Code)

		var extended models.Subscription
		assert.NoError(t, json.NewDecoder(w.Body).Decode(&extended))
		assert.WithinDuration(t, sub.ExpiryDate.AddDate(0, 6, 0), extended.ExpiryDate, time.Second)
	})
}

func TestMeHandlerShowsTrialPurchase(t *testing.T) {
	tc := setupTestAPI(t)
	_, token := tc.createVerifiedUser("dashboard@example.com")

	w := tc.do(http.MethodPost, "/api/trial/start", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = tc.do(http.MethodPost, "/api/purchases/config", token, map[string]any{
		"layoutId": models.DefaultLayoutID,
		"config":   map[string]string{"color": "teal"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	themeToken := decodeBody(t, w)["publicToken"].(string)

	w = tc.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	purchases := body["purchases"].([]any)
	assert.Len(t, purchases, 1)

	entry := purchases[0].(map[string]any)
	assert.Equal(t, "trial", entry["planId"])
	assert.Equal(t, models.DefaultLayoutID, entry["layoutId"])
	assert.Equal(t, themeToken, entry["publicToken"], "the trial rides on the theme's overlay token")
}

func TestSupportForm(t *testing.T) {
	tc := setupTestAPI(t)

	w := tc.do(http.MethodPost, "/api/support", "", map[string]string{
		"name":    "Viewer",
		"email":   "viewer@example.com",
		"message": "My overlay is blank",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = tc.do(http.MethodPost, "/api/support", "", map[string]string{"name": "Incomplete"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	adminToken := tc.adminToken()
	w = tc.do(http.MethodGet, "/api/admin/support", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var queries []models.SupportQuery
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&queries))
	assert.Len(t, queries, 1)
	assert.Equal(t, models.SupportStatusOpen, queries[0].Status)
}

func TestMetricsEndpoint(t *testing.T) {
	tc := setupTestAPI(t)
	tc.app.Config.Metrics.User = "metrics"
	tc.app.Config.Metrics.Pass = "sekret"

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Forwarded-For", tc.ip)
	w := httptest.NewRecorder()
	tc.app.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Forwarded-For", tc.ip)
	req.SetBasicAuth("metrics", "sekret")
	w = httptest.NewRecorder()
	tc.app.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
