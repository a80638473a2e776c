package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamtheme-io/streamtheme/internal/access"
	"github.com/streamtheme-io/streamtheme/internal/auth"
	"github.com/streamtheme-io/streamtheme/internal/config"
	"github.com/streamtheme-io/streamtheme/internal/email"
	"github.com/streamtheme-io/streamtheme/internal/overlay"
	"github.com/streamtheme-io/streamtheme/internal/payment"
	"github.com/streamtheme-io/streamtheme/internal/storage"
	"github.com/streamtheme-io/streamtheme/internal/store"
)

type Api struct {
	Config   *config.Config
	Router   *chi.Mux
	store    *store.Store
	tokens   *auth.TokenManager
	access   *access.Resolver
	overlay  *overlay.Service
	payments *payment.Client
	mailer   *email.Mailer
	files    *storage.S3Client
}

// NewApi wires the HTTP surface. The files client may be nil when
// object storage is not configured; product downloads then return the
// stored URL as-is.
func NewApi(cfg *config.Config, s *store.Store, tm *auth.TokenManager, payments *payment.Client, mailer *email.Mailer, files *storage.S3Client) (*Api, error) {
	api := &Api{
		Config:   cfg,
		Router:   chi.NewRouter(),
		store:    s,
		tokens:   tm,
		access:   access.NewResolver(s),
		overlay:  overlay.NewService(s),
		payments: payments,
		mailer:   mailer,
		files:    files,
	}

	api.setupRoutes()
	return api, nil
}

func (api *Api) setupRoutes() {
	r := api.Router

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{api.Config.ClientURL, "http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RateLimitMiddleware)
	r.Use(MonitorMiddleware)

	r.Get("/metrics", api.metricsHandler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", api.HealthHandler)

		// Public catalog
		r.Get("/layouts", api.ListLayoutsHandler)
		r.Get("/subscription-plans", api.ListPlansHandler)
		r.Get("/products", api.ListProductsHandler)
		r.Get("/products/{id}", api.GetProductHandler)
		r.Post("/support", api.CreateSupportQueryHandler)

		// Public overlay
		r.Get("/public/{token}", api.ResolveOverlayHandler)
		r.Post("/public/heartbeat", api.OverlayHeartbeatHandler)

		// Auth
		r.Post("/auth/register", api.RegisterHandler)
		r.Post("/auth/verify", api.VerifyEmailHandler)
		r.Post("/auth/login", api.LoginHandler)
		r.Post("/auth/logout", api.LogoutHandler)
		r.Post("/auth/forgot-password", api.ForgotPasswordHandler)
		r.Post("/auth/reset-password", api.ResetPasswordHandler)

		// Authenticated user surface
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(api.tokens))
			r.Get("/auth/me", api.MeHandler)
			r.Put("/auth/profile", api.UpdateProfileHandler)
			r.Get("/access-status", api.AccessStatusHandler)
			r.Post("/trial/start", api.StartTrialHandler)
			r.Post("/payment/create-order", api.CreateOrderHandler)
			r.Post("/payment/verify", api.VerifyPaymentHandler)
			r.Post("/payment/create-product-order", api.CreateProductOrderHandler)
			r.Post("/payment/verify-product", api.VerifyProductPaymentHandler)
			r.Post("/purchases/config", api.SaveThemeConfigHandler)
		})

		// Back office
		r.Post("/admin/login", api.AdminLoginHandler)
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(api.tokens))
			r.Get("/stats", api.AdminStatsHandler)
			r.Get("/transactions", api.AdminListTransactionsHandler)

			r.Get("/users", api.AdminListUsersHandler)
			r.Post("/users", api.AdminCreateUserHandler)
			r.Delete("/users/{id}", api.AdminDeleteUserHandler)
			r.Put("/users/{id}/block", api.AdminBlockUserHandler)
			r.Put("/users/{id}/unblock", api.AdminUnblockUserHandler)
			r.Put("/users/{id}/password", api.AdminSetUserPasswordHandler)
			r.Get("/users/{id}/subscriptions", api.AdminListUserSubscriptionsHandler)
			r.Post("/users/{id}/subscriptions", api.AdminGrantSubscriptionHandler)
			r.Put("/subscriptions/{id}/extend", api.AdminExtendSubscriptionHandler)
			r.Post("/users/{id}/revoke", api.AdminRevokeSubscriptionsHandler)

			r.Get("/coupons", api.AdminListCouponsHandler)
			r.Post("/coupons", api.AdminCreateCouponHandler)
			r.Delete("/coupons/{id}", api.AdminDeleteCouponHandler)

			r.Get("/layouts", api.AdminListLayoutsHandler)
			r.Post("/layouts", api.AdminCreateLayoutHandler)
			r.Put("/layouts/{id}", api.AdminUpdateLayoutHandler)
			r.Delete("/layouts/{id}", api.AdminDeleteLayoutHandler)

			r.Get("/support", api.AdminListSupportQueriesHandler)
			r.Put("/support/{id}/status", api.AdminUpdateSupportStatusHandler)
			r.Delete("/support/{id}", api.AdminDeleteSupportQueryHandler)

			r.Get("/products", api.AdminListProductsHandler)
			r.Post("/products", api.AdminCreateProductHandler)
			r.Put("/products/{id}", api.AdminUpdateProductHandler)
			r.Delete("/products/{id}", api.AdminDeleteProductHandler)

			r.Get("/plans", api.AdminListPlansHandler)
			r.Put("/plans/{id}", api.AdminUpdatePlanHandler)
		})
	})
}

func (api *Api) metricsHandler() http.HandlerFunc {
	handler := promhttp.Handler()
	return func(w http.ResponseWriter, r *http.Request) {
		if api.Config.Metrics.User != "" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != api.Config.Metrics.User || pass != api.Config.Metrics.Pass {
				w.Header().Set("WWW-Authenticate", `Basic realm="Metrics"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
		handler.ServeHTTP(w, r)
	}
}

// HealthHandler reports liveness and database reachability
func (api *Api) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.store.Ping(); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (api *Api) Serve() {
	go CleanupVisitors()

	addr := fmt.Sprintf("0.0.0.0:%d", api.Config.APIPort)
	log.Printf("Starting API server on %s", addr)
	log.Fatal(http.ListenAndServe(addr, api.Router))
}
