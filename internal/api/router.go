package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baharkarakas/mpesa-backend/internal/api/handlers"
	"github.com/baharkarakas/mpesa-backend/internal/config"
	"github.com/baharkarakas/mpesa-backend/internal/middleware"
	"github.com/baharkarakas/mpesa-backend/internal/models"
)

func NewRouter(cfg config.Config, ph *handlers.PaymentsHandler, ah *handlers.AuthHandler, am *middleware.AuthMiddleware) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.RateLimit(cfg.RateRPS), middleware.HTTPMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", ah.Register)
		r.Post("/auth/token", ah.Token)

		// the gateway posts here and cannot carry our bearer token
		r.Post("/payments/callback", ph.Callback)

		r.Group(func(r chi.Router) {
			r.Use(am.Auth)
			r.With(middleware.RequireRole(models.RolePayments)).Post("/payments", ph.Initiate)
			r.With(middleware.RequireRole(models.RoleBackoffice)).Get("/payments", ph.List)
			r.With(middleware.RequireRole(models.RoleBackoffice)).Get("/mpesa/token", ph.GatewayToken)
		})
	})

	return r
}
