package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tradelearn/payments-backend/internal/api/handlers"
	"github.com/tradelearn/payments-backend/internal/auth"
	"github.com/tradelearn/payments-backend/internal/config"
	"github.com/tradelearn/payments-backend/internal/middleware"
	"github.com/tradelearn/payments-backend/internal/services"
)

type RouterDeps struct {
	Cfg          config.Config
	TokenManager *auth.TokenManager
	PaymentSvc   *services.PaymentService
	ReportingSvc *services.ReportingService
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(middleware.HTTPMetrics)

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())

	payments := handlers.NewPaymentHandler(d.PaymentSvc)
	reporting := handlers.NewReportingHandler(d.ReportingSvc)
	authH := handlers.NewAuthHandler(d.TokenManager, d.Cfg)
	authMW := middleware.NewAuthMiddleware(d.TokenManager)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)

		r.Route("/payments/{provider}", func(r chi.Router) {
			r.Post("/initialize", payments.Initialize)
			r.Get("/verify", payments.Verify)
			r.Post("/webhook", payments.Webhook)
			// some providers call it a callback; same handler
			r.Post("/callback", payments.Webhook)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth)
			r.Get("/transactions", reporting.List)
			r.Get("/transactions/{id}", reporting.Get)
			r.Get("/stats", reporting.Stats)
		})
	})

	return r
}
