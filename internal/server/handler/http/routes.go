package http

import (
	"net/http"

	"github.com/hase-lab/accountd/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the HTTP handler serving the account API.
//
// Routes:
//
//	GET  /api/users          → accountHandler.ListUsers
//	POST /api/users          → accountHandler.CreateUser
//	POST /api/login          → accountHandler.Login
//	POST /api/logout         → accountHandler.Logout (bearer token)
//	PUT  /api/users/password → accountHandler.ChangePassword (bearer token,
//	                           checked by RequireToken before the body)
//	GET  /metrics            → Prometheus exposition
//
// Middleware chain (applied in order):
//  1. RequestID and Recoverer from chi
//  2. WithTracing
//  3. WithRequestLogging(logger)
//  4. WithMetrics
//  5. BearerToken
func NewRouter(accountHandler *AccountHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithTracing)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.WithMetrics)
	r.Use(middleware.BearerToken)

	r.Route("/api", func(r chi.Router) {
		r.Get("/users", accountHandler.ListUsers)
		r.Post("/logout", accountHandler.Logout)

		// Endpoints that take a JSON body
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.AllowContentType("application/json"))
			r.Post("/users", accountHandler.CreateUser)
			r.Post("/login", accountHandler.Login)
		})

		r.With(
			accountHandler.RequireToken,
			chiMiddleware.AllowContentType("application/json"),
		).Put("/users/password", accountHandler.ChangePassword)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
