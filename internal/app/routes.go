package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"trends-proxy/internal/middleware"
	"trends-proxy/internal/ratelimit"
)

// Routes builds the HTTP router with all middleware applied.
func (app *App) Routes() http.Handler {
	router := mux.NewRouter()

	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.CORSMiddleware)

	router.HandleFunc("/", app.Handlers.Home).Methods("GET")
	router.HandleFunc("/health", app.Handlers.HealthCheck).Methods("GET")

	// trend endpoints sit behind the per-client limiter; health and
	// home stay open for probes
	limited := router.NewRoute().Subrouter()
	limited.Use(app.RateLimiter.HTTPMiddleware(ratelimit.IPBasedKey))
	limited.HandleFunc("/trends", app.Handlers.GetTrends).Methods("GET")
	limited.HandleFunc("/trends/batch", app.Handlers.GetTrendsBatch).Methods("GET")

	return router
}
