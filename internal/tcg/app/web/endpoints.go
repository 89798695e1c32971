package web

import (
	"net/http"

	"tcgsync_api/internal/tcg/app/web/handlers"
	"tcgsync_api/metrics"
	"tcgsync_api/pkg/middleware"
)

// SetupRoutes binds every endpoint of the sync service onto mux. All
// API routes are wrapped with the HTTP metrics middleware.
func SetupRoutes(mux *http.ServeMux, sync *handlers.SyncHandler, control *handlers.ControlHandler, health *handlers.HealthHandler) {
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.PrometheusMiddleware(h))
	}

	route("/api/sync/groups", sync.SyncGroupsHandler)
	route("/api/sync/products", sync.SyncProductsHandler)
	route("/api/sync/prices", sync.SyncPricesHandler)
	route("/api/sync/cancel", control.CancelHandler)
	route("/api/sync/signals", control.SignalsHandler)
	route("/api/sync/status", control.StatusHandler)
	route("/api/sync/status/reset", control.ResetHandler)

	mux.HandleFunc("/health", health.HealthHandler)
	mux.Handle("/metrics", metrics.MetricsHandler())
}
