package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/udec-estadio/humidityboard/pkg/config"
	"github.com/udec-estadio/humidityboard/pkg/dashboard"
	"github.com/udec-estadio/humidityboard/pkg/models"
)

// readingStore is the storage the HTTP layer depends on
type readingStore interface {
	StoreReading(ctx context.Context, value float64, location string) (models.Reading, error)
	GetLatestReadings(ctx context.Context, limit int) ([]models.Reading, error)
	IsConnectionHealthy() bool
}

// snapshotter exposes the current dashboard state
type snapshotter interface {
	Snapshot() dashboard.Snapshot
}

// RouteManager handles all HTTP routes
type RouteManager struct {
	store     readingStore
	dashboard snapshotter
	cfg       config.Config
	logger    *slog.Logger
	Router    *mux.Router
}

// NewRouteManager creates a new RouteManager instance
func NewRouteManager(store readingStore, dash snapshotter, cfg config.Config, logger *slog.Logger) *RouteManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteManager{
		store:     store,
		dashboard: dash,
		cfg:       cfg,
		logger:    logger,
		Router:    mux.NewRouter(),
	}
}

// Setup configures all routes
func (rm *RouteManager) Setup() {
	r := rm.Router
	r.Use(rm.requestLogger)

	// mux skips r.Use middleware when no route matches
	r.NotFoundHandler = rm.requestLogger(http.HandlerFunc(rm.notFoundHandler))
	r.MethodNotAllowedHandler = rm.requestLogger(http.HandlerFunc(rm.methodNotAllowedHandler))

	r.HandleFunc("/health", rm.healthHandler).Methods(http.MethodGet)

	// Ingestion endpoint, kept under every path the sensors have posted to
	for _, path := range []string{"/sensors", "/api/sensors", "/api/v1/sensors"} {
		r.HandleFunc(path, rm.recordReadingHandler).Methods(http.MethodPost)
		r.HandleFunc(path, rm.listReadingsHandler).Methods(http.MethodGet)
	}

	// Dashboard pages
	r.HandleFunc("/", rm.dashboardHandler).Methods(http.MethodGet)
	r.HandleFunc("/dashboard", rm.dashboardHandler).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/partial", rm.dashboardPartialHandler).Methods(http.MethodGet)
	r.HandleFunc("/readings", rm.readingsPageHandler).Methods(http.MethodGet)
}

// Handler returns the router wrapped with CORS handling
func (rm *RouteManager) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: rm.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept", "HX-Request", "HX-Current-URL", "HX-Target", "HX-Trigger"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         3600,
	})
	return c.Handler(rm.Router)
}
