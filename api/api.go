// Package api serves the GraphQL endpoint, health check and metrics over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"mongograph/config"
	"mongograph/util/goroutine"

	"github.com/gorilla/mux"
	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterEntry holds a rate limiter with last seen time
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// HealthChecker reports whether the database is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// API holds the API server
type API struct {
	router         *mux.Router
	server         *http.Server
	graphql        http.Handler
	db             HealthChecker
	dbHost         string
	config         *config.Config
	logger         *zap.SugaredLogger
	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	serverMu       sync.Mutex
	stopCh         chan struct{}
	stopOnce       sync.Once
}

// NewAPI creates a new API server. db must already be connected.
func NewAPI(schema *graphql.Schema, db HealthChecker, dbHost string, config *config.Config, logger *zap.SugaredLogger) *API {
	api := &API{
		router:       mux.NewRouter(),
		graphql:      &relay.Handler{Schema: schema},
		db:           db,
		dbHost:       dbHost,
		config:       config,
		logger:       logger,
		rateLimiters: make(map[string]*rateLimiterEntry),
		stopCh:       make(chan struct{}),
	}
	api.setupRoutes()
	goroutine.Go("rate-limiter-cleanup", logger, api.cleanupRateLimiters)
	return api
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.Use(a.requestIDMiddleware)
	a.router.Use(a.loggingMiddleware)
	a.router.Use(a.corsMiddleware)
	a.router.Use(a.rateLimitMiddleware)

	a.router.HandleFunc("/graphql", a.handleGraphQL).Methods(http.MethodPost, http.MethodOptions)
	a.router.HandleFunc("/health", a.healthCheck).Methods(http.MethodGet)
	a.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Handler returns the root HTTP handler
func (a *API) Handler() http.Handler {
	return a.router
}

// Start starts the API server and blocks until it stops
func (a *API) Start(addr string) error {
	a.serverMu.Lock()
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := a.server
	a.serverMu.Unlock()

	a.logger.Infow("API server listening", "addr", addr)
	return server.ListenAndServe()
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stopCh) })

	a.serverMu.Lock()
	server := a.server
	a.serverMu.Unlock()
	if server != nil {
		return server.Shutdown(ctx)
	}
	return nil
}
