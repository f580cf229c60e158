package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"relay-server/internal/api/middleware"
	"relay-server/internal/logger"
	"relay-server/internal/queue"
	"relay-server/internal/relay"
	"relay-server/internal/service/session"

	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 10 * time.Second

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

type Options struct {
	ListenAddr     string
	NodeID         string
	AllowedOrigins []string
	AdminEnabled   bool
	Logger         *logger.Logger
	// Registry receives the HTTP metrics and is served on /metrics.
	Registry *prometheus.Registry
}

// Dependencies are the services exposed over HTTP. Sessions may be nil.
type Dependencies struct {
	Relay     *relay.Relay
	WebSocket http.Handler
	Sessions  *session.Service
}

type APIServer struct {
	listenAddr          string
	nodeID              string
	adminEnabled        bool
	startedAt           time.Time
	requestQueueManager *queue.RequestQueueManager
	deps                Dependencies
	routeRegistrars     []RouteRegistrar
	cors                middleware.CORSConfig
	registry            *prometheus.Registry
	metrics             *metrics
	logger              *logger.Logger
}

func NewAPIServer(opts Options, rqm *queue.RequestQueueManager, deps Dependencies, registrars ...RouteRegistrar) *APIServer {
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	return &APIServer{
		listenAddr:          opts.ListenAddr,
		nodeID:              opts.NodeID,
		adminEnabled:        opts.AdminEnabled,
		startedAt:           time.Now(),
		requestQueueManager: rqm,
		deps:                deps,
		routeRegistrars:     registrars,
		cors: middleware.CORSConfig{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Requested-With", middleware.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		},
		registry: opts.Registry,
		metrics:  newMetrics(opts.Registry, opts.NodeID, rqm),
		logger:   opts.Logger.With("component", "api"),
	}
}

// Routes builds the instrumented handler serving every registered route and
// /metrics.
func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler(s.registry))

	return s.metrics.instrument(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *APIServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.listenAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *APIServer) Relay() *relay.Relay {
	return s.deps.Relay
}

func (s *APIServer) WebSocket() http.Handler {
	return s.deps.WebSocket
}

func (s *APIServer) Sessions() *session.Service {
	return s.deps.Sessions
}

func (s *APIServer) NodeID() string {
	return s.nodeID
}

func (s *APIServer) AdminEnabled() bool {
	return s.adminEnabled
}

func (s *APIServer) StartedAt() time.Time {
	return s.startedAt
}
