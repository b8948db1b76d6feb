// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/pkg/ceremony"
	ceremonyhttp "github.com/jeremyhahn/go-passkey/pkg/ceremony/http"
	"github.com/jeremyhahn/go-passkey/pkg/events"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
	"github.com/jeremyhahn/go-passkey/pkg/storage"
	"github.com/jeremyhahn/go-passkey/pkg/store"
	"github.com/jeremyhahn/go-passkey/pkg/tokens"
)

// Server represents the passkey REST API server.
type Server struct {
	config  *config.Config
	server  *http.Server
	service *ceremony.Service
	backend storage.Backend
	bus     eventBus
	limiter *ratelimit.Limiter
	checker *health.Checker
	logger  *slog.Logger

	subCancel context.CancelFunc
}

// eventBus is the subset of the watermill pub/sub used by the server.
type eventBus interface {
	message.Publisher
	message.Subscriber
}

// NewServer creates a new REST API server wired per the configuration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := newBackend(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	tokenGen, err := tokens.NewJWTGenerator(&tokens.JWTGeneratorConfig{
		Secret:    []byte(cfg.Auth.JWT.Secret),
		Issuer:    cfg.Auth.JWT.Issuer,
		Audience:  cfg.Auth.JWT.Audience,
		ExpiresIn: cfg.Auth.JWT.ExpiresIn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token generator: %w", err)
	}

	var bus eventBus
	var publisher ceremony.EventPublisher
	if cfg.Events.Enabled {
		gc := events.NewGoChannelBus(logger)
		bus = gc
		publisher = events.NewPublisher(gc)
	}

	service, err := ceremony.NewService(ceremony.ServiceParams{
		Config:          &cfg.Ceremony,
		CredentialStore: store.NewCredentialStore(backend),
		ChallengeStore:  store.NewChallengeStore(backend),
		TokenGenerator:  tokenGen,
		EventPublisher:  publisher,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ceremony service: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	checker := health.NewChecker()
	checker.RegisterCheck("storage", health.BackendCheck("storage", backend))

	s := &Server{
		config:  cfg,
		service: service,
		backend: backend,
		bus:     bus,
		limiter: ratelimit.New(&cfg.RateLimit),
		checker: checker,
		logger:  logger,
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.setupRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(CorrelationMiddleware)
	r.Use(s.LoggingMiddleware())
	r.Use(CORSMiddleware)
	if s.config.Metrics.Enabled {
		r.Use(metrics.HTTPMiddleware)
	}
	if s.limiter.IsEnabled() {
		r.Use(ratelimit.Middleware(s.limiter))
	}

	// Kubernetes-style health probes (no rate limits apply upstream)
	r.Get("/health/live", s.LivenessHandler)
	r.Get("/health/ready", s.ReadinessHandler)
	r.Get("/health/startup", s.StartupHandler)

	if s.config.Metrics.Enabled {
		path := s.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	r.Route("/api/v1/passkey", func(r chi.Router) {
		ceremonyhttp.MountChi(r, ceremonyhttp.NewHandler(s.service).WithLogger(s.logger))
	})

	return r
}

// Start starts the REST API server. It blocks until the listener
// fails or the server is shut down.
func (s *Server) Start() error {
	if s.bus != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.subCancel = cancel
		if err := s.startMetricsSubscriber(ctx); err != nil {
			cancel()
			return fmt.Errorf("failed to start event subscriber: %w", err)
		}
	}

	s.checker.MarkStarted()

	s.logger.Info("Starting HTTP server",
		"addr", s.server.Addr,
		"rp_id", s.config.Ceremony.RPID,
		"storage", s.config.Storage.Backend)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the REST API server and its dependencies.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", "error", err)
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if s.subCancel != nil {
		s.subCancel()
	}
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.logger.Warn("Failed to close event bus", "error", err)
		}
	}

	s.limiter.Stop()

	if err := s.backend.Close(); err != nil {
		s.logger.Warn("Failed to close storage backend", "error", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Service returns the underlying ceremony service.
func (s *Server) Service() *ceremony.Service {
	return s.service
}

// HealthChecker returns the server's health checker.
func (s *Server) HealthChecker() *health.Checker {
	return s.checker
}
