package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/pipeline"
	"github.com/your-org/auth-gateway/pkg/logger"
	edgelimit "github.com/your-org/auth-gateway/pkg/resilience/ratelimit"
)

// PermissionAuthorize guards the payment-authorization endpoint.
const PermissionAuthorize = "payments:authorize"

// PermissionAdmin guards the operator surface.
const PermissionAdmin = "admin"

// Server is the HTTP server for the gateway.
type Server struct {
	httpServer  *http.Server
	cfg         config.ServerConfig
	edgeLimiter *edgelimit.Limiter
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithEdgeLimiter installs the per-client edge rate limiter.
func WithEdgeLimiter(l *edgelimit.Limiter) ServerOption {
	return func(s *Server) {
		s.edgeLimiter = l
	}
}

// NewServer creates the HTTP server and wires all routes.
func NewServer(
	cfg config.ServerConfig,
	pipe *pipeline.Pipeline,
	handler *Handler,
	admin *AdminHandler,
	health *HealthHandler,
	opts ...ServerOption,
) *Server {
	server := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(server)
	}

	router := chi.NewRouter()

	// Middleware stack (order matters)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	// Edge limiter early in the chain to shed abusive clients fast
	if server.edgeLimiter != nil {
		router.Use(server.edgeLimiter.Middleware())
		logger.Info("edge rate limiter middleware enabled")
	}

	router.Use(requestLogger)
	router.Use(middleware.Timeout(cfg.WriteTimeout))

	server.registerRoutes(router, pipe, handler, admin, health)

	server.httpServer = &http.Server{
		Addr:           cfg.Addr,
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	return server
}

// registerRoutes wires the public, protected, and admin surfaces.
func (s *Server) registerRoutes(r chi.Router, pipe *pipeline.Pipeline, h *Handler, admin *AdminHandler, health *HealthHandler) {
	// Public surface: no credential required
	r.Post("/v1/auth/login", h.Login)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Get("/live", health.Live)
	r.Handle("/metrics", promhttp.Handler())

	// Protected surface: full authentication pipeline
	r.Group(func(r chi.Router) {
		r.Use(pipe.Middleware)

		r.Get("/v1/csrf", h.CSRFToken)
		r.Post("/v1/auth/logout", h.Logout)

		r.With(pipe.RequirePermission(PermissionAuthorize)).
			Post("/v1/payments/authorize", h.AuthorizePayment)
	})

	// Admin surface: pipeline plus the admin permission
	r.Group(func(r chi.Router) {
		r.Use(pipe.Middleware)
		r.Use(pipe.RequirePermission(PermissionAdmin))

		r.Get("/admin/audit/recent", admin.RecentAuditEvents)
		r.Get("/admin/audit/verify", admin.VerifyAuditChain)
		r.Get("/admin/config", admin.ConfigDump)
		r.Post("/admin/keys/invalidate", admin.InvalidateKeyCache)
		r.Get("/admin/keys/cache", admin.KeyCacheStats)
		r.Get("/admin/ratelimit/policies", admin.RateLimitPolicies)
	})
}

// Handler returns the composed router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logger.Info("starting HTTP server",
		logger.String("addr", s.cfg.Addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// requestLogger is a middleware that logs HTTP requests.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("remote_addr", r.RemoteAddr),
			logger.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
