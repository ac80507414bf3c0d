// Package app provides application lifecycle management and dependency wiring.
package app

import (
	"context"
	"fmt"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/pipeline"
	"github.com/your-org/auth-gateway/internal/service/apikey"
	"github.com/your-org/auth-gateway/internal/service/audit"
	"github.com/your-org/auth-gateway/internal/service/csrf"
	"github.com/your-org/auth-gateway/internal/service/ratelimit"
	"github.com/your-org/auth-gateway/internal/service/resolver"
	"github.com/your-org/auth-gateway/internal/service/session"
	"github.com/your-org/auth-gateway/internal/service/signature"
	"github.com/your-org/auth-gateway/internal/store"
	httpTransport "github.com/your-org/auth-gateway/internal/transport/http"
	"github.com/your-org/auth-gateway/pkg/logger"
	edgelimit "github.com/your-org/auth-gateway/pkg/resilience/ratelimit"
)

// BuildInfo holds application build information.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// App represents the gateway with all its services and dependencies.
type App struct {
	cfg *config.Config

	httpServer *httpTransport.Server

	// Persistence
	resilient *store.Resilient

	// Pipeline services
	sessions *session.Authenticator
	apiKeys  *apikey.Authenticator
	usage    *apikey.UsageRecorder
	nonces   *signature.NonceStore
	limiter  *ratelimit.Limiter
	csrf     *csrf.Service
	audit    *audit.Service

	policyWatcher *config.PolicyWatcher
	edgeLimiter   *edgelimit.Limiter

	// cancel stops the background sweepers
	cancel context.CancelFunc

	buildInfo BuildInfo
}

// Option is a functional option for configuring the App.
type Option func(*App)

// WithBuildInfo sets the build information.
func WithBuildInfo(info BuildInfo) Option {
	return func(a *App) {
		a.buildInfo = info
	}
}

// New creates a new App instance with the given configuration and options.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	app := &App{
		cfg: cfg,
		buildInfo: BuildInfo{
			Version:   "dev",
			BuildTime: "unknown",
			GitCommit: "unknown",
		},
	}

	for _, opt := range opts {
		opt(app)
	}

	return app, nil
}

// Initialize builds all application services.
func (a *App) Initialize(ctx context.Context) error {
	var err error

	// Persistence collaborator. The in-memory store stands in for the real
	// one; the resilient wrapper owns timeouts and the circuit breaker
	// either way.
	mem := store.NewMemoryStore()
	if a.cfg.Store.SeedPath != "" {
		users, keys, err := store.LoadSeed(a.cfg.Store.SeedPath, mem)
		if err != nil {
			return fmt.Errorf("failed to load seed data: %w", err)
		}
		logger.Info("store seeded",
			logger.String("path", a.cfg.Store.SeedPath),
			logger.Int("users", users),
			logger.Int("api_keys", keys),
		)
	}
	a.resilient = store.NewResilient(mem, a.cfg.Store)

	// Audit first so every later stage can record to it.
	a.audit, err = audit.NewService(a.cfg.Audit)
	if err != nil {
		return fmt.Errorf("failed to create audit service: %w", err)
	}
	if err := a.audit.Start(ctx); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	a.sessions = session.NewAuthenticator(a.cfg.Session, a.resilient, a.resilient)

	a.usage = apikey.NewUsageRecorder(a.resilient, a.cfg.APIKey.UsageFlushInterval)
	a.apiKeys = apikey.NewAuthenticator(a.cfg.APIKey, a.resilient, a.usage)

	a.nonces = signature.NewNonceStore()
	verifier := signature.NewVerifier(a.cfg.Signature, a.resilient, a.nonces)

	policies := a.cfg.RateLimit.Policies
	if a.cfg.RateLimit.PoliciesPath != "" {
		policies, err = config.LoadPolicies(a.cfg.RateLimit.PoliciesPath)
		if err != nil {
			return fmt.Errorf("failed to load rate limit policies: %w", err)
		}
	}
	a.limiter = ratelimit.NewLimiter(policies)
	logger.Info("rate limiter initialized", logger.Int("policies", len(policies)))

	if a.cfg.RateLimit.WatchEnabled && a.cfg.RateLimit.PoliciesPath != "" {
		a.policyWatcher, err = config.NewPolicyWatcher(a.cfg.RateLimit.PoliciesPath, a.limiter.UpdatePolicies)
		if err != nil {
			return fmt.Errorf("failed to create policy watcher: %w", err)
		}
	}

	a.csrf = csrf.NewService(a.cfg.CSRF)

	pipe := pipeline.New(
		resolver.New(a.cfg.Session.CookieName),
		a.sessions,
		a.apiKeys,
		verifier,
		a.limiter,
		a.csrf,
		a.audit,
	)

	serverOpts := []httpTransport.ServerOption{}
	if a.cfg.EdgeLimit.Enabled {
		a.edgeLimiter, err = edgelimit.NewLimiter(a.cfg.EdgeLimit)
		if err != nil {
			return fmt.Errorf("failed to create edge limiter: %w", err)
		}
		serverOpts = append(serverOpts, httpTransport.WithEdgeLimiter(a.edgeLimiter))
		logger.Info("edge limiter initialized",
			logger.String("rate", a.cfg.EdgeLimit.Rate),
			logger.String("store", a.cfg.EdgeLimit.Store),
		)
	}

	a.httpServer = httpTransport.NewServer(
		a.cfg.Server,
		pipe,
		httpTransport.NewHandler(a.cfg, a.resilient, a.sessions, a.limiter, a.csrf, a.audit, a.buildInfo.Version),
		httpTransport.NewAdminHandler(a.cfg, a.apiKeys, a.limiter, a.audit),
		httpTransport.NewHealthHandler(a.buildInfo.Version, a.resilient),
		serverOpts...,
	)

	logger.Info("application initialized",
		logger.String("version", a.buildInfo.Version),
		logger.String("commit", a.buildInfo.GitCommit),
	)

	return nil
}

// Start launches the HTTP server and the background workers.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.usage.Start()
	a.nonces.StartSweeper(ctx, a.cfg.Signature.SweepInterval)
	a.csrf.StartSweeper(ctx, a.cfg.CSRF.SweepInterval)
	a.limiter.StartSweeper(ctx, a.cfg.RateLimit.SweepInterval)
	if a.policyWatcher != nil {
		a.policyWatcher.Start(ctx)
	}

	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("HTTP server error", logger.Err(err))
		}
	}()

	logger.Info("application started", logger.String("addr", a.cfg.Server.Addr))
	return nil
}

// Shutdown gracefully shuts down all application services.
func (a *App) Shutdown(ctx context.Context) error {
	logger.Info("shutting down application")

	// Stop accepting requests first, then drain the workers behind them.
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown HTTP server", logger.Err(err))
		}
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.policyWatcher != nil {
		a.policyWatcher.Close()
	}

	// Final usage flush happens inside Stop.
	if a.usage != nil {
		a.usage.Stop()
	}

	if a.audit != nil {
		if err := a.audit.Stop(); err != nil {
			logger.Error("failed to stop audit service", logger.Err(err))
		}
	}

	logger.Info("application shutdown complete")
	return nil
}
