package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/your-org/auth-gateway/pkg/logger"
)

// Config holds all application configuration.
type Config struct {
	Env       EnvConfig       `mapstructure:"env" jsonschema:"description=Deployment environment settings."`
	Server    ServerConfig    `mapstructure:"server" jsonschema:"description=HTTP server configuration."`
	Session   SessionConfig   `mapstructure:"session" jsonschema:"description=Browser session cookie authentication."`
	APIKey    APIKeyConfig    `mapstructure:"api_key" jsonschema:"description=API key authentication."`
	Signature SignatureConfig `mapstructure:"signature" jsonschema:"description=HMAC signed-request authentication."`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" jsonschema:"description=Per-identity rate limit policies."`
	EdgeLimit EdgeLimitConfig `mapstructure:"edge_limit" jsonschema:"description=Coarse per-IP edge rate limiting."`
	CSRF      CSRFConfig      `mapstructure:"csrf" jsonschema:"description=CSRF token issuance and validation."`
	Audit     AuditConfig     `mapstructure:"audit" jsonschema:"description=Tamper-evident audit logging."`
	Store     StoreConfig     `mapstructure:"store" jsonschema:"description=Persistence collaborator access."`
	Logging   logger.Config   `mapstructure:"logging" jsonschema:"description=Application logging."`
}

// EnvConfig holds deployment environment information.
type EnvConfig struct {
	// Name is the environment name; "production" enables secure cookies
	Name string `mapstructure:"name" jsonschema:"description=Environment name.,enum=development,enum=staging,enum=production,default=development"`
}

// Production reports whether the gateway runs in production mode.
func (e EnvConfig) Production() bool {
	return e.Name == "production"
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr" jsonschema:"description=Listen address.,default=:8080"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" jsonschema:"description=Maximum duration for reading the entire request.,default=10s"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" jsonschema:"description=Maximum duration before timing out writes.,default=10s"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" jsonschema:"description=Maximum idle time between requests.,default=120s"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes" jsonschema:"description=Maximum size of request headers.,default=1048576"`
}

// SessionConfig holds session-cookie authentication configuration.
type SessionConfig struct {
	// CookieName is the session cookie name
	CookieName string `mapstructure:"cookie_name" jsonschema:"description=Session cookie name.,default=gw_session"`
	// SigningSecret signs session tokens (HS256); required in production
	SigningSecret string `mapstructure:"signing_secret" jsonschema:"description=HMAC secret for session tokens. Use an environment variable in production."`
	// TokenTTL is the lifetime of issued session tokens
	TokenTTL time.Duration `mapstructure:"token_ttl" jsonschema:"description=Session token lifetime.,default=24h"`
}

// APIKeyConfig holds API key authentication configuration.
type APIKeyConfig struct {
	// LivePrefix and TestPrefix are the two recognized key prefixes
	LivePrefix string `mapstructure:"live_prefix" jsonschema:"description=Prefix for live-environment keys.,default=ak_live"`
	TestPrefix string `mapstructure:"test_prefix" jsonschema:"description=Prefix for test-environment keys.,default=ak_test"`
	// Cache bounds lookup latency for repeat authentications
	Cache APIKeyCacheConfig `mapstructure:"cache" jsonschema:"description=Validation result cache."`
	// UsageFlushInterval controls how often batched usage counts are persisted
	UsageFlushInterval time.Duration `mapstructure:"usage_flush_interval" jsonschema:"description=Flush interval for batched usage accounting.,default=10s"`
}

// APIKeyCacheConfig holds the validation cache settings.
type APIKeyCacheConfig struct {
	Enabled bool          `mapstructure:"enabled" jsonschema:"description=Enable the validation cache.,default=true"`
	MaxSize int           `mapstructure:"max_size" jsonschema:"description=Maximum cached keys.,default=10000"`
	TTL     time.Duration `mapstructure:"ttl" jsonschema:"description=Cache entry lifetime. A revoked key can validate from cache for at most this long.,default=5m"`
}

// SignatureConfig holds signed-request authentication configuration.
type SignatureConfig struct {
	// Window is the accepted clock skew for request timestamps
	Window time.Duration `mapstructure:"window" jsonschema:"description=Accepted timestamp skew.,default=5m"`
	// SweepInterval is how often expired nonces are garbage-collected
	SweepInterval time.Duration `mapstructure:"sweep_interval" jsonschema:"description=Nonce store sweep interval.,default=1m"`
}

// RateLimitConfig holds per-identity policy rate limiting.
type RateLimitConfig struct {
	// Policies maps policy names to their allowance configuration
	Policies map[string]PolicyConfig `mapstructure:"policies" jsonschema:"description=Named rate limit policies."`
	// PoliciesPath optionally points at a YAML file watched for hot reload
	PoliciesPath string `mapstructure:"policies_path" jsonschema:"description=Optional policies file watched for hot reload."`
	// WatchEnabled enables the policies file watcher
	WatchEnabled bool `mapstructure:"watch_enabled" jsonschema:"description=Reload policies when the file changes.,default=false"`
	// SweepInterval is how often stale counters are garbage-collected
	SweepInterval time.Duration `mapstructure:"sweep_interval" jsonschema:"description=Stale counter sweep interval.,default=5m"`
}

// PolicyConfig is one named rate-limit policy.
type PolicyConfig struct {
	MaxPoints     int           `mapstructure:"max_points" jsonschema:"description=Allowed consumptions per window."`
	Window        time.Duration `mapstructure:"window" jsonschema:"description=Fixed window duration."`
	BlockDuration time.Duration `mapstructure:"block_duration" jsonschema:"description=Block duration after exhaustion."`
}

// EdgeLimitConfig holds the coarse per-IP HTTP middleware limiter.
type EdgeLimitConfig struct {
	Enabled bool   `mapstructure:"enabled" jsonschema:"description=Enable the edge limiter.,default=true"`
	// Rate uses the limiter formatted syntax, e.g. "100-M" for 100 requests/minute
	Rate              string            `mapstructure:"rate" jsonschema:"description=Rate in formatted syntax (e.g. 100-M).,default=300-M"`
	Store             string            `mapstructure:"store" jsonschema:"description=Counter store backend.,enum=memory,enum=redis,default=memory"`
	Redis             RedisConfig       `mapstructure:"redis" jsonschema:"description=Redis store settings."`
	TrustForwardedFor bool              `mapstructure:"trust_forwarded_for" jsonschema:"description=Trust X-Forwarded-For for the client key.,default=false"`
	ExcludePaths      []string          `mapstructure:"exclude_paths" jsonschema:"description=Path prefixes excluded from edge limiting."`
	Headers           EdgeHeadersConfig `mapstructure:"headers" jsonschema:"description=Rate limit response headers."`
}

// EdgeHeadersConfig controls rate-limit response headers.
type EdgeHeadersConfig struct {
	Enabled         bool   `mapstructure:"enabled" jsonschema:"description=Emit rate limit headers.,default=true"`
	LimitHeader     string `mapstructure:"limit_header" jsonschema:"default=X-RateLimit-Limit"`
	RemainingHeader string `mapstructure:"remaining_header" jsonschema:"default=X-RateLimit-Remaining"`
	ResetHeader     string `mapstructure:"reset_header" jsonschema:"default=X-RateLimit-Reset"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address   string `mapstructure:"address" jsonschema:"description=Redis address.,default=localhost:6379"`
	Password  string `mapstructure:"password" jsonschema:"description=Redis password."`
	DB        int    `mapstructure:"db" jsonschema:"description=Redis database number.,default=0"`
	KeyPrefix string `mapstructure:"key_prefix" jsonschema:"description=Key prefix for limiter counters.,default=authgw:edge:"`
}

// CSRFConfig holds CSRF token configuration.
type CSRFConfig struct {
	CookieName    string        `mapstructure:"cookie_name" jsonschema:"description=CSRF cookie name.,default=gw_csrf"`
	TokenTTL      time.Duration `mapstructure:"token_ttl" jsonschema:"description=Token lifetime.,default=1h"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" jsonschema:"description=Expired token sweep interval.,default=5m"`
}

// AuditConfig holds audit log configuration.
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled" jsonschema:"description=Enable audit logging.,default=true"`
	// RingSize bounds the in-memory recent-events buffer
	RingSize int               `mapstructure:"ring_size" jsonschema:"description=Recent events kept in memory.,default=1000"`
	Stdout   StdoutExportConfig `mapstructure:"stdout" jsonschema:"description=Stdout exporter."`
	Bolt     BoltExportConfig   `mapstructure:"bolt" jsonschema:"description=Durable append-only exporter."`
}

// StdoutExportConfig holds the stdout exporter settings.
type StdoutExportConfig struct {
	Enabled bool   `mapstructure:"enabled" jsonschema:"description=Export events to stdout.,default=true"`
	Format  string `mapstructure:"format" jsonschema:"description=Export format.,enum=json,enum=fields,default=json"`
}

// BoltExportConfig holds the durable exporter settings.
type BoltExportConfig struct {
	Enabled bool   `mapstructure:"enabled" jsonschema:"description=Export events to the local append-only database.,default=false"`
	Path    string `mapstructure:"path" jsonschema:"description=Database file path.,default=/var/lib/authgw/audit.db"`
}

// StoreConfig holds persistence collaborator access settings.
type StoreConfig struct {
	// Timeout bounds every collaborator call; on expiry the request fails
	// closed with a 500 rather than hanging
	Timeout time.Duration        `mapstructure:"timeout" jsonschema:"description=Per-call timeout for store operations.,default=3s"`
	Breaker CircuitBreakerConfig `mapstructure:"breaker" jsonschema:"description=Circuit breaker for store calls."`
	// SeedPath optionally points at a YAML fixture of users and API keys,
	// loaded into the in-memory store at startup. Development only.
	SeedPath string `mapstructure:"seed_path" jsonschema:"description=Optional YAML fixture loaded into the in-memory store at startup."`
}

// CircuitBreakerConfig holds circuit breaker settings for store calls.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled" jsonschema:"description=Enable the circuit breaker.,default=true"`
	MaxRequests      uint32        `mapstructure:"max_requests" jsonschema:"description=Probe requests allowed when half-open.,default=3"`
	Interval         time.Duration `mapstructure:"interval" jsonschema:"description=Closed-state count reset interval.,default=60s"`
	Timeout          time.Duration `mapstructure:"timeout" jsonschema:"description=Open-state duration before half-open.,default=30s"`
	FailureThreshold int           `mapstructure:"failure_threshold" jsonschema:"description=Consecutive failures before opening.,default=5"`
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/authgw")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	v.SetEnvPrefix("AUTHGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants that defaults cannot guarantee.
func (c *Config) Validate() error {
	if c.Env.Production() && c.Session.SigningSecret == "" {
		return fmt.Errorf("session.signing_secret is required in production")
	}
	for name, p := range c.RateLimit.Policies {
		if p.MaxPoints <= 0 {
			return fmt.Errorf("rate_limit.policies.%s.max_points must be positive", name)
		}
		if p.Window <= 0 || p.BlockDuration <= 0 {
			return fmt.Errorf("rate_limit.policies.%s window and block_duration must be positive", name)
		}
	}
	if c.Signature.Window <= 0 {
		return fmt.Errorf("signature.window must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Environment defaults
	v.SetDefault("env.name", "development")

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_header_bytes", 1<<20) // 1MB

	// Session defaults
	v.SetDefault("session.cookie_name", "gw_session")
	v.SetDefault("session.token_ttl", "24h")

	// API key defaults
	v.SetDefault("api_key.live_prefix", "ak_live")
	v.SetDefault("api_key.test_prefix", "ak_test")
	v.SetDefault("api_key.cache.enabled", true)
	v.SetDefault("api_key.cache.max_size", 10000)
	v.SetDefault("api_key.cache.ttl", "5m")
	v.SetDefault("api_key.usage_flush_interval", "10s")

	// Signature defaults
	v.SetDefault("signature.window", "5m")
	v.SetDefault("signature.sweep_interval", "1m")

	// Rate limit policy defaults
	v.SetDefault("rate_limit.watch_enabled", false)
	v.SetDefault("rate_limit.sweep_interval", "5m")
	v.SetDefault("rate_limit.policies.login.max_points", 5)
	v.SetDefault("rate_limit.policies.login.window", "15m")
	v.SetDefault("rate_limit.policies.login.block_duration", "15m")
	v.SetDefault("rate_limit.policies.passwordReset.max_points", 3)
	v.SetDefault("rate_limit.policies.passwordReset.window", "1h")
	v.SetDefault("rate_limit.policies.passwordReset.block_duration", "1h")
	v.SetDefault("rate_limit.policies.apiKeyUsage.max_points", 1000)
	v.SetDefault("rate_limit.policies.apiKeyUsage.window", "1m")
	v.SetDefault("rate_limit.policies.apiKeyUsage.block_duration", "1m")
	v.SetDefault("rate_limit.policies.apiKeyCreation.max_points", 10)
	v.SetDefault("rate_limit.policies.apiKeyCreation.window", "1h")
	v.SetDefault("rate_limit.policies.apiKeyCreation.block_duration", "1h")
	v.SetDefault("rate_limit.policies.emailVerification.max_points", 5)
	v.SetDefault("rate_limit.policies.emailVerification.window", "1h")
	v.SetDefault("rate_limit.policies.emailVerification.block_duration", "30m")

	// Edge limiter defaults
	v.SetDefault("edge_limit.enabled", true)
	v.SetDefault("edge_limit.rate", "300-M")
	v.SetDefault("edge_limit.store", "memory")
	v.SetDefault("edge_limit.redis.address", "localhost:6379")
	v.SetDefault("edge_limit.redis.key_prefix", "authgw:edge:")
	v.SetDefault("edge_limit.trust_forwarded_for", false)
	v.SetDefault("edge_limit.exclude_paths", []string{"/health", "/ready", "/live", "/metrics"})
	v.SetDefault("edge_limit.headers.enabled", true)
	v.SetDefault("edge_limit.headers.limit_header", "X-RateLimit-Limit")
	v.SetDefault("edge_limit.headers.remaining_header", "X-RateLimit-Remaining")
	v.SetDefault("edge_limit.headers.reset_header", "X-RateLimit-Reset")

	// CSRF defaults
	v.SetDefault("csrf.cookie_name", "gw_csrf")
	v.SetDefault("csrf.token_ttl", "1h")
	v.SetDefault("csrf.sweep_interval", "5m")

	// Audit defaults
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.ring_size", 1000)
	v.SetDefault("audit.stdout.enabled", true)
	v.SetDefault("audit.stdout.format", "json")
	v.SetDefault("audit.bolt.enabled", false)
	v.SetDefault("audit.bolt.path", "/var/lib/authgw/audit.db")

	// Store defaults
	v.SetDefault("store.timeout", "3s")
	v.SetDefault("store.breaker.enabled", true)
	v.SetDefault("store.breaker.max_requests", 3)
	v.SetDefault("store.breaker.interval", "60s")
	v.SetDefault("store.breaker.timeout", "30s")
	v.SetDefault("store.breaker.failure_threshold", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_caller", true)
}
