package domain

import (
	"time"
)

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Credit-engine settings
	Engine     EngineConfig     `json:"engine"`
	Employment EmploymentConfig `json:"employment"`
	AI         AIConfig         `json:"ai"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds

	// RateLimit caps requests per tenant per window; 0 disables.
	RateLimit       int `json:"rateLimit"`
	RateLimitWindow int `json:"rateLimitWindow"` // seconds
}

// EngineConfig holds evaluation pipeline settings.
type EngineConfig struct {
	// MaxConcurrentVerifiers bounds the facet fan-out per evaluation.
	MaxConcurrentVerifiers int `json:"maxConcurrentVerifiers"`

	// VerifierTimeout bounds a single facet check.
	VerifierTimeout time.Duration `json:"verifierTimeout"`

	// Knockouts are the hard-fail rules compiled at startup. Empty
	// means DefaultKnockoutRules.
	Knockouts []KnockoutRule `json:"knockouts,omitempty"`

	// Mode selects sync (in-request) or async (worker) evaluation.
	Mode EvaluationMode `json:"mode"`
}

// EmploymentConfig holds the reference-directory settings for
// employment verification.
type EmploymentConfig struct {
	// CSVPath points at the employer reference directory. Empty
	// disables directory lookups; verification falls back to
	// declared-data heuristics.
	CSVPath string `json:"csvPath"`
}

// AIConfig holds settings for the external model enhancer.
type AIConfig struct {
	// EnhancerURL is the external scoring endpoint. Empty disables
	// enhancement; the built-in estimator stands alone.
	EnhancerURL string `json:"enhancerUrl"`

	// Timeout bounds a single enhancer call.
	Timeout time.Duration `json:"timeout"`

	// MaxAttempts bounds enhancer retries before falling back.
	MaxAttempts int `json:"maxAttempts"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// EvaluationMode selects how submissions are processed.
type EvaluationMode string

const (
	// ModeSync evaluates in-request and returns the decision inline.
	ModeSync EvaluationMode = "sync"

	// ModeAsync enqueues the submission for worker processing.
	ModeAsync EvaluationMode = "async"
)

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"

	// TierEnterprise includes multi-node, SSO, etc.
	TierEnterprise Tier = "enterprise"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Engine: EngineConfig{
			MaxConcurrentVerifiers: 6,
			VerifierTimeout:        2 * time.Second,
			Mode:                   ModeSync,
		},
		AI: AIConfig{
			Timeout:     500 * time.Millisecond,
			MaxAttempts: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Server.RateLimit = 300
	cfg.Server.RateLimitWindow = 60
	cfg.Engine.Mode = ModeAsync
	cfg.Tracing.Enabled = true
	return cfg
}
