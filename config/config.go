// Package config holds the agent's configuration types and the environment
// loader for the daemon/CLI entrypoints.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default tunables.
const (
	DefaultMaxIterations  = 30
	DefaultTimeoutMs      = 120_000
	DefaultWaitCapMs      = 5_000
	DefaultNavTimeoutMs   = 15_000
	DefaultActionDelayMs  = 500
	DefaultScreenshotQual = 75
)

// ProxyConfig carries an optional proxy server and credentials.
type ProxyConfig struct {
	Server   string
	Username string
	Password string
}

// Cookie mirrors the subset of http.Cookie fields the agent accepts as
// initial session state.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// AgentConfig is immutable after NewAgentConfig validates it.
type AgentConfig struct {
	// LLM transport.
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	// Sampling parameters.
	Temperature      float64
	MaxOutputTokens  int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64

	// Loop guards (defaults; RunOptions may override per-run).
	MaxIterations int
	TimeoutMs     int64
	WaitCapMs     int64
	NavTimeoutMs  int64
	ActionDelayMs int64

	// Budget. Zero means unbounded.
	MaxTotalTokens int

	// Domain policy for the URL safety validator.
	AllowDomains []string
	BlockDomains []string

	// Session bootstrap.
	Proxy          *ProxyConfig
	InitialCookies []Cookie
	ExtraHeaders   map[string]string

	// Vision.
	Vision                bool
	ScreenshotJPEGQuality int

	frozen bool
}

// NewAgentConfig validates and freezes an AgentConfig, applying defaults for
// zero-valued fields.
func NewAgentConfig(c AgentConfig) (*AgentConfig, error) {
	if strings.TrimSpace(c.LLMAPIKey) == "" {
		return nil, fmt.Errorf("config: LLMAPIKey is required")
	}
	if strings.TrimSpace(c.LLMBaseURL) == "" {
		return nil, fmt.Errorf("config: LLMBaseURL is required")
	}
	if strings.TrimSpace(c.LLMModel) == "" {
		return nil, fmt.Errorf("config: LLMModel is required")
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = DefaultTimeoutMs
	}
	if c.WaitCapMs <= 0 {
		c.WaitCapMs = DefaultWaitCapMs
	}
	if c.NavTimeoutMs <= 0 {
		c.NavTimeoutMs = DefaultNavTimeoutMs
	}
	if c.ActionDelayMs <= 0 {
		c.ActionDelayMs = DefaultActionDelayMs
	}
	if c.ScreenshotJPEGQuality <= 0 {
		c.ScreenshotJPEGQuality = DefaultScreenshotQual
	}
	if c.ScreenshotJPEGQuality > 100 {
		return nil, fmt.Errorf("config: ScreenshotJPEGQuality must be 1-100, got %d", c.ScreenshotJPEGQuality)
	}
	if c.MaxTotalTokens < 0 {
		return nil, fmt.Errorf("config: MaxTotalTokens must be >= 0")
	}
	c.frozen = true
	return &c, nil
}

// Frozen reports whether the config was constructed (and thus validated) via
// NewAgentConfig.
func (c *AgentConfig) Frozen() bool { return c.frozen }

// OutputSchema is an opaque description+validator pair a caller supplies for
// the agent's final `done` action. Validate returns a human-readable error
// string, or "" when the data is acceptable.
type OutputSchema struct {
	Description string
	Validate    func(data string) string
}

// RunOptions carries per-run inputs and overrides.
type RunOptions struct {
	URL    string
	Prompt string

	MaxIterations *int
	TimeoutMs     *int64
	ActionDelayMs *int64
	Vision        *bool

	Cancel <-chan struct{}

	OutputSchema *OutputSchema
}

// EffectiveMaxIterations resolves the per-run override against the agent default.
func (r RunOptions) EffectiveMaxIterations(agentDefault int) int {
	if r.MaxIterations != nil && *r.MaxIterations > 0 {
		return *r.MaxIterations
	}
	return agentDefault
}

// EffectiveTimeoutMs resolves the per-run override against the agent default.
func (r RunOptions) EffectiveTimeoutMs(agentDefault int64) int64 {
	if r.TimeoutMs != nil && *r.TimeoutMs > 0 {
		return *r.TimeoutMs
	}
	return agentDefault
}

// EffectiveActionDelayMs resolves the per-run override against the agent default.
func (r RunOptions) EffectiveActionDelayMs(agentDefault int64) int64 {
	if r.ActionDelayMs != nil && *r.ActionDelayMs >= 0 {
		return *r.ActionDelayMs
	}
	return agentDefault
}

// EffectiveVision resolves the per-run override against the agent default.
func (r RunOptions) EffectiveVision(agentDefault bool) bool {
	if r.Vision != nil {
		return *r.Vision
	}
	return agentDefault
}

// Config holds the HTTP daemon's configuration.
type Config struct {
	Server    ServerConfig
	Pool      PoolConfig
	Cascade   CascadeConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Agent     AgentDefaults
}

// AgentDefaults seeds AgentConfig fields the daemon reads from the
// environment once at startup; per-request fields (prompt, URL, API key
// passthrough) still come from each HTTP request.
type AgentDefaults struct {
	LLMBaseURL    string
	LLMModel      string
	Temperature   float64
	MaxIterations int
	TimeoutMs     int64
	Vision        bool
}

// CacheConfig controls the scrape-result cache.
type CacheConfig struct {
	MaxEntries int // default: 1000
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// PoolConfig controls the browser pool (C10).
type PoolConfig struct {
	MaxSize       int   // default: 3
	AcquireWaitMs int64 // default: 30000
	Headless      bool  // default: true
	NoSandbox     bool
	BrowserBin    string
}

// CascadeConfig controls the scraper cascade (C11).
type CascadeConfig struct {
	DefaultTimeout       time.Duration
	MaxTimeout           time.Duration
	NavigationTimeout    time.Duration
	BlockedResourceTypes []string
	TrackerBlocklist     []string
	DomainMemoryTTL      time.Duration
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool
	APIKeys []string
}

// RateLimitConfig controls per-identity rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads the daemon configuration from environment variables with sane
// defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("AUSPEX_HOST", "0.0.0.0"),
			Port: envIntOr("AUSPEX_PORT", 8080),
			Mode: envOr("AUSPEX_MODE", "release"),
		},
		Pool: PoolConfig{
			MaxSize:       envIntOr("AUSPEX_POOL_SIZE", 3),
			AcquireWaitMs: int64(envIntOr("AUSPEX_POOL_WAIT_MS", 30_000)),
			Headless:      envBoolOr("AUSPEX_HEADLESS", true),
			NoSandbox:     envBoolOr("AUSPEX_NO_SANDBOX", false),
			BrowserBin:    os.Getenv("AUSPEX_BROWSER_BIN"),
		},
		Cascade: CascadeConfig{
			DefaultTimeout:    envDurationOr("AUSPEX_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:        envDurationOr("AUSPEX_MAX_TIMEOUT", 120*time.Second),
			NavigationTimeout: envDurationOr("AUSPEX_NAV_TIMEOUT", 15*time.Second),
			BlockedResourceTypes: envSliceOr("AUSPEX_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			TrackerBlocklist: envSliceOr("AUSPEX_TRACKER_BLOCKLIST", []string{
				"google-analytics.com", "googletagmanager.com", "doubleclick.net",
				"facebook.net", "hotjar.com", "segment.io", "mixpanel.com",
			}),
			DomainMemoryTTL: envDurationOr("AUSPEX_DOMAIN_MEMORY_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("AUSPEX_AUTH_ENABLED", true),
			APIKeys: envSliceOr("AUSPEX_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("AUSPEX_RATE_RPS", 5.0),
			Burst:             envIntOr("AUSPEX_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("AUSPEX_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("AUSPEX_LOG_LEVEL", "info"),
			Format: envOr("AUSPEX_LOG_FORMAT", "json"),
		},
		Agent: AgentDefaults{
			LLMBaseURL:    envOr("LLM_BASE_URL", "https://api.openai.com/v1"),
			LLMModel:      envOr("LLM_MODEL", "gpt-4o-mini"),
			Temperature:   envFloatOr("AUSPEX_TEMPERATURE", 0.2),
			MaxIterations: envIntOr("AUSPEX_MAX_ITERATIONS", DefaultMaxIterations),
			TimeoutMs:     int64(envIntOr("AUSPEX_TIMEOUT_MS", DefaultTimeoutMs)),
			Vision:        envBoolOr("AUSPEX_VISION", false),
		},
	}
}

// LoadAgentConfig builds a standalone AgentConfig from the environment, for
// CLI-style single-shot runs. cmd/auspex-mcp does not call it; it builds its
// AgentConfig with NewAgentConfig from the result of Load.
func LoadAgentConfig() (*AgentConfig, error) {
	return NewAgentConfig(AgentConfig{
		LLMAPIKey:             os.Getenv("LLM_API_KEY"),
		LLMBaseURL:            envOr("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:              envOr("LLM_MODEL", "gpt-4o-mini"),
		Temperature:           envFloatOr("AUSPEX_TEMPERATURE", 0.2),
		MaxOutputTokens:       envIntOr("AUSPEX_MAX_OUTPUT_TOKENS", 1024),
		MaxIterations:         envIntOr("AUSPEX_MAX_ITERATIONS", DefaultMaxIterations),
		TimeoutMs:             int64(envIntOr("AUSPEX_TIMEOUT_MS", DefaultTimeoutMs)),
		WaitCapMs:             int64(envIntOr("AUSPEX_WAIT_CAP_MS", DefaultWaitCapMs)),
		NavTimeoutMs:          int64(envIntOr("AUSPEX_NAV_TIMEOUT_MS", DefaultNavTimeoutMs)),
		ActionDelayMs:         int64(envIntOr("AUSPEX_ACTION_DELAY_MS", DefaultActionDelayMs)),
		MaxTotalTokens:        envIntOr("AUSPEX_MAX_TOTAL_TOKENS", 0),
		Vision:                envBoolOr("AUSPEX_VISION", false),
		ScreenshotJPEGQuality: envIntOr("AUSPEX_SCREENSHOT_QUALITY", DefaultScreenshotQual),
		AllowDomains:          envSliceOr("AUSPEX_ALLOW_DOMAINS", nil),
		BlockDomains:          envSliceOr("AUSPEX_BLOCK_DOMAINS", nil),
	})
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
