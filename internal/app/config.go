package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (BOOKSTORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (BOOKSTORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis URL for sessions and rate limits (BOOKSTORE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Session     SessionConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// SessionConfig controls the browser session cookie and its Redis entry.
type SessionConfig struct {
	CookieName string        `default:"sessionid" usage:"Session cookie name" flag:"session-cookie"`
	TTL        time.Duration `default:"336h" usage:"Session lifetime, refreshed on every change" flag:"session-ttl"`
	Secure     bool          `default:"false" usage:"Send the session cookie over HTTPS only" flag:"session-secure"`
}

// AuthConfig describes the headers set by the authentication gateway.
type AuthConfig struct {
	UserHeader      string `default:"X-User-ID" usage:"Header carrying the signed-in user id" flag:"auth-user-header"`
	SignatureHeader string `default:"X-User-Signature" usage:"Header carrying the HMAC of the user id" flag:"auth-signature-header"`
	Secret          string `usage:"HMAC secret shared with the gateway; empty trusts the user header" flag:"auth-secret"`
}

// RateLimitConfig controls the per-client limit on checkout requests.
type RateLimitConfig struct {
	Checkout int           `default:"20" usage:"Max checkout requests per window and client" flag:"ratelimit-checkout"`
	Window   time.Duration `default:"1m" usage:"Rate limit window duration" flag:"ratelimit-window"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags, YAML
// config files, and platform-specific variables.
func LoadConfig() (*Config, error) {
	return load(aconfig.Config{
		EnvPrefix: "BOOKSTORE",
		Files:     []string{"config.yaml", "/etc/bookstore/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func load(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set BOOKSTORE_DATABASE_URL or DATABASE_URL")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("redis URL is required: set BOOKSTORE_REDIS_URL or REDIS_URL")
	}
	if cfg.RateLimit.Window <= 0 {
		return nil, errors.Errorf("rate limit window must be positive, got %s", cfg.RateLimit.Window)
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's BOOKSTORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
