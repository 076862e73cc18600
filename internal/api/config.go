package api

import (
	"github.com/FocuswithJustin/strutils/internal/config"
)

// Config holds the HTTP adapter settings.
type Config struct {
	Addr           string
	Auth           AuthConfig
	RateLimit      RateLimiterConfig
	MaxBodyBytes   int64
	Metrics        bool
	AllowedOrigins []string
}

// ConfigFrom maps the application configuration onto the adapter's.
// Authentication is enabled exactly when an API key is configured.
func ConfigFrom(c *config.Config) Config {
	return Config{
		Addr: c.HTTP.Addr,
		Auth: AuthConfig{
			Enabled: c.HTTP.APIKey != "",
			APIKey:  c.HTTP.APIKey,
		},
		RateLimit: RateLimiterConfig{
			RequestsPerMinute: c.HTTP.RateLimitRequests,
			BurstSize:         c.HTTP.RateLimitBurst,
		},
		MaxBodyBytes:   c.HTTP.MaxBodyBytes,
		Metrics:        c.HTTP.Metrics,
		AllowedOrigins: c.HTTP.AllowedOrigins,
	}
}
