package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`
	PublicURL   string `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`

	// LLM (optional, agent degrades to canned replies without it)
	LLMAPIKey    string        `envconfig:"LLM_API_KEY"`
	LLMBaseURL   string        `envconfig:"LLM_BASE_URL" default:"https://api.openai.com/v1"`
	LLMModel     string        `envconfig:"LLM_MODEL" default:"gpt-4o"`
	LLMMaxTokens int           `envconfig:"LLM_MAX_TOKENS" default:"1024"`
	LLMTimeout   time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`

	// Twilio (optional, outbound delivery is logged and dropped without it)
	TwilioAccountSID string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `envconfig:"TWILIO_FROM_NUMBER"`

	// Session store (optional, falls back to in-memory when unreachable)
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Profile rendering
	RenderServiceURL string `envconfig:"RENDER_SERVICE_URL"` // external renderer; local link issuer when empty
	ShareSigningKey  string `envconfig:"SHARE_SIGNING_KEY" default:"dev-share-key"`

	// Matching
	MatchDropSize int           `envconfig:"MATCH_DROP_SIZE" default:"3"`
	DropInterval  time.Duration `envconfig:"DROP_INTERVAL" default:"24h"`

	// Retention
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`

	// Persona
	PersonaPath string `envconfig:"PERSONA_PATH"`

	// Admin API
	AdminAPIKey      string        `envconfig:"ADMIN_API_KEY"`
	AdminCORSOrigins string        `envconfig:"ADMIN_CORS_ORIGINS"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// LLMEnabled returns true if an LLM API key is configured.
func (c *Config) LLMEnabled() bool {
	return c.LLMAPIKey != ""
}

// TwilioEnabled returns true if Twilio credentials are configured.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// RedisEnabled returns true if a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// RenderEnabled returns true if an external render service is configured.
func (c *Config) RenderEnabled() bool {
	return c.RenderServiceURL != ""
}

// AdminCORSOriginList returns the parsed list of allowed CORS origins.
func (c *Config) AdminCORSOriginList() []string {
	if c.AdminCORSOrigins == "" {
		return nil
	}
	parts := strings.Split(c.AdminCORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, o := range parts {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
