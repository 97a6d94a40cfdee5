package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	// Instagram webhook + Graph API
	AppSecret       string `env:"IG_APP_SECRET"`
	VerifyToken     string `env:"IG_VERIFY_TOKEN"`
	PageAccessToken string `env:"IG_PAGE_ACCESS_TOKEN"`
	GraphBaseURL    string `env:"IG_GRAPH_BASE_URL" envDefault:"https://graph.facebook.com/v21.0"`

	// Agent
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	OpenAIModel  string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`

	// Debounce window: dispatch delay is uniform in [min, max]; max is also
	// the dedup time bucket length.
	DebounceMinSeconds int `env:"DEBOUNCE_MIN_SECONDS" envDefault:"4"`
	DebounceMaxSeconds int `env:"DEBOUNCE_MAX_SECONDS" envDefault:"8"`

	// Test/ops toggles
	AllowedSenderID string `env:"ALLOWED_SENDER_ID"`
	ResetKeyword    string `env:"RESET_KEYWORD"`

	// Manager escalation
	ManagerWebhookURL   string `env:"MANAGER_WEBHOOK_URL"`
	NotifyCooldownHours int    `env:"NOTIFY_COOLDOWN_HOURS" envDefault:"168"`

	ScheduleFeedURL string `env:"SCHEDULE_FEED_URL"`

	DispatchAuthToken string `env:"DISPATCH_AUTH_TOKEN"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) DebounceMin() time.Duration {
	return time.Duration(c.DebounceMinSeconds) * time.Second
}

func (c *Config) DebounceMax() time.Duration {
	return time.Duration(c.DebounceMaxSeconds) * time.Second
}

func (c *Config) NotifyCooldown() time.Duration {
	return time.Duration(c.NotifyCooldownHours) * time.Hour
}

func (c *Config) Validate(isProduction bool) error {
	if c.DebounceMinSeconds <= 0 || c.DebounceMaxSeconds <= 0 {
		return fmt.Errorf("DEBOUNCE_MIN_SECONDS and DEBOUNCE_MAX_SECONDS must be positive")
	}
	if c.DebounceMinSeconds > c.DebounceMaxSeconds {
		return fmt.Errorf("DEBOUNCE_MIN_SECONDS must not exceed DEBOUNCE_MAX_SECONDS")
	}
	if c.NotifyCooldownHours < 0 {
		return fmt.Errorf("NOTIFY_COOLDOWN_HOURS must not be negative")
	}

	if isProduction {
		if c.AppSecret == "" {
			log.Warn().Msg("IG_APP_SECRET is empty in production: webhook signature verification disabled")
		}
		if c.VerifyToken == "" {
			log.Warn().Msg("IG_VERIFY_TOKEN is empty in production: webhook handshake will always fail")
		}
		if c.PageAccessToken == "" {
			return fmt.Errorf("IG_PAGE_ACCESS_TOKEN is required in production")
		}
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required in production")
		}
		if c.DispatchAuthToken != "" && len(c.DispatchAuthToken) < 32 {
			return fmt.Errorf("DISPATCH_AUTH_TOKEN must be at least 32 characters in production (generate with: openssl rand -base64 32)")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
