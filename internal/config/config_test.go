package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("DebounceMin converts seconds to duration", func(t *testing.T) {
		cfg := &Config{DebounceMinSeconds: 4}
		assert.Equal(t, 4*time.Second, cfg.DebounceMin())
	})

	t.Run("DebounceMax converts seconds to duration", func(t *testing.T) {
		cfg := &Config{DebounceMaxSeconds: 8}
		assert.Equal(t, 8*time.Second, cfg.DebounceMax())
	})

	t.Run("NotifyCooldown converts hours to duration", func(t *testing.T) {
		cfg := &Config{NotifyCooldownHours: 168}
		assert.Equal(t, 168*time.Hour, cfg.NotifyCooldown())
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DebounceMinSeconds:  4,
			DebounceMaxSeconds:  8,
			NotifyCooldownHours: 168,
			PageAccessToken:     "token",
			OpenAIAPIKey:        "key",
		}
	}

	t.Run("accepts sane config", func(t *testing.T) {
		assert.NoError(t, base().Validate(false))
		assert.NoError(t, base().Validate(true))
	})

	t.Run("rejects inverted debounce window", func(t *testing.T) {
		cfg := base()
		cfg.DebounceMinSeconds = 10
		cfg.DebounceMaxSeconds = 5
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects non-positive debounce window", func(t *testing.T) {
		cfg := base()
		cfg.DebounceMaxSeconds = 0
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("requires page token in production", func(t *testing.T) {
		cfg := base()
		cfg.PageAccessToken = ""
		assert.Error(t, cfg.Validate(true))
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("rejects short dispatch token in production", func(t *testing.T) {
		cfg := base()
		cfg.DispatchAuthToken = "short"
		assert.Error(t, cfg.Validate(true))
		assert.NoError(t, cfg.Validate(false))
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                 os.Getenv("PORT"),
		"DATABASE_URL":         os.Getenv("DATABASE_URL"),
		"REDIS_URL":            os.Getenv("REDIS_URL"),
		"DEBOUNCE_MIN_SECONDS": os.Getenv("DEBOUNCE_MIN_SECONDS"),
		"DEBOUNCE_MAX_SECONDS": os.Getenv("DEBOUNCE_MAX_SECONDS"),
		"RESET_KEYWORD":        os.Getenv("RESET_KEYWORD"),
		"LOG_LEVEL":            os.Getenv("LOG_LEVEL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("PORT")
		os.Unsetenv("DEBOUNCE_MIN_SECONDS")
		os.Unsetenv("DEBOUNCE_MAX_SECONDS")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, 4, cfg.DebounceMinSeconds)
		assert.Equal(t, 8, cfg.DebounceMaxSeconds)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("fails without required values", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("reads overrides", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("DEBOUNCE_MIN_SECONDS", "2")
		os.Setenv("DEBOUNCE_MAX_SECONDS", "10")
		os.Setenv("RESET_KEYWORD", "#reset")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, cfg.DebounceMin())
		assert.Equal(t, 10*time.Second, cfg.DebounceMax())
		assert.Equal(t, "#reset", cfg.ResetKeyword)
	})
}
