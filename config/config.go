// Package config loads locator and application settings from the
// environment, with optional .env file support.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/km-arc/go-locator/locator"
)

// Config is the central typed configuration struct.
type Config struct {
	App     AppConfig
	Locator LocatorConfig
}

type AppConfig struct {
	Name  string
	Env   string // development | production | testing
	Port  string
	Debug bool
}

type LocatorConfig struct {
	// CacheEnabled toggles the resolution cache.
	CacheEnabled bool
	// CacheCapacity bounds the LRU resolution cache.
	CacheCapacity int
	// Profiles lists the profile names to activate at bootstrap,
	// comma-separated in LOCATOR_PROFILES.
	Profiles []string
}

// Load reads .env (if present) and populates a Config from environment
// variables. Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	return &Config{
		App: AppConfig{
			Name:  env("APP_NAME", "go-locator"),
			Env:   env("APP_ENV", "development"),
			Port:  env("APP_PORT", "8000"),
			Debug: envBool("APP_DEBUG", false),
		},
		Locator: LocatorConfig{
			CacheEnabled:  envBool("LOCATOR_CACHE", true),
			CacheCapacity: envInt("LOCATOR_CACHE_CAPACITY", locator.DefaultCacheCapacity),
			Profiles:      envList("LOCATOR_PROFILES", nil),
		},
	}
}

// Options translates the loaded settings into locator construction options.
//
//	l := locator.New(cfg.Options()...)
func (c *Config) Options() []locator.Option {
	var opts []locator.Option
	if c.Locator.CacheEnabled {
		opts = append(opts, locator.WithCache(c.Locator.CacheCapacity))
	} else {
		opts = append(opts, locator.WithoutCache())
	}
	if c.App.Debug {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts, locator.WithLogger(slog.New(handler)))
	}
	return opts
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	return envInt(key, defaultVal)
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	return envBool(key, defaultVal)
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
