package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Mirror   MirrorConfig   `toml:"mirror"`
	Log      LogConfig      `toml:"log"`
	// ReconcileTimeoutSeconds bounds the startup reconciliation run so a
	// stuck mirror cannot block process startup indefinitely. 0 disables
	// the bound.
	ReconcileTimeoutSeconds int `toml:"reconcile_timeout_seconds"`
}

// DatabaseConfig contains local store settings.
type DatabaseConfig struct {
	Path string `toml:"path"` // SQLite database file path
}

// MirrorConfig contains remote mirror settings. An empty URL disables
// mirroring entirely (local-only operation).
type MirrorConfig struct {
	URL       string `toml:"url"`
	APIKey    string `toml:"api_key"`
	JWTSecret string `toml:"jwt_secret"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `toml:"level"`  // debug | info | warn | error
	Format string `toml:"format"` // json | console
}

// Enabled reports whether a mirror backend is configured.
func (m MirrorConfig) Enabled() bool { return m.URL != "" }

// Load reads configuration from an optional TOML file named by
// FLEET_CONFIG, then applies environment overrides. It validates that a
// configured mirror carries its credentials.
func Load() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("FLEET_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)

	if cfg.Mirror.Enabled() {
		if cfg.Mirror.APIKey == "" {
			return nil, fmt.Errorf("MIRROR_API_KEY is required when MIRROR_URL is set")
		}
		if cfg.Mirror.JWTSecret == "" {
			return nil, fmt.Errorf("MIRROR_JWT_SECRET is required when MIRROR_URL is set")
		}
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but never fails on missing mirror
// credentials; the mirror is simply disabled instead.
// WARNING: development only.
func LoadWithDefaults() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("FLEET_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if cfg.Mirror.Enabled() && (cfg.Mirror.APIKey == "" || cfg.Mirror.JWTSecret == "") {
		cfg.Mirror = MirrorConfig{}
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Database:                DatabaseConfig{Path: "fleet.db"},
		Log:                     LogConfig{Level: "info", Format: "json"},
		ReconcileTimeoutSeconds: 60,
	}
}

func applyEnv(cfg *Config) {
	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)
	cfg.Mirror.URL = getEnv("MIRROR_URL", cfg.Mirror.URL)
	cfg.Mirror.APIKey = getEnv("MIRROR_API_KEY", cfg.Mirror.APIKey)
	cfg.Mirror.JWTSecret = getEnv("MIRROR_JWT_SECRET", cfg.Mirror.JWTSecret)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.ReconcileTimeoutSeconds = getEnvInt("RECONCILE_TIMEOUT_SECONDS", cfg.ReconcileTimeoutSeconds)
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}

// String returns a string representation of the config with credentials
// masked.
func (c *Config) String() string {
	mirror := "disabled"
	if c.Mirror.Enabled() {
		mirror = c.Mirror.URL + " (credentials masked)"
	}
	return fmt.Sprintf("Config{DB: %s, Mirror: %s, Log: %s/%s}", c.Database.Path, mirror, c.Log.Level, c.Log.Format)
}
