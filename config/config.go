// Package config provides configuration loading for clshare using TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Fetcher holds HTTP and browser fetching settings.
type Fetcher struct {
	UserAgent      string `toml:"userAgent"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
	ChromePath     string `toml:"chromePath"`
	MaxRetries     int    `toml:"maxRetries"`
}

// RateLimit spaces out batch fetches.
type RateLimit struct {
	MinDelaySeconds float64 `toml:"minDelaySeconds"`
	MaxDelaySeconds float64 `toml:"maxDelaySeconds"`
}

// Cache holds storage settings.
type Cache struct {
	Dir string `toml:"dir"` // empty = ~/.cache/clshare
}

// Config is the main configuration struct.
type Config struct {
	Fetcher   Fetcher   `toml:"fetcher"`
	RateLimit RateLimit `toml:"ratelimit"`
	Cache     Cache     `toml:"cache"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Fetcher: Fetcher{
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			TimeoutSeconds: 30,
			ChromePath:     "",
			MaxRetries:     3,
		},
		RateLimit: RateLimit{
			MinDelaySeconds: 2,
			MaxDelaySeconds: 5,
		},
		Cache: Cache{
			Dir: "",
		},
	}
}

// configDir returns the configuration directory path.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "clshare"), nil
}

// ConfigPath returns the path to the user's config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir resolves the cache directory: the configured one, or
// ~/.cache/clshare when unset.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "clshare"), nil
}

// Load loads configuration, layering user config on top of defaults.
// Returns the default config if no user config exists.
func Load() (*Config, error) {
	cfg := Default()

	configPath, err := ConfigPath()
	if err != nil {
		return cfg, nil // Return defaults if we can't determine path
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil // Return defaults if no user config
	}

	userCfg, err := LoadFrom(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
	}
	return merge(cfg, userCfg), nil
}

// LoadFrom loads a TOML config file from a specific path.
func LoadFrom(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}
	return &cfg, nil
}

// merge layers user config on top of defaults.
// Only non-zero values from user config override defaults.
func merge(defaults, user *Config) *Config {
	result := *defaults

	if user.Fetcher.UserAgent != "" {
		result.Fetcher.UserAgent = user.Fetcher.UserAgent
	}
	if user.Fetcher.TimeoutSeconds != 0 {
		result.Fetcher.TimeoutSeconds = user.Fetcher.TimeoutSeconds
	}
	if user.Fetcher.ChromePath != "" {
		result.Fetcher.ChromePath = user.Fetcher.ChromePath
	}
	if user.Fetcher.MaxRetries != 0 {
		result.Fetcher.MaxRetries = user.Fetcher.MaxRetries
	}

	if user.RateLimit.MinDelaySeconds != 0 {
		result.RateLimit.MinDelaySeconds = user.RateLimit.MinDelaySeconds
	}
	if user.RateLimit.MaxDelaySeconds != 0 {
		result.RateLimit.MaxDelaySeconds = user.RateLimit.MaxDelaySeconds
	}

	if user.Cache.Dir != "" {
		result.Cache.Dir = user.Cache.Dir
	}

	return &result
}

// DefaultTOML returns the default configuration as a TOML string.
// Used for --init-config to generate a user config file.
func DefaultTOML() string {
	return `# clshare configuration
# Save to ~/.config/clshare/config.toml and customize
# Only include settings you want to change from defaults

# HTTP and browser fetching settings
[fetcher]
userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
timeoutSeconds = 30
chromePath = ""               # Path to Chrome/Chromium for JS rendering (empty = auto-detect)
maxRetries = 3                # Browser fetch retries before giving up

# Delay between fetches in batch mode (jittered between min and max)
[ratelimit]
minDelaySeconds = 2.0
maxDelaySeconds = 5.0

# Conversation cache
[cache]
dir = ""                      # Cache directory (empty = ~/.cache/clshare)
`
}
