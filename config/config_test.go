package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Fetcher.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d", cfg.Fetcher.TimeoutSeconds)
	}
	if cfg.Fetcher.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.RateLimit.MinDelaySeconds >= cfg.RateLimit.MaxDelaySeconds {
		t.Errorf("rate limit bounds inverted: %v >= %v",
			cfg.RateLimit.MinDelaySeconds, cfg.RateLimit.MaxDelaySeconds)
	}
}

func TestLoadFromOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[fetcher]
userAgent = "custom-agent"
timeoutSeconds = 60

[cache]
dir = "/tmp/clshare-test-cache"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	user, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	merged := merge(Default(), user)

	if merged.Fetcher.UserAgent != "custom-agent" {
		t.Errorf("UserAgent = %q", merged.Fetcher.UserAgent)
	}
	if merged.Fetcher.TimeoutSeconds != 60 {
		t.Errorf("TimeoutSeconds = %d", merged.Fetcher.TimeoutSeconds)
	}
	// Unspecified values keep their defaults.
	if merged.Fetcher.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", merged.Fetcher.MaxRetries)
	}
	if merged.RateLimit.MinDelaySeconds != 2 {
		t.Errorf("MinDelaySeconds = %v, want default 2", merged.RateLimit.MinDelaySeconds)
	}
	if merged.Cache.Dir != "/tmp/clshare-test-cache" {
		t.Errorf("Cache.Dir = %q", merged.Cache.Dir)
	}
}

func TestLoadFromBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[fetcher\nbroken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefaultTOMLParses(t *testing.T) {
	var cfg Config
	if _, err := toml.Decode(DefaultTOML(), &cfg); err != nil {
		t.Fatalf("DefaultTOML does not parse: %v", err)
	}
	if cfg.Fetcher.TimeoutSeconds != Default().Fetcher.TimeoutSeconds {
		t.Errorf("template timeout = %d, want %d",
			cfg.Fetcher.TimeoutSeconds, Default().Fetcher.TimeoutSeconds)
	}
}

func TestCacheDirConfigured(t *testing.T) {
	cfg := Default()
	cfg.Cache.Dir = "/explicit/path"
	dir, err := cfg.CacheDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/explicit/path" {
		t.Errorf("CacheDir = %q", dir)
	}
}
