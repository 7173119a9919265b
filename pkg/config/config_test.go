package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithLookuper(envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.CoinGecko.MaxConcurrent != 3 {
		t.Errorf("expected 3 concurrent fetches, got %d", cfg.CoinGecko.MaxConcurrent)
	}
	if cfg.CoinGecko.TopTTL != 2*time.Minute {
		t.Errorf("expected top TTL 2m, got %s", cfg.CoinGecko.TopTTL)
	}
	if cfg.CoinGecko.GlobalTTL != 5*time.Minute {
		t.Errorf("expected global TTL 5m, got %s", cfg.CoinGecko.GlobalTTL)
	}
	if cfg.Chat.Namespace != "cryptobuddy" {
		t.Errorf("expected namespace cryptobuddy, got %s", cfg.Chat.Namespace)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %s", cfg.Storage.Backend)
	}
	if len(cfg.Security.CORSMethods) != 4 {
		t.Errorf("expected 4 CORS methods, got %v", cfg.Security.CORSMethods)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadWithLookuper(envconfig.MapLookuper(map[string]string{
		"SERVER_PORT":              "9090",
		"COINGECKO_MAX_CONCURRENT": "5",
		"STORAGE_BACKEND":          "redis",
		"CHAT_SIMULATE_DELAY":      "false",
		"LOG_LEVEL":                "debug",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.GetServerAddr() != "0.0.0.0:9090" {
		t.Errorf("unexpected server addr %s", cfg.GetServerAddr())
	}
	if cfg.CoinGecko.MaxConcurrent != 5 {
		t.Errorf("expected 5 concurrent fetches, got %d", cfg.CoinGecko.MaxConcurrent)
	}
	if cfg.Storage.Backend != "redis" {
		t.Errorf("expected redis backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Chat.SimulateDelay {
		t.Error("expected simulated delay to be disabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port", map[string]string{"SERVER_PORT": "70000"}},
		{"concurrency", map[string]string{"COINGECKO_MAX_CONCURRENT": "0"}},
		{"cache backend", map[string]string{"COINGECKO_CACHE_BACKEND": "memcached"}},
		{"storage backend", map[string]string{"STORAGE_BACKEND": "postgres"}},
		{"delay bounds", map[string]string{"CHAT_MIN_DELAY": "6s", "CHAT_MAX_DELAY": "5s"}},
		{"openai key", map[string]string{"OPENAI_ENABLED": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadWithLookuper(envconfig.MapLookuper(tt.env)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CRYPTOBUDDY_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get wd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	defer os.Chdir(wd)

	os.Unsetenv("CRYPTOBUDDY_TEST_VALUE")
	defer os.Unsetenv("CRYPTOBUDDY_TEST_VALUE")

	loaded, err := LoadDotEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != ".env" {
		t.Errorf("expected .env to be loaded, got %q", loaded)
	}
	if got := os.Getenv("CRYPTOBUDDY_TEST_VALUE"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
}
