package app

import (
	"path/filepath"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/cryptobuddy/pkg/config"
)

func TestInitializeWiresComponents(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"memory", map[string]string{"STORAGE_BACKEND": "memory"}},
		{"sqlite", map[string]string{"STORAGE_BACKEND": "sqlite", "STORAGE_SQLITE_PATH": filepath.Join(t.TempDir(), "store.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.LoadWithLookuper(envconfig.MapLookuper(tt.env))
			if err != nil {
				t.Fatalf("config failed: %v", err)
			}
			logger, _ := test.NewNullLogger()

			a := New(cfg, logger)
			if err := a.Initialize(); err != nil {
				t.Fatalf("initialize failed: %v", err)
			}
			defer a.Close()

			if a.Orchestrator() == nil || a.Market() == nil || a.Sessions() == nil {
				t.Fatal("expected core components to be wired")
			}
			if a.Influx() != nil || a.NATS() != nil {
				t.Error("disabled backends should stay nil")
			}
		})
	}
}

func TestInitializeFailsOnUnreachableRedis(t *testing.T) {
	cfg, err := config.LoadWithLookuper(envconfig.MapLookuper(map[string]string{
		"STORAGE_BACKEND":    "redis",
		"REDIS_HOST":         "127.0.0.1",
		"REDIS_PORT":         "1",
		"REDIS_DIAL_TIMEOUT": "100ms",
	}))
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	logger, _ := test.NewNullLogger()

	if err := New(cfg, logger).Initialize(); err == nil {
		t.Fatal("expected an error for an unreachable Redis")
	}
}
