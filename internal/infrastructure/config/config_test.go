package config_test

import (
	"testing"
	"time"

	"github.com/iho/coinledger/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL == "" {
		t.Fatalf("expected default database URL to be set")
	}
	if cfg.StorageDriver != config.StoragePostgres {
		t.Fatalf("expected postgres storage by default, got %s", cfg.StorageDriver)
	}
	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}
	if cfg.LoginReward != 5 || cfg.SchedulerSpec != "@every 30s" {
		t.Fatalf("unexpected reward/scheduler defaults: %d %q", cfg.LoginReward, cfg.SchedulerSpec)
	}

	rate, err := cfg.SavingRateDecimal()
	if err != nil || rate.String() != "0.1" {
		t.Fatalf("expected saving rate 0.1, got %v (%v)", rate, err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("JWT_SECRET", "top-secret")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("LOGIN_REWARD", "7")
	t.Setenv("REWARD_TIMEZONE", "UTC")
	t.Setenv("SCHEDULER_ENABLED", "false")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.StorageDriver != config.StorageMemory {
		t.Fatalf("expected memory storage, got %s", cfg.StorageDriver)
	}
	if cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected custom database URL, got %s", cfg.DatabaseURL)
	}
	if cfg.RedisURL != "redis://example" {
		t.Fatalf("expected custom redis URL, got %s", cfg.RedisURL)
	}
	if cfg.HTTPPort != "9090" {
		t.Fatalf("expected HTTP port override, got %s", cfg.HTTPPort)
	}
	if cfg.DatabaseTimeout != 45*time.Second {
		t.Fatalf("expected database timeout override, got %s", cfg.DatabaseTimeout)
	}
	if cfg.JWTSecret != "top-secret" || !cfg.AuthEnabled {
		t.Fatalf("expected auth settings to be set, got secret=%s enabled=%v", cfg.JWTSecret, cfg.AuthEnabled)
	}
	if cfg.LoginReward != 7 || cfg.SchedulerEnabled {
		t.Fatalf("expected reward and scheduler overrides, got %d %v", cfg.LoginReward, cfg.SchedulerEnabled)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "duration", key: "HTTP_READ_TIMEOUT", val: "not-a-duration"},
		{name: "storage driver", key: "STORAGE_DRIVER", val: "sqlite"},
		{name: "saving rate", key: "SAVING_RATE", val: "ten percent"},
		{name: "negative saving rate", key: "SAVING_RATE", val: "-0.5"},
		{name: "negative login reward", key: "LOGIN_REWARD", val: "-1"},
		{name: "time zone", key: "REWARD_TIMEZONE", val: "Mars/Olympus"},
		{name: "auth without secret", key: "AUTH_ENABLED", val: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			t.Setenv(tt.key, tt.val)

			if _, err := config.Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}
