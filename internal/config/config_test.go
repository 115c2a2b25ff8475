package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.SchedulerTickInterval != time.Second {
		t.Fatalf("SchedulerTickInterval = %v, want 1s", cfg.SchedulerTickInterval)
	}
	if cfg.ReconcileBatchSize != 20 {
		t.Fatalf("ReconcileBatchSize = %d, want 20", cfg.ReconcileBatchSize)
	}
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	os.Setenv("SENTINEL_REDIS_ADDR", "redis.internal:6380")
	defer os.Unsetenv("SENTINEL_REDIS_ADDR")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisAddr != "redis.internal:6380" {
		t.Fatalf("RedisAddr = %q, want env override", cfg.RedisAddr)
	}
}
