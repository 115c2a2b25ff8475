package platformconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
base_url: https://www.hwahae.co.kr
user_agent: sentinel-bot/1.0
rate_limit:
  requests_per_minute: 30
update_exclusions:
  skip_fields:
    - product_name
  reason: platform forbids automated name edits
`

func TestLoadParsesExclusionPolicy(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hwahae.yaml"), []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg, err := store.Get("hwahae")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.BaseURL != "https://www.hwahae.co.kr" {
		t.Fatalf("BaseURL = %q", cfg.BaseURL)
	}
	if !cfg.IsExcluded("product_name") {
		t.Fatalf("expected product_name excluded")
	}
	if cfg.IsExcluded("discounted_price") {
		t.Fatalf("discounted_price should not be excluded")
	}
}

const schedulingYAML = `
link_url_pattern: "https://shop.example.com/item/{product_id}"
scheduling:
  workflow_id: validate_catalog
  priority: 5
  same_platform_cooldown: 90s
  coverage_ratio: 4
`

func TestSchedulerPlatformsProjectsSchedulingBlock(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "musinsa.yaml"), []byte(schedulingYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	platforms := store.SchedulerPlatforms()
	if len(platforms) != 1 {
		t.Fatalf("len(platforms) = %d, want 1", len(platforms))
	}
	p := platforms[0]
	if p.Tag != "musinsa" || p.WorkflowID != "validate_catalog" || p.Priority != 5 || p.CoverageRatio != 4 {
		t.Fatalf("unexpected platform projection: %+v", p)
	}
	if p.SameCooldown.Seconds() != 90 {
		t.Fatalf("SameCooldown = %v, want 90s", p.SameCooldown)
	}
	if p.LinkURLPattern != "https://shop.example.com/item/{product_id}" {
		t.Fatalf("LinkURLPattern = %q", p.LinkURLPattern)
	}
}

func TestGetUnknownPlatform(t *testing.T) {
	dir := t.TempDir()
	store, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := store.Get("ghost"); !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("Get() error = %v, want ErrUnknownPlatform", err)
	}
}
