package platformconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/priceguard/sentinel/internal/platformscheduler"
)

// Store holds every platform's loaded Config, keyed by platform tag.
type Store struct {
	configs map[string]*Config
}

// Load reads every `*.yaml`/`*.yml` file in dir, one platform per file
// named `{platform}.yaml`, and returns a Store.
func Load(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("platformconfig: read dir %s: %w", dir, err)
	}

	configs := make(map[string]*Config)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		platform := strings.TrimSuffix(entry.Name(), ext)
		cfg, err := loadOne(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("platformconfig: %s: %w", entry.Name(), err)
		}
		if cfg.Platform == "" {
			cfg.Platform = platform
		}
		configs[platform] = cfg
	}
	return &Store{configs: configs}, nil
}

func loadOne(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the Config for platform, or ErrUnknownPlatform.
func (s *Store) Get(platform string) (*Config, error) {
	cfg, ok := s.configs[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	return cfg, nil
}

// Platforms returns every configured platform tag.
func (s *Store) Platforms() []string {
	out := make([]string, 0, len(s.configs))
	for p := range s.configs {
		out = append(out, p)
	}
	return out
}

// SchedulerPlatforms projects every configured platform's Scheduling block
// into the ordered list platformscheduler.New consumes. The order is the
// platform tag sorted ascending, so the admission order is stable across
// process restarts regardless of filesystem directory-listing order.
func (s *Store) SchedulerPlatforms() []platformscheduler.Platform {
	tags := s.Platforms()
	sort.Strings(tags)

	out := make([]platformscheduler.Platform, 0, len(tags))
	for _, tag := range tags {
		cfg := s.configs[tag]
		out = append(out, platformscheduler.Platform{
			Tag:            tag,
			WorkflowID:     cfg.Scheduling.WorkflowID,
			Priority:       cfg.Scheduling.Priority,
			LinkURLPattern: cfg.LinkURLPattern,
			SameCooldown:   cfg.Scheduling.SameCooldown,
			CoverageRatio:  cfg.Scheduling.CoverageRatio,
		})
	}
	return out
}
