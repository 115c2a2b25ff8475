// Package platformconfig loads the per-platform YAML configuration (spec
// §6 "Platform config (YAML)") that drives both scraping/fetch behavior
// and the reconciliation exclusion policy.
package platformconfig

import "time"

// ExclusionPolicy names the fields a platform's update-back must never
// touch, plus a human-readable reason (spec §3 Platform Update Exclusion
// Policy).
type ExclusionPolicy struct {
	SkipFields []string `mapstructure:"skip_fields"`
	Reason     string   `mapstructure:"reason"`
}

// RateLimit bounds how aggressively a platform may be polled.
type RateLimit struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// Config is one platform's full configuration. Navigation and Extraction
// are intentionally untyped: the core treats them as opaque per spec §6
// ("the core treats the non-exclusion sections as opaque and hands them to
// the fetch node") — only platform-specific fetch adapters interpret their
// shape.
type Config struct {
	Platform string `mapstructure:"platform"`
	// FetchMode selects which node-type tag ("fetch_api" or "fetch_scrape")
	// a workflow targeting this platform resolves to, and so which of
	// cmd/worker's two Fetcher maps this platform is wired into. Defaults
	// to "api" when unset.
	FetchMode         string           `mapstructure:"fetch_mode"`
	BaseURL           string           `mapstructure:"base_url"`
	UserAgent         string           `mapstructure:"user_agent"`
	LinkURLPattern    string           `mapstructure:"link_url_pattern"`
	RateLimit         RateLimit        `mapstructure:"rate_limit"`
	Navigation        []map[string]any `mapstructure:"navigation"`
	Extraction        map[string]any   `mapstructure:"extraction"`
	UpdateExclusions  ExclusionPolicy  `mapstructure:"update_exclusions"`
	DesktopDetection  map[string]any   `mapstructure:"desktop_detection,omitempty"`
	URLTransformation map[string]any   `mapstructure:"url_transformation,omitempty"`

	// Scheduling carries the admission-loop parameters for this platform
	// (spec §4.E step 3, §5 ordering guarantees): which validation workflow
	// to run, its priority within the platform's queue, the cooldown before
	// this platform is admitted again, and the on/off-sale coverage ratio R.
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
}

// SchedulingConfig is one platform's scheduler admission parameters, kept
// alongside its fetch/exclusion config so a single YAML file fully
// describes how a platform is scraped and how often.
type SchedulingConfig struct {
	WorkflowID    string        `mapstructure:"workflow_id"`
	Priority      int           `mapstructure:"priority"`
	SameCooldown  time.Duration `mapstructure:"same_platform_cooldown"`
	CoverageRatio int           `mapstructure:"coverage_ratio"`
}

// IsScrape reports whether this platform is fetched via a headless browser
// (internal/browserpool + platformclient.ScrapeFetcher) rather than a
// direct HTTP/JSON call.
func (c *Config) IsScrape() bool {
	return c.FetchMode == "scrape"
}

// IsExcluded reports whether field must never be written back for this
// platform (spec §4.I step 4).
func (c *Config) IsExcluded(field string) bool {
	for _, f := range c.UpdateExclusions.SkipFields {
		if f == field {
			return true
		}
	}
	return false
}
