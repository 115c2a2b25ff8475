// Package config loads the ambient application configuration every
// cmd/* entrypoint shares: Redis DSN, Postgres DSN, workflow/platform
// directories, the audit output root, and logging/tick knobs (spec §6
// env inputs), via the same viper layering `internal/platformconfig`
// uses for platform YAML.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide application configuration, populated from
// environment variables (and an optional config file) by Load.
type Config struct {
	RedisAddr   string `mapstructure:"redis_addr"`
	PostgresDSN string `mapstructure:"postgres_dsn"`

	WorkflowDir       string `mapstructure:"workflow_dir"`
	PlatformConfigDir string `mapstructure:"platform_config_dir"`
	AuditOutputRoot   string `mapstructure:"audit_output_root"`
	WatcherTasksFile  string `mapstructure:"watcher_tasks_file"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	SchedulerTickInterval       time.Duration `mapstructure:"scheduler_tick_interval"`
	SchedulerInterPlatformDelay time.Duration `mapstructure:"scheduler_inter_platform_delay"`
	SchedulerHeartbeatInterval  time.Duration `mapstructure:"scheduler_heartbeat_interval"`

	ReconcileBatchSize  int           `mapstructure:"reconcile_batch_size"`
	ReconcileBatchDelay time.Duration `mapstructure:"reconcile_batch_delay"`

	DequeueWait time.Duration `mapstructure:"dequeue_wait"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load reads the application config from environment variables, falling
// back to the defaults below when unset. Every key is also readable from
// an optional config file at configFile, for local development; an empty
// configFile skips that layer entirely.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SENTINEL")
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("postgres_dsn", "postgres://localhost:5432/sentinel?sslmode=disable")

	v.SetDefault("workflow_dir", "./workflows")
	v.SetDefault("platform_config_dir", "./platforms")
	v.SetDefault("audit_output_root", "./audit-logs")
	v.SetDefault("watcher_tasks_file", "./watcher-tasks.yaml")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	v.SetDefault("scheduler_tick_interval", time.Second)
	v.SetDefault("scheduler_inter_platform_delay", 2*time.Second)
	v.SetDefault("scheduler_heartbeat_interval", 10*time.Second)

	v.SetDefault("reconcile_batch_size", 20)
	v.SetDefault("reconcile_batch_delay", 200*time.Millisecond)

	v.SetDefault("dequeue_wait", 2*time.Second)

	v.SetDefault("metrics_addr", ":9090")
}
