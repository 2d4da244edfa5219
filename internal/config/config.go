// Package config loads the schema bootstrap configuration from the
// environment and an optional YAML file.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Execution modes.
const (
	ModeDataAPI = "dataapi"
	ModeDirect  = "direct"
)

// Config is the root configuration shared by the Lambda and schemactl.
type Config struct {
	Defaults  RequestDefaults `mapstructure:"defaults"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Direct    DirectConfig    `mapstructure:"direct"`
	Log       LogConfig       `mapstructure:"log"`
	Region    string          `mapstructure:"region"`
}

// RequestDefaults fill bootstrap request fields the lifecycle event leaves
// empty. The CDK construct sets them as Lambda environment variables.
type RequestDefaults struct {
	WorkgroupName  string `mapstructure:"workgroup_name"`
	DatabaseName   string `mapstructure:"database_name"`
	AdminSecretARN string `mapstructure:"admin_secret_arn"`
	BucketName     string `mapstructure:"bucket_name"`
	KeyPrefix      string `mapstructure:"key_prefix"`
	SQLFileName    string `mapstructure:"sql_file_name"`
}

type ExecutionConfig struct {
	Mode            string        `mapstructure:"mode"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	PollMaxInterval time.Duration `mapstructure:"poll_max_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
	// DeadlineMargin is reserved out of the Lambda deadline so a timed out
	// poll still has time to report back.
	DeadlineMargin time.Duration `mapstructure:"deadline_margin"`
}

type DirectConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	SSLMode string `mapstructure:"ssl_mode"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps config keys to the environment variables the Lambda is
// deployed with.
var envBindings = map[string]string{
	"defaults.workgroup_name":     "WORKGROUP_NAME",
	"defaults.database_name":      "DATABASE_NAME",
	"defaults.admin_secret_arn":   "ADMIN_SECRET_ARN",
	"defaults.bucket_name":        "S3_BUCKET_NAME",
	"defaults.key_prefix":         "S3_KEY_PREFIX",
	"defaults.sql_file_name":      "SQL_FILE_NAME",
	"execution.mode":              "EXECUTION_MODE",
	"execution.poll_interval":     "POLL_INTERVAL",
	"execution.poll_max_interval": "POLL_MAX_INTERVAL",
	"execution.timeout":           "EXECUTION_TIMEOUT",
	"execution.deadline_margin":   "DEADLINE_MARGIN",
	"direct.host":                 "DIRECT_HOST",
	"direct.port":                 "DIRECT_PORT",
	"direct.ssl_mode":             "DIRECT_SSL_MODE",
	"log.level":                   "LOG_LEVEL",
	"log.format":                  "LOG_FORMAT",
	"region":                      "AWS_REGION",
}

// Load reads config from the optional YAML file at path, then overlays the
// environment variables in envBindings.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s to %s: %w", key, env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the handler cannot run with.
func (c *Config) Validate() error {
	switch c.Execution.Mode {
	case ModeDataAPI, ModeDirect:
	default:
		return fmt.Errorf("unknown execution mode %q", c.Execution.Mode)
	}
	if c.Execution.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Execution.PollInterval)
	}
	if c.Execution.PollMaxInterval < c.Execution.PollInterval {
		return fmt.Errorf("poll max interval %s is below poll interval %s",
			c.Execution.PollMaxInterval, c.Execution.PollInterval)
	}
	if c.Execution.Timeout <= 0 {
		return fmt.Errorf("execution timeout must be positive, got %s", c.Execution.Timeout)
	}
	if c.Execution.DeadlineMargin < 0 || c.Execution.DeadlineMargin >= c.Execution.Timeout {
		return fmt.Errorf("deadline margin %s must be non-negative and below the execution timeout %s",
			c.Execution.DeadlineMargin, c.Execution.Timeout)
	}
	if c.Execution.Mode == ModeDirect && c.Direct.Host == "" {
		return fmt.Errorf("direct mode requires direct.host")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("defaults.key_prefix", "redshift-sql")
	v.SetDefault("defaults.sql_file_name", "redshift-tables.sql")

	v.SetDefault("execution.mode", ModeDataAPI)
	v.SetDefault("execution.poll_interval", 2*time.Second)
	v.SetDefault("execution.poll_max_interval", 15*time.Second)
	v.SetDefault("execution.timeout", 12*time.Minute)
	v.SetDefault("execution.deadline_margin", 15*time.Second)

	v.SetDefault("direct.port", 5439)
	v.SetDefault("direct.ssl_mode", "require")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
