package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "redshift-sql", cfg.Defaults.KeyPrefix)
	assert.Equal(t, "redshift-tables.sql", cfg.Defaults.SQLFileName)
	assert.Equal(t, ModeDataAPI, cfg.Execution.Mode)
	assert.Equal(t, 2*time.Second, cfg.Execution.PollInterval)
	assert.Equal(t, 15*time.Second, cfg.Execution.PollMaxInterval)
	assert.Equal(t, 12*time.Minute, cfg.Execution.Timeout)
	assert.Equal(t, 5439, cfg.Direct.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WORKGROUP_NAME", "lab2-workgroup")
	t.Setenv("DATABASE_NAME", "lab2db")
	t.Setenv("ADMIN_SECRET_ARN", "arn:aws:secretsmanager:us-east-1:123456789012:secret:admin")
	t.Setenv("S3_BUCKET_NAME", "sql-bucket")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("EXECUTION_TIMEOUT", "3m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "lab2-workgroup", cfg.Defaults.WorkgroupName)
	assert.Equal(t, "lab2db", cfg.Defaults.DatabaseName)
	assert.Equal(t, "arn:aws:secretsmanager:us-east-1:123456789012:secret:admin", cfg.Defaults.AdminSecretARN)
	assert.Equal(t, "sql-bucket", cfg.Defaults.BucketName)
	assert.Equal(t, 500*time.Millisecond, cfg.Execution.PollInterval)
	assert.Equal(t, 3*time.Minute, cfg.Execution.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemactl.yaml")
	content := `
defaults:
  workgroup_name: file-workgroup
execution:
  mode: direct
  timeout: 90s
direct:
  host: localhost
  port: 5440
log:
  format: cli
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-workgroup", cfg.Defaults.WorkgroupName)
	assert.Equal(t, ModeDirect, cfg.Execution.Mode)
	assert.Equal(t, 90*time.Second, cfg.Execution.Timeout)
	assert.Equal(t, "localhost", cfg.Direct.Host)
	assert.Equal(t, 5440, cfg.Direct.Port)
	assert.Equal(t, "cli", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{Execution: ExecutionConfig{
			Mode:            ModeDataAPI,
			PollInterval:    time.Second,
			PollMaxInterval: 5 * time.Second,
			Timeout:         time.Minute,
		}}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown mode", mutate: func(c *Config) { c.Execution.Mode = "jdbc" }, wantErr: "unknown execution mode"},
		{name: "zero interval", mutate: func(c *Config) { c.Execution.PollInterval = 0 }, wantErr: "poll interval"},
		{name: "max below interval", mutate: func(c *Config) { c.Execution.PollMaxInterval = time.Millisecond }, wantErr: "poll max interval"},
		{name: "zero timeout", mutate: func(c *Config) { c.Execution.Timeout = 0 }, wantErr: "execution timeout"},
		{name: "negative margin", mutate: func(c *Config) { c.Execution.DeadlineMargin = -time.Second }, wantErr: "deadline margin"},
		{name: "margin eats timeout", mutate: func(c *Config) { c.Execution.DeadlineMargin = time.Minute }, wantErr: "deadline margin"},
		{name: "direct without host", mutate: func(c *Config) { c.Execution.Mode = ModeDirect }, wantErr: "direct.host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
