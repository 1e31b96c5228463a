// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadLayersDefaultsFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://file/pocketree
redis:
  url: redis://file:6379
mission:
  default_name: Reforest Gobi
scheduler:
  wither_after: 48h
`)
	t.Setenv("REDIS_URL", "redis://env:6379")
	t.Setenv("PORT", "9090")

	c, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file/pocketree", c.Database.URL)
	assert.Equal(t, "redis://env:6379", c.Redis.URL)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "Reforest Gobi", c.Mission.DefaultName)
	assert.Equal(t, 48*time.Hour, c.Scheduler.WitherAfter)

	assert.Equal(t, 30*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, 3, c.Recommender.MaxTasks)
	assert.Equal(t, "5 0 * * *", c.Scheduler.RolloverSpec)
	assert.Equal(t, int64(10<<20), c.Server.MaxUploadBytes)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/pocketree")
	t.Setenv("REDIS_URL", "redis://env:6379")

	c, err := load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Greenify Sahara", c.Mission.DefaultName)
	assert.True(t, c.IsDevelopment())
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://env/pocketree")
	t.Setenv("REDIS_URL", "redis://env:6379")

	c, err := load("")
	require.NoError(t, err)
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing database", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"missing redis", func(c *Config) { c.Redis.URL = "" }, "REDIS_URL"},
		{
			"wildcard with credentials",
			func(c *Config) { c.CORS.AllowedOrigins = []string{"*"} },
			"wildcard",
		},
		{
			"insecure otel in production",
			func(c *Config) {
				c.App.Environment = "production"
				c.Otel.Enabled = true
				c.Otel.Insecure = true
			},
			"OTEL_INSECURE",
		},
		{"zero rate window", func(c *Config) { c.RateLimit.Window = 0 }, "rate_limit.window"},
		{"blank mission", func(c *Config) { c.Mission.DefaultName = "  " }, "mission.default_name"},
		{"zero classifier timeout", func(c *Config) { c.Classifier.Timeout = 0 }, "timeouts"},
		{"no recommended tasks", func(c *Config) { c.Recommender.MaxTasks = 0 }, "max_tasks"},
		{"bad cron", func(c *Config) { c.Scheduler.WitherSpec = "every hour" }, "cron spec"},
		{
			"bad cron ignored when disabled",
			func(c *Config) {
				c.Scheduler.Enabled = false
				c.Scheduler.WitherSpec = "every hour"
			},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig(t)
			tt.mutate(c)

			err := validate(c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServerAddress(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8080}
	assert.Equal(t, "127.0.0.1:8080", s.Address())
}
