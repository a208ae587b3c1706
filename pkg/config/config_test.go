package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, SourceFile, cfg.Database.Source)
	assert.Equal(t, 50, cfg.Search.DefaultLimit)
	assert.Equal(t, "search-events", cfg.Kafka.Topics.SearchEvents)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
database:
  source: http
  url: http://example.com/api.db.zst
search:
  defaultLimit: 10
redis:
  cacheTTL: 2m
server:
  allowOrigins: ["https://docs.example.com"]
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("ADS_SERVER_PORT", "9000")
	t.Setenv("ADS_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("ADS_REDIS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourceHTTP, cfg.Database.Source)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 1000, cfg.Search.MaxResults)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"https://docs.example.com"}, cfg.Server.AllowOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown source", func(c *Config) { c.Database.Source = "ftp" }, false},
		{"http without url", func(c *Config) { c.Database.Source = SourceHTTP }, false},
		{"s3 without key", func(c *Config) {
			c.Database.Source = SourceS3
			c.Database.Bucket = "docs"
		}, false},
		{"s3", func(c *Config) {
			c.Database.Source = SourceS3
			c.Database.Bucket = "docs"
			c.Database.Key = "api.db"
		}, true},
		{"minio without endpoint", func(c *Config) {
			c.Database.Source = SourceMinio
			c.Database.Bucket = "docs"
			c.Database.Key = "api.db"
		}, false},
		{"limit above max", func(c *Config) { c.Search.MaxResults = 10 }, false},
		{"rate limit", func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.Burst = 0
		}, false},
		{"no snapshot interval", func(c *Config) { c.Analytics.SnapshotInterval = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
