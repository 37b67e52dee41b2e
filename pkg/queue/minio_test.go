package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Endpoint:  "localhost:9000",
		AccessKey: "a",
		SecretKey: "b",
		Region:    "us-east-1",
		Bucket:    "optibot-jobs",
		Queue:     "deferred",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }},
		{"scheme in endpoint", func(c *Config) { c.Endpoint = "http://localhost:9000" }},
		{"missing access key", func(c *Config) { c.AccessKey = "" }},
		{"missing secret key", func(c *Config) { c.SecretKey = "" }},
		{"missing bucket", func(c *Config) { c.Bucket = "" }},
		{"missing queue", func(c *Config) { c.Queue = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigured(t *testing.T) {
	assert.False(t, Config{}.Configured())
	assert.False(t, Config{Endpoint: "  "}.Configured())
	assert.True(t, Config{Endpoint: "localhost:9000"}.Configured())
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("OPTIBOT_QUEUE_ENDPOINT", "store.internal:9000")
	t.Setenv("OPTIBOT_QUEUE_ACCESS_KEY", "ak")
	t.Setenv("OPTIBOT_QUEUE_SECRET_KEY", "sk")

	cfg := ConfigFromEnv()
	assert.True(t, cfg.Configured())
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "optibot-jobs", cfg.Bucket)
	assert.Equal(t, "deferred", cfg.Queue)
	assert.NoError(t, cfg.Validate())
}

func TestJobRoundTrip(t *testing.T) {
	job := Job{
		CloneURL:   "https://github.com/acme/site.git",
		Owner:      "acme",
		Name:       "site",
		EnqueuedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(job)
	require.NoError(t, err)

	var decoded Job
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, job, decoded)
}
