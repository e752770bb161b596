package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Completion.BaseURL = "http://gateway.local"
	cfg.Completion.APIKey = "key"
	cfg.Completion.Model = "model"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "invalid server port"},
		{name: "no catalog files", mutate: func(c *Config) { c.Catalog.Files = nil }, wantErr: "catalog.files"},
		{name: "http source without url", mutate: func(c *Config) { c.Catalog.Source = "http" }, wantErr: "catalog.base_url"},
		{name: "unknown catalog source", mutate: func(c *Config) { c.Catalog.Source = "ftp" }, wantErr: "unknown catalog source"},
		{name: "unknown index backend", mutate: func(c *Config) { c.Index.Backend = "faiss" }, wantErr: "unknown index backend"},
		{name: "negative build timeout", mutate: func(c *Config) { c.Index.BuildTimeout = Duration(-time.Second) }, wantErr: "index.build_timeout"},
		{name: "openai embeddings need key", mutate: func(c *Config) { c.Embeddings.Provider = "openai" }, wantErr: "embeddings.api_key"},
		{name: "unknown completion provider", mutate: func(c *Config) { c.Completion.Provider = "palm" }, wantErr: "unknown completion provider"},
		{name: "gateway needs base url", mutate: func(c *Config) { c.Completion.BaseURL = "" }, wantErr: "completion.base_url"},
		{name: "missing model", mutate: func(c *Config) { c.Completion.Model = "" }, wantErr: "completion.model"},
		{name: "zero window", mutate: func(c *Config) { c.Memory.WindowSize = 0 }, wantErr: "window_size"},
		{name: "postgres needs dsn", mutate: func(c *Config) { c.Memory.Backend = "postgres" }, wantErr: "memory.dsn"},
		{name: "unknown memory backend", mutate: func(c *Config) { c.Memory.Backend = "redis" }, wantErr: "unknown memory backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecretNeverPrinted(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "hunter2")
	assert.Equal(t, "hunter2", s.Value())

	b, err := json.Marshal(struct{ Key Secret }{Key: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Key":"[REDACTED]"}`, string(b))

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
