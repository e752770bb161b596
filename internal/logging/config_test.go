package logging

import (
	"testing"

	"github.com/fyrsmithlabs/askcatalog/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfigFrom(t *testing.T) {
	cfg, err := ConfigFrom(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.False(t, cfg.Sampling.Enabled)

	cfg, err = ConfigFrom(config.LoggingConfig{})
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.True(t, cfg.Sampling.Enabled)
}

func TestConfigFrom_Invalid(t *testing.T) {
	_, err := ConfigFrom(config.LoggingConfig{Level: "loud"})
	require.Error(t, err)

	_, err = ConfigFrom(config.LoggingConfig{Format: "xml"})
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad format", func(c *Config) { c.Format = "text" }, false},
		{"no outputs", func(c *Config) { c.Output.Stdout = false }, false},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }, false},
		{"negative skip", func(c *Config) { c.Caller.Skip = -1 }, false},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"["} }, false},
		{"empty field key", func(c *Config) { c.Fields[""] = "x" }, false},
		{"empty field value", func(c *Config) { c.Fields["env"] = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
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

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)

	lvl, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = LevelFromString("verbose")
	assert.Error(t, err)
}
