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

	assert.Equal(t, 8003, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10*time.Second, cfg.Transcode.SessionTimeout)
	assert.Equal(t, 60*time.Second, cfg.Transcode.StartupTimeout)
	assert.Equal(t, 7, cfg.Transcode.RestartThreshold)
	assert.True(t, cfg.FFmpeg.TonemapEnabled)
	assert.Contains(t, cfg.Library.MediaTypes, "mkv")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  port: 9000
transcode:
  session_timeout: 30s
library:
  roots:
    - type: series
      path: /media/series
ffmpeg:
  hwaccel_enabled: true
  hwaccel: vaapi
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Transcode.SessionTimeout)
	require.Len(t, cfg.Library.Roots, 1)
	assert.Equal(t, "series", cfg.Library.Roots[0].Type)
	assert.Equal(t, "vaapi", cfg.FFmpeg.HWAccel)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }},
		{"invalid driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"invalid hwaccel", func(c *Config) { c.FFmpeg.HWAccel = "cuda" }},
		{"invalid root type", func(c *Config) {
			c.Library.Roots = []ScanRoot{{Type: "music", Path: "/x"}}
		}},
		{"empty root path", func(c *Config) {
			c.Library.Roots = []ScanRoot{{Type: "series", Path: ""}}
		}},
		{"zero session timeout", func(c *Config) { c.Transcode.SessionTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStartupTimeoutDebugMode(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.StartupTimeout())
	cfg.Debug = true
	assert.Equal(t, 20*time.Second, cfg.StartupTimeout())
}
