// Package config provides configuration management for vodarr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort       = 8003
	defaultServerTimeout    = 30 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultMaxOpenConns     = 6
	defaultMaxIdleConns     = 3
	defaultSessionTimeout   = 10 * time.Second
	defaultStartupTimeout   = 60 * time.Second
	defaultDebugStartup     = 20 * time.Second
	defaultSegmentWait      = 10 * time.Second
	defaultSegmentPoll      = 100 * time.Millisecond
	defaultRestartThreshold = 7
	defaultProbeTimeout     = 30 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `mapstructure:"debug"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Library   LibraryConfig   `mapstructure:"library"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// AuthConfig holds play-id token verification configuration.
type AuthConfig struct {
	// Secret is the shared HS256 key used to verify play-id tokens.
	Secret string `mapstructure:"secret"`
}

// ScanRoot describes one library directory to index.
type ScanRoot struct {
	Type           string `mapstructure:"type"` // series, movies
	Path           string `mapstructure:"path"`
	MakeThumbnails bool   `mapstructure:"make_thumbnails"`
}

// LibraryConfig holds catalog scanning configuration.
type LibraryConfig struct {
	Roots         []ScanRoot `mapstructure:"roots"`
	MediaTypes    []string   `mapstructure:"media_types"`
	SubtitleTypes []string   `mapstructure:"subtitle_types"`
	// RescanCron is an optional cron expression for scheduled full rescans
	// while serving (empty = disabled).
	RescanCron    string `mapstructure:"rescan_cron"`
	ThumbnailsDir string `mapstructure:"thumbnails_dir"`
}

// TranscodeConfig holds transcode session configuration.
type TranscodeConfig struct {
	// Dir is the scratch root; each session owns {dir}/{session id}.
	Dir            string        `mapstructure:"dir"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	// StartupTimeout bounds the wait for the encoder's first playlist entry.
	StartupTimeout      time.Duration `mapstructure:"startup_timeout"`
	DebugStartupTimeout time.Duration `mapstructure:"debug_startup_timeout"`
	SegmentWaitTimeout  time.Duration `mapstructure:"segment_wait_timeout"`
	SegmentPollInterval time.Duration `mapstructure:"segment_poll_interval"`
	// RestartThreshold is how many segments past the last produced one a
	// request may be before the encoder is restarted at that position.
	RestartThreshold int `mapstructure:"restart_threshold"`
}

// FFmpegConfig holds encoder and probe binary configuration.
type FFmpegConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`  // empty = look up in PATH
	FFprobePath string `mapstructure:"ffprobe_path"` // empty = look up in PATH
	LogLevel    string `mapstructure:"loglevel"`     // FFREPORT level, numeric string
	Preset      string `mapstructure:"preset"`
	// HWAccel selects the accelerator family: "", "qsv" or "vaapi".
	HWAccelEnabled   bool          `mapstructure:"hwaccel_enabled"`
	HWAccel          string        `mapstructure:"hwaccel"`
	HWAccelDevice    string        `mapstructure:"hwaccel_device"`
	HWAccelLowPower  bool          `mapstructure:"hwaccel_low_power"`
	TonemapEnabled   bool          `mapstructure:"tonemap_enabled"`
	ExtractKeyframes bool          `mapstructure:"extract_keyframes"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with VODARR_ and use underscores for
// nesting. Example: VODARR_SERVER_PORT=8003.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vodarr")
		v.AddConfigPath("$HOME/.vodarr")
	}

	v.SetEnvPrefix("VODARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "vodarr.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)

	v.SetDefault("library.media_types", []string{"mp4", "mkv", "avi", "mpg", "m4v", "m2ts"})
	v.SetDefault("library.subtitle_types", []string{"srt", "vtt", "ass"})

	v.SetDefault("transcode.dir", filepath.Join(os.TempDir(), "vodarr"))
	v.SetDefault("transcode.session_timeout", defaultSessionTimeout)
	v.SetDefault("transcode.startup_timeout", defaultStartupTimeout)
	v.SetDefault("transcode.debug_startup_timeout", defaultDebugStartup)
	v.SetDefault("transcode.segment_wait_timeout", defaultSegmentWait)
	v.SetDefault("transcode.segment_poll_interval", defaultSegmentPoll)
	v.SetDefault("transcode.restart_threshold", defaultRestartThreshold)

	v.SetDefault("ffmpeg.loglevel", "40")
	v.SetDefault("ffmpeg.preset", "veryfast")
	v.SetDefault("ffmpeg.hwaccel_enabled", false)
	v.SetDefault("ffmpeg.hwaccel", "qsv")
	v.SetDefault("ffmpeg.hwaccel_device", "/dev/dri/renderD128")
	v.SetDefault("ffmpeg.hwaccel_low_power", true)
	v.SetDefault("ffmpeg.tonemap_enabled", true)
	v.SetDefault("ffmpeg.extract_keyframes", true)
	v.SetDefault("ffmpeg.probe_timeout", defaultProbeTimeout)
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres or mysql, got %q", c.Database.Driver)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	switch c.FFmpeg.HWAccel {
	case "", "qsv", "vaapi":
	default:
		return fmt.Errorf("ffmpeg.hwaccel must be qsv or vaapi, got %q", c.FFmpeg.HWAccel)
	}

	for i, root := range c.Library.Roots {
		switch root.Type {
		case "series", "movies":
		default:
			return fmt.Errorf("library.roots[%d].type must be series or movies, got %q", i, root.Type)
		}
		if root.Path == "" {
			return fmt.Errorf("library.roots[%d].path must not be empty", i)
		}
	}

	if c.Transcode.SessionTimeout <= 0 {
		return fmt.Errorf("transcode.session_timeout must be positive")
	}
	if c.Transcode.RestartThreshold < 0 {
		return fmt.Errorf("transcode.restart_threshold must not be negative")
	}

	return nil
}

// StartupTimeout returns the encoder readiness timeout, honouring debug mode.
func (c *Config) StartupTimeout() time.Duration {
	if c.Debug {
		return c.Transcode.DebugStartupTimeout
	}
	return c.Transcode.StartupTimeout
}
