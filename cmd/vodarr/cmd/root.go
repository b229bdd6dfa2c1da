// Package cmd implements the CLI commands for vodarr.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/observability"
	"github.com/vodarr/vodarr/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "vodarr",
	Short:   "Per-host media play server",
	Version: version.Version,
	Long: `vodarr indexes the media files on this host, keeps probed metadata for
each of them, and streams them to heterogeneous clients either as direct
byte-range downloads or as adaptively transcoded HLS.

It is driven by a catalog backend that mints signed play ids; vodarr itself
carries no user accounts.`,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., $HOME, /etc/vodarr)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

// setup loads the configuration and installs the default logger. Every
// subcommand that touches the library or the server goes through here.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	// CLI flags beat the config file and environment, but only when given.
	if v, ok := stringFlag(rootCmd.PersistentFlags(), "log-level"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := stringFlag(rootCmd.PersistentFlags(), "log-format"); ok {
		cfg.Logging.Format = v
	}

	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)
	return cfg, logger, nil
}

// stringFlag returns a flag's value only when the user set it explicitly,
// so flag defaults never shadow config file or environment values.
func stringFlag(fs *pflag.FlagSet, name string) (string, bool) {
	if !fs.Changed(name) {
		return "", false
	}
	v, _ := fs.GetString(name)
	return v, true
}

func intFlag(fs *pflag.FlagSet, name string) (int, bool) {
	if !fs.Changed(name) {
		return 0, false
	}
	v, _ := fs.GetInt(name)
	return v, true
}
