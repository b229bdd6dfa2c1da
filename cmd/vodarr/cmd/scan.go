package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/database"
	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/repository"
	"github.com/vodarr/vodarr/internal/scanner"
	"github.com/vodarr/vodarr/internal/thumbnails"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the library roots once",
	Long: `Walk every configured library root, index new and changed media files
into the catalog, and remove rows whose files no longer exist.`,
	RunE: runScan,
}

var scanWatchCmd = &cobra.Command{
	Use:   "scan-watch",
	Short: "Scan the library roots and keep watching them",
	Long: `Run a full scan and then follow the library roots with a filesystem
watcher, indexing files as they appear and dropping rows as they vanish.
Runs until interrupted.`,
	RunE: runScanWatch,
}

var scanCleanupCmd = &cobra.Command{
	Use:   "scan-cleanup",
	Short: "Remove catalog rows whose files are gone",
	RunE:  runScanCleanup,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(scanWatchCmd)
	rootCmd.AddCommand(scanCleanupCmd)
}

// newScanner builds the scanner with its repositories, returning the cleanup
// to run when done.
func newScanner(cfg *config.Config, logger *slog.Logger) (*scanner.Scanner, func(), error) {
	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrating database: %w", err)
	}

	bins, err := ffmpeg.Discover(cfg.FFmpeg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	prober := ffmpeg.NewProber(bins.FFprobe).WithTimeout(cfg.FFmpeg.ProbeTimeout)
	var thumbs scanner.Thumbnailer
	if cfg.Library.ThumbnailsDir != "" {
		thumbs = thumbnails.NewGenerator(bins.FFmpeg, cfg.Library.ThumbnailsDir, logger)
	}

	episodes := repository.NewEpisodeRepository(db.DB)
	movies := repository.NewMovieRepository(db.DB)
	lookups := repository.NewLookupRepository(db.DB)

	sc := scanner.New(cfg, prober, scanner.NewLookupResolver(lookups, nil),
		episodes, movies, thumbs, logger)
	return sc, func() { db.Close() }, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	sc, cleanup, err := newScanner(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sc.ScanAll(ctx); err != nil {
		return fmt.Errorf("scanning library: %w", err)
	}
	if err := sc.Cleanup(ctx); err != nil {
		return fmt.Errorf("cleaning catalog: %w", err)
	}
	return nil
}

func runScanWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	sc, cleanup, err := newScanner(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sc.ScanAll(ctx); err != nil {
		return fmt.Errorf("scanning library: %w", err)
	}

	watcher := scanner.NewWatcher(sc, logger)
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watching library: %w", err)
	}
	return nil
}

func runScanCleanup(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	sc, cleanup, err := newScanner(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sc.Cleanup(ctx); err != nil {
		return fmt.Errorf("cleaning catalog: %w", err)
	}
	return nil
}
