package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vodarr/vodarr/internal/database"
	"github.com/vodarr/vodarr/internal/ffmpeg"
	internalhttp "github.com/vodarr/vodarr/internal/http"
	"github.com/vodarr/vodarr/internal/http/handlers"
	"github.com/vodarr/vodarr/internal/repository"
	"github.com/vodarr/vodarr/internal/scanner"
	"github.com/vodarr/vodarr/internal/startup"
	"github.com/vodarr/vodarr/internal/thumbnails"
	"github.com/vodarr/vodarr/internal/transcode"
	"github.com/vodarr/vodarr/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the play server",
	Long: `Start the vodarr HTTP server.

The server answers play-id lookups, negotiates direct play against client
capabilities, serves byte-range downloads of source files, and transcodes
to HLS on demand. When library roots are configured it also follows them
with a filesystem watcher and an optional scheduled rescan.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "address to bind to")
	serveCmd.Flags().Int("port", 0, "port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	if v, ok := stringFlag(cmd.Flags(), "host"); ok {
		cfg.Server.Host = v
	}
	if v, ok := intFlag(cmd.Flags(), "port"); ok {
		cfg.Server.Port = v
	}

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	// Sessions never survive a restart; whatever is under the scratch root
	// belongs to a dead process.
	if _, err := startup.CleanupScratchDirs(cfg.Transcode.Dir, logger); err != nil {
		logger.Warn("scratch cleanup failed", slog.String("error", err.Error()))
	}
	if err := os.MkdirAll(cfg.Transcode.Dir, 0o755); err != nil {
		return fmt.Errorf("creating scratch root: %w", err)
	}

	bins, err := ffmpeg.Discover(cfg.FFmpeg)
	if err != nil {
		return err
	}

	engine := transcode.NewEngine(cfg, bins, logger)
	defer engine.Shutdown()

	episodes := repository.NewEpisodeRepository(db.DB)
	movies := repository.NewMovieRepository(db.DB)
	lookups := repository.NewLookupRepository(db.DB)
	catalog := handlers.NewCatalog(cfg.Auth.Secret, episodes, movies)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.Library.Roots) > 0 {
		prober := ffmpeg.NewProber(bins.FFprobe).WithTimeout(cfg.FFmpeg.ProbeTimeout)
		var thumbs scanner.Thumbnailer
		if cfg.Library.ThumbnailsDir != "" {
			thumbs = thumbnails.NewGenerator(bins.FFmpeg, cfg.Library.ThumbnailsDir, logger)
		}
		sc := scanner.New(cfg, prober, scanner.NewLookupResolver(lookups, nil),
			episodes, movies, thumbs, logger)

		watcher := scanner.NewWatcher(sc, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("library watcher stopped", slog.String("error", err.Error()))
			}
		}()

		cronJob, err := scanner.Schedule(ctx, sc, logger)
		if err != nil {
			return fmt.Errorf("installing rescan schedule: %w", err)
		}
		if cronJob != nil {
			defer cronJob.Stop()
		}
	}

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	handlers.NewHealthHandler(version.Version).Register(server.API())
	handlers.NewSourcesHandler(catalog).Register(server.API())
	handlers.NewSessionHandler(engine).Register(server.API())

	handlers.NewStreamHandler(catalog, engine, cfg.FFmpeg, logger).Routes(server.Router())
	handlers.NewSourceHandler(catalog, logger).Routes(server.Router())
	handlers.NewSubtitleHandler(catalog, bins.FFmpeg, logger).Routes(server.Router())
	handlers.MountStatic(server.Router(), cfg.Transcode.Dir, cfg.Library.ThumbnailsDir)

	return server.ListenAndServe(ctx)
}
