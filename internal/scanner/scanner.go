package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/repository"
)

// scanConcurrency bounds parallel ffprobe runs during a scan.
const scanConcurrency = 4

// MediaProber is the probe surface the scanner needs; *ffmpeg.Prober
// satisfies it.
type MediaProber interface {
	Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
	ExtractKeyframes(ctx context.Context, path string) ([]float64, error)
}

// Scanner walks the configured library roots and keeps the catalog tables in
// sync with the files on disk.
type Scanner struct {
	cfg      *config.Config
	prober   MediaProber
	resolver Resolver
	episodes repository.EpisodeRepository
	movies   repository.MovieRepository
	log      *slog.Logger

	thumbs Thumbnailer
}

// Thumbnailer generates the thumbnail tree for one media file. Optional.
type Thumbnailer interface {
	Generate(ctx context.Context, key, path string) error
}

// New creates a scanner. thumbs may be nil to disable thumbnail generation.
func New(
	cfg *config.Config,
	prober MediaProber,
	resolver Resolver,
	episodes repository.EpisodeRepository,
	movies repository.MovieRepository,
	thumbs Thumbnailer,
	log *slog.Logger,
) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{
		cfg:      cfg,
		prober:   prober,
		resolver: resolver,
		episodes: episodes,
		movies:   movies,
		thumbs:   thumbs,
		log:      log,
	}
}

// ScanAll scans every configured root.
func (s *Scanner) ScanAll(ctx context.Context) error {
	for _, root := range s.cfg.Library.Roots {
		if err := s.ScanRoot(ctx, root); err != nil {
			return err
		}
	}
	return nil
}

// ScanRoot scans one library root.
func (s *Scanner) ScanRoot(ctx context.Context, root config.ScanRoot) error {
	s.log.Info("scanning library root",
		slog.String("type", root.Type),
		slog.String("path", root.Path),
	)

	files, err := s.mediaFiles(root.Path)
	if err != nil {
		return fmt.Errorf("walking %s: %w", root.Path, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for _, path := range files {
		path := path
		g.Go(func() error {
			if err := s.SaveFile(ctx, root.Type, path); err != nil {
				s.log.Error("failed to index file",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
			}
			return ctx.Err()
		})
	}
	return g.Wait()
}

// mediaFiles returns every media file under root, filtered by the configured
// extensions. macOS metadata files ("._*") are skipped.
func (s *Scanner) mediaFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if s.isMediaFile(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (s *Scanner) isMediaFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, "._") {
		return false
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}
	for _, t := range s.cfg.Library.MediaTypes {
		if ext == strings.ToLower(t) {
			return true
		}
	}
	return false
}

// SaveFile indexes one file: parse, resolve, probe and upsert. Files that
// parse but resolve to no catalog id are skipped, not errors.
func (s *Scanner) SaveFile(ctx context.Context, rootType, path string) error {
	switch rootType {
	case "series":
		return s.saveEpisode(ctx, path)
	case "movies":
		return s.saveMovie(ctx, path)
	}
	return fmt.Errorf("unknown scan type %q", rootType)
}

func (s *Scanner) saveEpisode(ctx context.Context, path string) error {
	parsed := ParseEpisode(path)
	if parsed == nil {
		s.log.Debug("filename did not match any episode pattern",
			slog.String("path", path))
		return nil
	}

	existing, err := s.episodes.GetByPath(ctx, path)
	if err != nil {
		return err
	}

	modified, err := fileModifiedTime(path)
	if err != nil {
		return err
	}
	if existing != nil && existing.ModifiedTime.Equal(modified) && len(existing.Metadata) > 0 {
		s.log.Debug("nothing changed", slog.String("path", path))
		return nil
	}

	seriesID := int64(0)
	number := 0
	if existing != nil {
		// A known path keeps its identity; only the metadata refreshes.
		seriesID = existing.SeriesID
		number = existing.Number
	} else {
		seriesID, err = s.resolver.SeriesID(ctx, parsed.Title)
		if err != nil {
			return err
		}
		if seriesID == 0 {
			s.log.Info("no series found for title",
				slog.String("title", parsed.Title),
				slog.String("path", path),
			)
			return nil
		}
		number = parsed.Number
		if number == 0 {
			number, err = s.resolver.EpisodeNumber(ctx, seriesID, parsed)
			if err != nil {
				return err
			}
		}
		if number == 0 {
			s.log.Info("no episode number resolved",
				slog.Int64("series_id", seriesID),
				slog.String("path", path),
			)
			return nil
		}
	}

	metadata, err := s.probeMetadata(ctx, path)
	if err != nil {
		return err
	}

	err = s.episodes.Upsert(ctx, &models.Episode{
		SeriesID:     seriesID,
		Number:       number,
		Path:         path,
		Metadata:     metadata,
		ModifiedTime: modified,
	})
	if err != nil {
		return err
	}
	s.log.Info("episode indexed",
		slog.Int64("series_id", seriesID),
		slog.Int("number", number),
		slog.String("path", path),
	)

	s.makeThumbnails(ctx, fmt.Sprintf("episode-%d-%d", seriesID, number), path)
	return nil
}

func (s *Scanner) saveMovie(ctx context.Context, path string) error {
	title := ParseMovieTitle(path)
	if title == "" {
		s.log.Debug("filename does not look like a movie",
			slog.String("path", path))
		return nil
	}

	existing, err := s.movies.GetByPath(ctx, path)
	if err != nil {
		return err
	}

	modified, err := fileModifiedTime(path)
	if err != nil {
		return err
	}
	if existing != nil && existing.ModifiedTime.Equal(modified) && len(existing.Metadata) > 0 {
		s.log.Debug("nothing changed", slog.String("path", path))
		return nil
	}

	movieID := int64(0)
	if existing != nil {
		movieID = existing.MovieID
	} else {
		movieID, err = s.resolver.MovieID(ctx, title)
		if err != nil {
			return err
		}
		if movieID == 0 {
			s.log.Info("no movie found for title",
				slog.String("title", title),
				slog.String("path", path),
			)
			return nil
		}
	}

	metadata, err := s.probeMetadata(ctx, path)
	if err != nil {
		return err
	}

	err = s.movies.Upsert(ctx, &models.Movie{
		MovieID:      movieID,
		Path:         path,
		Metadata:     metadata,
		ModifiedTime: modified,
	})
	if err != nil {
		return err
	}
	s.log.Info("movie indexed",
		slog.Int64("movie_id", movieID),
		slog.String("path", path),
	)

	s.makeThumbnails(ctx, fmt.Sprintf("movie-%d", movieID), path)
	return nil
}

// DeleteFile removes the catalog row for a path, for both root types.
func (s *Scanner) DeleteFile(ctx context.Context, rootType, path string) error {
	switch rootType {
	case "series":
		return s.episodes.DeleteByPath(ctx, path)
	case "movies":
		return s.movies.DeleteByPath(ctx, path)
	}
	return fmt.Errorf("unknown scan type %q", rootType)
}

// probeMetadata runs ffprobe and serializes the result for storage. Matroska
// has no usable seek index, so the keyframe pass runs for .mkv files when
// enabled.
func (s *Scanner) probeMetadata(ctx context.Context, path string) (json.RawMessage, error) {
	meta, err := s.prober.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}

	if s.cfg.FFmpeg.ExtractKeyframes && strings.EqualFold(filepath.Ext(path), ".mkv") {
		keyframes, err := s.prober.ExtractKeyframes(ctx, path)
		if err != nil {
			s.log.Warn("keyframe extraction failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		} else {
			meta.Keyframes = keyframes
		}
	}

	return json.Marshal(meta)
}

func (s *Scanner) makeThumbnails(ctx context.Context, key, path string) {
	if s.thumbs == nil {
		return
	}
	if err := s.thumbs.Generate(ctx, key, path); err != nil {
		s.log.Error("thumbnail generation failed",
			slog.String("key", key),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// Cleanup deletes catalog rows whose files no longer exist on disk.
func (s *Scanner) Cleanup(ctx context.Context) error {
	s.log.Info("cleanup started")

	paths, err := s.episodes.ListPaths(ctx)
	if err != nil {
		return err
	}
	deleted := 0
	for _, path := range paths {
		if fileExists(path) {
			continue
		}
		if err := s.episodes.DeleteByPath(ctx, path); err != nil {
			return err
		}
		deleted++
	}
	s.log.Info("stale episodes removed", slog.Int("count", deleted))

	paths, err = s.movies.ListPaths(ctx)
	if err != nil {
		return err
	}
	deleted = 0
	for _, path := range paths {
		if fileExists(path) {
			continue
		}
		if err := s.movies.DeleteByPath(ctx, path); err != nil {
			return err
		}
		deleted++
	}
	s.log.Info("stale movies removed", slog.Int("count", deleted))
	return nil
}

// fileModifiedTime returns the file mtime truncated to whole seconds in UTC,
// so the value round-trips through the database unchanged.
func fileModifiedTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime().Truncate(time.Second).UTC(), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
