package scanner

import (
	"context"

	"github.com/vodarr/vodarr/internal/repository"
)

// Resolver maps parsed file titles to catalog ids and parsed episode
// identifications to episode numbers. A zero id or number means the title
// could not be resolved; the file is then skipped.
type Resolver interface {
	SeriesID(ctx context.Context, fileTitle string) (int64, error)
	MovieID(ctx context.Context, fileTitle string) (int64, error)

	// EpisodeNumber resolves the episode number for a season/episode or air
	// date identification. Not called when the filename carried an absolute
	// number.
	EpisodeNumber(ctx context.Context, seriesID int64, parsed *ParsedEpisode) (int, error)
}

// LookupResolver resolves through the local lookup tables, delegating cache
// misses to an optional backend and caching its answers. Without a backend
// the lookup tables are the whole source of truth.
type LookupResolver struct {
	lookups repository.LookupRepository
	backend Resolver
}

// NewLookupResolver creates a resolver over the lookup tables. backend may
// be nil.
func NewLookupResolver(lookups repository.LookupRepository, backend Resolver) *LookupResolver {
	return &LookupResolver{lookups: lookups, backend: backend}
}

func (r *LookupResolver) SeriesID(ctx context.Context, fileTitle string) (int64, error) {
	id, err := r.lookups.GetSeriesID(ctx, fileTitle)
	if err != nil || id > 0 {
		return id, err
	}
	if r.backend == nil {
		return 0, nil
	}
	id, err = r.backend.SeriesID(ctx, fileTitle)
	if err != nil || id == 0 {
		return 0, err
	}
	if err := r.lookups.SetSeriesID(ctx, fileTitle, id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *LookupResolver) MovieID(ctx context.Context, fileTitle string) (int64, error) {
	id, err := r.lookups.GetMovieID(ctx, fileTitle)
	if err != nil || id > 0 {
		return id, err
	}
	if r.backend == nil {
		return 0, nil
	}
	id, err = r.backend.MovieID(ctx, fileTitle)
	if err != nil || id == 0 {
		return 0, err
	}
	if err := r.lookups.SetMovieID(ctx, fileTitle, id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *LookupResolver) EpisodeNumber(ctx context.Context, seriesID int64, parsed *ParsedEpisode) (int, error) {
	if r.backend == nil {
		return 0, nil
	}
	return r.backend.EpisodeNumber(ctx, seriesID, parsed)
}
