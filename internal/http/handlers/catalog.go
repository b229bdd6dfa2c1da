// Package handlers provides the HTTP API handlers for vodarr.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/playid"
	"github.com/vodarr/vodarr/internal/repository"
	"github.com/vodarr/vodarr/internal/transcode"
)

// Catalog resolves play ids to probed source metadata. A play id names one
// episode or movie; the catalog may hold several files for it (different
// rips), ordered by path so source indexes are stable across requests.
type Catalog struct {
	verifier *playid.Verifier
	episodes repository.EpisodeRepository
	movies   repository.MovieRepository
}

// NewCatalog creates a catalog resolver verifying play ids with secret.
func NewCatalog(secret string, episodes repository.EpisodeRepository, movies repository.MovieRepository) *Catalog {
	return &Catalog{
		verifier: playid.NewVerifier(secret),
		episodes: episodes,
		movies:   movies,
	}
}

// Sources returns the probed metadata for every file the play id resolves
// to. Rows without metadata are skipped. An empty result is not an error
// here; callers decide between 404 and an empty list.
func (c *Catalog) Sources(ctx context.Context, playID string) ([]*ffmpeg.ProbeResult, error) {
	claims, err := c.verifier.Verify(playID)
	if err != nil {
		return nil, err
	}

	var metadata []json.RawMessage
	switch claims.Type {
	case playid.TypeSeries:
		episodes, err := c.episodes.GetBySeriesNumber(ctx, claims.SeriesID, claims.Number)
		if err != nil {
			return nil, fmt.Errorf("loading episode sources: %w", err)
		}
		for _, ep := range episodes {
			metadata = append(metadata, ep.Metadata)
		}
	case playid.TypeMovie:
		movies, err := c.movies.GetByMovieID(ctx, claims.MovieID)
		if err != nil {
			return nil, fmt.Errorf("loading movie sources: %w", err)
		}
		for _, m := range movies {
			metadata = append(metadata, m.Metadata)
		}
	}

	return decodeMetadata(metadata)
}

// Source returns the metadata for one source index, or ErrNoMetadata when
// the play id has no catalog entry or the index is out of range.
func (c *Catalog) Source(ctx context.Context, playID string, index int) (*ffmpeg.ProbeResult, error) {
	sources, err := c.Sources(ctx, playID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(sources) {
		return nil, transcode.ErrNoMetadata
	}
	return sources[index], nil
}

func decodeMetadata(rows []json.RawMessage) ([]*ffmpeg.ProbeResult, error) {
	var out []*ffmpeg.ProbeResult
	for _, raw := range rows {
		if len(raw) == 0 {
			continue
		}
		meta := &ffmpeg.ProbeResult{}
		if err := json.Unmarshal(raw, meta); err != nil {
			return nil, fmt.Errorf("decoding source metadata: %w", err)
		}
		out = append(out, meta)
	}
	return out, nil
}
