// Package models defines the catalog data models for vodarr.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Episode is one indexed episode file. The same (series, number) pair may be
// present more than once when multiple files exist for it; each file is an
// independent playback source.
type Episode struct {
	SeriesID     int64           `gorm:"column:series_id;not null;index:idx_episodes_series_number" json:"series_id"`
	Number       int             `gorm:"column:number;not null;index:idx_episodes_series_number" json:"number"`
	Path         string          `gorm:"column:path;primaryKey" json:"path"`
	Metadata     json.RawMessage `gorm:"column:metadata;type:text" json:"metadata"`
	ModifiedTime time.Time       `gorm:"column:modified_time" json:"modified_time"`
}

// TableName returns the database table name for Episode.
func (Episode) TableName() string {
	return "episodes"
}

// Validate checks that the episode row is well formed.
func (e *Episode) Validate() error {
	if e.SeriesID <= 0 {
		return fmt.Errorf("series_id must be positive, got %d", e.SeriesID)
	}
	if e.Number <= 0 {
		return fmt.Errorf("number must be positive, got %d", e.Number)
	}
	if e.Path == "" {
		return fmt.Errorf("path must not be empty")
	}
	return nil
}

// Movie is one indexed movie file.
type Movie struct {
	MovieID      int64           `gorm:"column:movie_id;not null;index" json:"movie_id"`
	Path         string          `gorm:"column:path;primaryKey" json:"path"`
	Metadata     json.RawMessage `gorm:"column:metadata;type:text" json:"metadata"`
	ModifiedTime time.Time       `gorm:"column:modified_time" json:"modified_time"`
}

// TableName returns the database table name for Movie.
func (Movie) TableName() string {
	return "movies"
}

// Validate checks that the movie row is well formed.
func (m *Movie) Validate() error {
	if m.MovieID <= 0 {
		return fmt.Errorf("movie_id must be positive, got %d", m.MovieID)
	}
	if m.Path == "" {
		return fmt.Errorf("path must not be empty")
	}
	return nil
}

// SeriesLookup caches the mapping from a parsed file title to a series id so
// repeated scans do not repeat the resolution work.
type SeriesLookup struct {
	FileTitle string `gorm:"column:file_title;primaryKey" json:"file_title"`
	SeriesID  int64  `gorm:"column:series_id;not null" json:"series_id"`
}

// TableName returns the database table name for SeriesLookup.
func (SeriesLookup) TableName() string {
	return "series_lookups"
}

// MovieLookup caches the mapping from a parsed file title to a movie id.
type MovieLookup struct {
	FileTitle string `gorm:"column:file_title;primaryKey" json:"file_title"`
	MovieID   int64  `gorm:"column:movie_id;not null" json:"movie_id"`
}

// TableName returns the database table name for MovieLookup.
func (MovieLookup) TableName() string {
	return "movie_lookups"
}
