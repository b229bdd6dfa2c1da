// Package repository provides data access for the vodarr catalog.
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vodarr/vodarr/internal/models"
)

// EpisodeRepository provides access to indexed episode files.
type EpisodeRepository interface {
	// Upsert inserts the episode or updates the existing row for its path.
	Upsert(ctx context.Context, episode *models.Episode) error

	// GetBySeriesNumber returns every file indexed for the given episode,
	// ordered by path. An empty slice means the episode is unknown.
	GetBySeriesNumber(ctx context.Context, seriesID int64, number int) ([]*models.Episode, error)

	// GetByPath returns the episode row for a path, or nil if not indexed.
	GetByPath(ctx context.Context, path string) (*models.Episode, error)

	// ListPaths returns all indexed episode paths.
	ListPaths(ctx context.Context) ([]string, error)

	// DeleteByPath removes the row for a path. Deleting an unknown path is
	// not an error.
	DeleteByPath(ctx context.Context, path string) error
}

type episodeRepository struct {
	db *gorm.DB
}

// NewEpisodeRepository creates a new episode repository.
func NewEpisodeRepository(db *gorm.DB) EpisodeRepository {
	return &episodeRepository{db: db}
}

func (r *episodeRepository) Upsert(ctx context.Context, episode *models.Episode) error {
	if err := episode.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"series_id", "number", "metadata", "modified_time"}),
	}).Create(episode).Error
}

func (r *episodeRepository) GetBySeriesNumber(ctx context.Context, seriesID int64, number int) ([]*models.Episode, error) {
	var episodes []*models.Episode
	err := r.db.WithContext(ctx).
		Where("series_id = ? AND number = ?", seriesID, number).
		Order("path").
		Find(&episodes).Error
	if err != nil {
		return nil, err
	}
	return episodes, nil
}

func (r *episodeRepository) GetByPath(ctx context.Context, path string) (*models.Episode, error) {
	var episode models.Episode
	err := r.db.WithContext(ctx).Where("path = ?", path).First(&episode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &episode, nil
}

func (r *episodeRepository) ListPaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).Model(&models.Episode{}).Pluck("path", &paths).Error
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (r *episodeRepository) DeleteByPath(ctx context.Context, path string) error {
	return r.db.WithContext(ctx).Where("path = ?", path).Delete(&models.Episode{}).Error
}
