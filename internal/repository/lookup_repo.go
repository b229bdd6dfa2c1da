package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vodarr/vodarr/internal/models"
)

// LookupRepository caches parsed-title to catalog-id resolutions between
// scans.
type LookupRepository interface {
	// GetSeriesID returns the cached series id for a file title, or 0 when
	// the title has not been resolved before.
	GetSeriesID(ctx context.Context, fileTitle string) (int64, error)
	SetSeriesID(ctx context.Context, fileTitle string, seriesID int64) error

	// GetMovieID returns the cached movie id for a file title, or 0 when
	// the title has not been resolved before.
	GetMovieID(ctx context.Context, fileTitle string) (int64, error)
	SetMovieID(ctx context.Context, fileTitle string, movieID int64) error
}

type lookupRepository struct {
	db *gorm.DB
}

// NewLookupRepository creates a new lookup cache repository.
func NewLookupRepository(db *gorm.DB) LookupRepository {
	return &lookupRepository{db: db}
}

func (r *lookupRepository) GetSeriesID(ctx context.Context, fileTitle string) (int64, error) {
	var lookup models.SeriesLookup
	err := r.db.WithContext(ctx).Where("file_title = ?", fileTitle).First(&lookup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return lookup.SeriesID, nil
}

func (r *lookupRepository) SetSeriesID(ctx context.Context, fileTitle string, seriesID int64) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_title"}},
		DoUpdates: clause.AssignmentColumns([]string{"series_id"}),
	}).Create(&models.SeriesLookup{FileTitle: fileTitle, SeriesID: seriesID}).Error
}

func (r *lookupRepository) GetMovieID(ctx context.Context, fileTitle string) (int64, error) {
	var lookup models.MovieLookup
	err := r.db.WithContext(ctx).Where("file_title = ?", fileTitle).First(&lookup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return lookup.MovieID, nil
}

func (r *lookupRepository) SetMovieID(ctx context.Context, fileTitle string, movieID int64) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_title"}},
		DoUpdates: clause.AssignmentColumns([]string{"movie_id"}),
	}).Create(&models.MovieLookup{FileTitle: fileTitle, MovieID: movieID}).Error
}
