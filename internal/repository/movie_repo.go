package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vodarr/vodarr/internal/models"
)

// MovieRepository provides access to indexed movie files.
type MovieRepository interface {
	Upsert(ctx context.Context, movie *models.Movie) error

	// GetByMovieID returns every file indexed for the movie, ordered by
	// path. An empty slice means the movie is unknown.
	GetByMovieID(ctx context.Context, movieID int64) ([]*models.Movie, error)

	GetByPath(ctx context.Context, path string) (*models.Movie, error)
	ListPaths(ctx context.Context) ([]string, error)
	DeleteByPath(ctx context.Context, path string) error
}

type movieRepository struct {
	db *gorm.DB
}

// NewMovieRepository creates a new movie repository.
func NewMovieRepository(db *gorm.DB) MovieRepository {
	return &movieRepository{db: db}
}

func (r *movieRepository) Upsert(ctx context.Context, movie *models.Movie) error {
	if err := movie.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"movie_id", "metadata", "modified_time"}),
	}).Create(movie).Error
}

func (r *movieRepository) GetByMovieID(ctx context.Context, movieID int64) ([]*models.Movie, error) {
	var movies []*models.Movie
	err := r.db.WithContext(ctx).
		Where("movie_id = ?", movieID).
		Order("path").
		Find(&movies).Error
	if err != nil {
		return nil, err
	}
	return movies, nil
}

func (r *movieRepository) GetByPath(ctx context.Context, path string) (*models.Movie, error) {
	var movie models.Movie
	err := r.db.WithContext(ctx).Where("path = ?", path).First(&movie).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

func (r *movieRepository) ListPaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).Model(&models.Movie{}).Pluck("path", &paths).Error
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (r *movieRepository) DeleteByPath(ctx context.Context, path string) error {
	return r.db.WithContext(ctx).Where("path = ?", path).Delete(&models.Movie{}).Error
}
