package repositories

import (
	"gorm.io/gorm"

	"github.com/anonto42/bookhive/backend/internal/models"
)

// FavoriteRepository defines the interface for book favorites
type FavoriteRepository interface {
	CreateFavorite(favorite *models.Favorite) error
	HasUserFavorited(bookID string, userID uint) (bool, error)
	DeleteFavorite(bookID string, userID uint) error
	GetFavoriteBookIDs(userID uint) ([]string, error)
}

type postgresFavoriteRepository struct {
	db *gorm.DB
}

func NewPostgresFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &postgresFavoriteRepository{db: db}
}

func (r *postgresFavoriteRepository) CreateFavorite(favorite *models.Favorite) error {
	return r.db.Create(favorite).Error
}

func (r *postgresFavoriteRepository) HasUserFavorited(bookID string, userID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Favorite{}).Where("book_id = ? AND user_id = ?", bookID, userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *postgresFavoriteRepository) DeleteFavorite(bookID string, userID uint) error {
	return r.db.Where("book_id = ? AND user_id = ?", bookID, userID).Delete(&models.Favorite{}).Error
}

func (r *postgresFavoriteRepository) GetFavoriteBookIDs(userID uint) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.Favorite{}).Where("user_id = ?", userID).Order("created_at DESC").Pluck("book_id", &ids).Error
	return ids, err
}
