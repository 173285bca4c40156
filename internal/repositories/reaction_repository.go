package repositories

import (
	"gorm.io/gorm"

	"github.com/anonto42/bookhive/backend/internal/models"
)

// ReactionRepository defines the interface for review reactions
type ReactionRepository interface {
	CreateReaction(reaction *models.Reaction) error
	HasUserReacted(reviewID, userID uint) (bool, error)
	DeleteReaction(reviewID, userID uint) error
}

type postgresReactionRepository struct {
	db *gorm.DB
}

func NewPostgresReactionRepository(db *gorm.DB) ReactionRepository {
	return &postgresReactionRepository{db: db}
}

func (r *postgresReactionRepository) CreateReaction(reaction *models.Reaction) error {
	return r.db.Create(reaction).Error
}

func (r *postgresReactionRepository) HasUserReacted(reviewID, userID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Reaction{}).Where("review_id = ? AND user_id = ?", reviewID, userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *postgresReactionRepository) DeleteReaction(reviewID, userID uint) error {
	return r.db.Where("review_id = ? AND user_id = ?", reviewID, userID).Delete(&models.Reaction{}).Error
}
