package repositories

import (
	"time"

	"gorm.io/gorm"

	"github.com/anonto42/bookhive/backend/internal/models"
)

// ReviewSort selects the ordering for top-level review listings
type ReviewSort string

const (
	ReviewSortNewest ReviewSort = "newest"
	ReviewSortOldest ReviewSort = "oldest"
)

// ReviewRepository defines the interface for review data operations
type ReviewRepository interface {
	CreateReview(review *models.Review) error
	GetReviewByID(id uint) (*models.Review, error)
	GetVisibleByBookID(bookID string, sort ReviewSort, page, limit int) ([]models.Review, int64, error)
	GetRepliesByParentID(parentID uint) ([]models.Review, error)
	// TransitionState performs the optimistic read-modify-write: the
	// update only lands when the stored version still matches
	// expectedVersion. Returns false (and no error) when the row was
	// concurrently modified.
	TransitionState(id uint, expectedVersion uint, updates map[string]interface{}) (bool, error)
	CountRecentByAuthor(authorID uint, limit int) (total int, rejected int, err error)
	GetTopRatedByAuthors(authorIDs []uint, minRating, limit int) ([]models.Review, error)
	GetBookIDsReviewedBy(authorID uint) ([]string, error)
}

type postgresReviewRepository struct {
	db *gorm.DB
}

func NewPostgresReviewRepository(db *gorm.DB) ReviewRepository {
	return &postgresReviewRepository{db: db}
}

func (r *postgresReviewRepository) CreateReview(review *models.Review) error {
	return r.db.Create(review).Error
}

func (r *postgresReviewRepository) GetReviewByID(id uint) (*models.Review, error) {
	var review models.Review
	if err := r.db.First(&review, id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *postgresReviewRepository) GetVisibleByBookID(bookID string, sort ReviewSort, page, limit int) ([]models.Review, int64, error) {
	var reviews []models.Review
	var total int64

	q := r.db.Model(&models.Review{}).
		Where("book_id = ? AND parent_review_id IS NULL AND state = ?", bookID, models.ReviewStateApproved)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC"
	if sort == ReviewSortOldest {
		order = "created_at ASC"
	}

	offset := (page - 1) * limit
	err := q.Order(order).Offset(offset).Limit(limit).Find(&reviews).Error
	return reviews, total, err
}

func (r *postgresReviewRepository) GetRepliesByParentID(parentID uint) ([]models.Review, error) {
	var replies []models.Review
	err := r.db.
		Where("parent_review_id = ? AND state = ?", parentID, models.ReviewStateApproved).
		Order("created_at ASC").
		Find(&replies).Error
	return replies, err
}

func (r *postgresReviewRepository) TransitionState(id uint, expectedVersion uint, updates map[string]interface{}) (bool, error) {
	updates["version"] = expectedVersion + 1
	updates["updated_at"] = time.Now()

	res := r.db.Model(&models.Review{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *postgresReviewRepository) CountRecentByAuthor(authorID uint, limit int) (int, int, error) {
	var recent []models.Review
	err := r.db.Select("state").
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&recent).Error
	if err != nil {
		return 0, 0, err
	}

	rejected := 0
	for _, rv := range recent {
		if rv.State == models.ReviewStateAutoRejected {
			rejected++
		}
	}
	return len(recent), rejected, nil
}

func (r *postgresReviewRepository) GetTopRatedByAuthors(authorIDs []uint, minRating, limit int) ([]models.Review, error) {
	var reviews []models.Review
	if len(authorIDs) == 0 {
		return reviews, nil
	}
	err := r.db.
		Where("author_id IN ? AND parent_review_id IS NULL AND state = ? AND rating >= ?",
			authorIDs, models.ReviewStateApproved, minRating).
		Order("rating DESC, created_at DESC").
		Limit(limit).
		Find(&reviews).Error
	return reviews, err
}

func (r *postgresReviewRepository) GetBookIDsReviewedBy(authorID uint) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.Review{}).
		Distinct("book_id").
		Where("author_id = ? AND state <> ?", authorID, models.ReviewStateDeleted).
		Pluck("book_id", &ids).Error
	return ids, err
}
