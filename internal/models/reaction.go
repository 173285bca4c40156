package models

import "time"

// Reaction represents a reaction on a review, unique per (review, user)
type Reaction struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ReviewID  uint      `json:"review_id" gorm:"index;uniqueIndex:idx_reaction_review_user"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_reaction_review_user"`
	CreatedAt time.Time `json:"created_at"`
}

// Favorite represents a user marking a book as a favorite
type Favorite struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BookID    string    `json:"book_id" gorm:"size:64;index;uniqueIndex:idx_favorite_book_user"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_favorite_book_user"`
	CreatedAt time.Time `json:"created_at"`
}
