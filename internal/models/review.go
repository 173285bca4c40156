package models

import "time"

// ReviewState is the visibility lifecycle state of a review
type ReviewState string

const (
	ReviewStatePending      ReviewState = "pending"
	ReviewStateApproved     ReviewState = "approved"
	ReviewStateFlagged      ReviewState = "flagged"
	ReviewStateAutoRejected ReviewState = "auto_rejected"
	ReviewStateDeleted      ReviewState = "deleted"
)

// ReasonCode is a closed classification of why a moderation score was
// reduced. Downstream consumers branch on these, never on free text.
type ReasonCode string

const (
	ReasonEmptyComment   ReasonCode = "empty_comment"
	ReasonProfanity      ReasonCode = "profanity"
	ReasonRepeatedChars  ReasonCode = "repeated_chars"
	ReasonAllCaps        ReasonCode = "all_caps"
	ReasonTooShort       ReasonCode = "too_short"
	ReasonRatingMismatch ReasonCode = "rating_mismatch"
	ReasonAuthorHistory  ReasonCode = "author_history"
)

// Review represents a book review or a one-level reply to one (PostgreSQL)
type Review struct {
	ID                uint         `json:"id" gorm:"primaryKey"`
	AuthorID          uint         `json:"author_id" gorm:"index;not null"`
	BookID            string       `json:"book_id" gorm:"size:64;index;not null"`
	ParentReviewID    *uint        `json:"parent_review_id,omitempty" gorm:"index"`
	Rating            int          `json:"rating" gorm:"not null"`
	CommentText       string       `json:"comment_text" gorm:"type:text"`
	State             ReviewState  `json:"state" gorm:"size:20;index;default:pending"`
	ModerationScore   int          `json:"moderation_score"`
	ModerationReasons []ReasonCode `json:"moderation_reasons" gorm:"serializer:json"`
	AutoModerated     bool         `json:"auto_moderated"`
	AutoRejected      bool         `json:"auto_rejected"`
	RejectionReason   *ReasonCode  `json:"rejection_reason,omitempty" gorm:"size:32"`
	Version           uint         `json:"-" gorm:"not null;default:0"` // optimistic lock counter
	CreatedAt         time.Time    `json:"created_at" gorm:"index"`
	UpdatedAt         time.Time    `json:"updated_at"`
	DeletedAt         *time.Time   `json:"deleted_at,omitempty"`
}

// IsReply reports whether the review sits under a parent review
func (r *Review) IsReply() bool {
	return r.ParentReviewID != nil
}

// Visible reports whether the review may appear in listings and feeds
func (r *Review) Visible() bool {
	return r.State == ReviewStateApproved
}

// CreateReviewRequest defines the request body for submitting a review
type CreateReviewRequest struct {
	Rating         int    `json:"rating" validate:"required,min=1,max=5"`
	Text           string `json:"text" validate:"max=2000"`
	ParentReviewID *uint  `json:"parent_review_id,omitempty"`
}

// ModerateReviewRequest defines the request body for a manual moderation decision
type ModerateReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved flagged auto_rejected"`
}
