package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActivityType classifies a feed entry
type ActivityType string

const (
	ActivityTypeReview    ActivityType = "review"
	ActivityTypeRespuesta ActivityType = "respuesta" // reply to another review
	ActivityTypeFavorite  ActivityType = "favorite"
	ActivityTypeFollow    ActivityType = "follow"
	ActivityTypeList      ActivityType = "list"
	ActivityTypeReaction  ActivityType = "reaction"
)

// Activity is an append-only feed entry stored in MongoDB. At most one
// activity exists per (user_id, review_id, type); the collection
// enforces this with a unique index so replays are no-ops.
type Activity struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID     uint               `json:"user_id" bson:"user_id"`
	Type       ActivityType       `json:"type" bson:"type"`
	BookID     string             `json:"book_id,omitempty" bson:"book_id,omitempty"`
	ReviewID   uint               `json:"review_id,omitempty" bson:"review_id,omitempty"`
	OccurredAt time.Time          `json:"occurred_at" bson:"occurred_at"`
}
