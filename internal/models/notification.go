package models

import "time"

// NotificationType matches the event that triggered the notification
type NotificationType string

const (
	NotificationTypeReply       NotificationType = "reply"
	NotificationTypeReaction    NotificationType = "reaction"
	NotificationTypeFollow      NotificationType = "follow"
	NotificationTypeFavorite    NotificationType = "favorite"
	NotificationTypeNewActivity NotificationType = "new_activity" // followed user posted
)

// Notification represents a user notification (PostgreSQL). Rows are
// append-only except for the read flag and dedup refreshes.
type Notification struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	Type        NotificationType `json:"type" gorm:"size:30;index:idx_notif_dedup"`
	ActorID     uint             `json:"actor_id" gorm:"index"`
	RecipientID uint             `json:"recipient_id" gorm:"index;index:idx_notif_dedup"`
	SourceID    string           `json:"source_id" gorm:"size:64;index:idx_notif_dedup"` // review ID, user ID, etc.
	Message     string           `json:"message"`
	Payload     map[string]any   `json:"payload" gorm:"serializer:json"`
	URL         string           `json:"url,omitempty"`
	IsRead      bool             `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time        `json:"created_at" gorm:"index"`
}
