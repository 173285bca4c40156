package services

import (
	"context"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/anonto42/bookhive/backend/internal/models"
	"github.com/anonto42/bookhive/backend/internal/repositories"
	"github.com/anonto42/bookhive/backend/pkg/apperrors"
	"github.com/anonto42/bookhive/backend/pkg/logger"
)

// ActivityService records feed entries and serves follower feeds.
// Recording is idempotent: replaying the same event leaves exactly one
// entry behind.
type ActivityService interface {
	RecordReviewApproved(ctx context.Context, review *models.Review) error
	RecordFollow(ctx context.Context, followerID, followedID uint) error
	RecordFavorite(ctx context.Context, userID uint, bookID string) error
	RecordReaction(ctx context.Context, userID, reviewID uint) error
	GetFeed(ctx context.Context, userID uint, cursor string, limit int) ([]models.Activity, string, error)
}

type activityService struct {
	activities repositories.ActivityRepository
	follows    repositories.FollowRepository
	log        *logger.Logger
}

func NewActivityService(
	activities repositories.ActivityRepository,
	follows repositories.FollowRepository,
	baseLog *logger.Logger,
) ActivityService {
	return &activityService{
		activities: activities,
		follows:    follows,
		log:        baseLog.With("service", "ActivityService"),
	}
}

func (s *activityService) RecordReviewApproved(ctx context.Context, review *models.Review) error {
	activityType := models.ActivityTypeReview
	if review.IsReply() {
		activityType = models.ActivityTypeRespuesta
	}

	created, err := s.activities.InsertIdempotent(ctx, &models.Activity{
		UserID:     review.AuthorID,
		Type:       activityType,
		BookID:     review.BookID,
		ReviewID:   review.ID,
		OccurredAt: time.Now(),
	})
	if err != nil {
		return err
	}
	if !created {
		s.log.Debug("Activity already recorded, skipping", "review_id", review.ID, "type", activityType)
	}
	return nil
}

// RecordFollow keys the followed user into the review slot so repeated
// follow/unfollow cycles still leave a single entry per pair.
func (s *activityService) RecordFollow(ctx context.Context, followerID, followedID uint) error {
	_, err := s.activities.InsertIdempotent(ctx, &models.Activity{
		UserID:     followerID,
		Type:       models.ActivityTypeFollow,
		ReviewID:   followedID,
		OccurredAt: time.Now(),
	})
	return err
}

func (s *activityService) RecordFavorite(ctx context.Context, userID uint, bookID string) error {
	_, err := s.activities.InsertIdempotent(ctx, &models.Activity{
		UserID:     userID,
		Type:       models.ActivityTypeFavorite,
		BookID:     bookID,
		OccurredAt: time.Now(),
	})
	return err
}

func (s *activityService) RecordReaction(ctx context.Context, userID, reviewID uint) error {
	_, err := s.activities.InsertIdempotent(ctx, &models.Activity{
		UserID:     userID,
		Type:       models.ActivityTypeReaction,
		ReviewID:   reviewID,
		OccurredAt: time.Now(),
	})
	return err
}

// GetFeed returns activities by users the given user follows, newest
// first. The cursor is opaque to clients; an empty next cursor means
// the history is exhausted.
func (s *activityService) GetFeed(ctx context.Context, userID uint, cursor string, limit int) ([]models.Activity, string, error) {
	if limit < 1 || limit > 50 {
		limit = 20
	}

	before, err := decodeFeedCursor(cursor)
	if err != nil {
		return nil, "", apperrors.Validation("invalid feed cursor", err)
	}

	followingIDs, err := s.follows.GetFollowingIDs(userID)
	if err != nil {
		return nil, "", err
	}

	activities, err := s.activities.GetFeedByAuthors(ctx, followingIDs, before, int64(limit))
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(activities) == limit {
		nextCursor = encodeFeedCursor(activities[len(activities)-1].OccurredAt)
	}
	return activities, nextCursor, nil
}

func encodeFeedCursor(t time.Time) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.FormatInt(t.UnixNano(), 10)))
}

func decodeFeedCursor(cursor string) (time.Time, error) {
	if cursor == "" {
		return time.Time{}, nil
	}
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, err
	}
	nanos, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, nanos), nil
}
