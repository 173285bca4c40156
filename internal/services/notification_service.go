package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/anonto42/bookhive/backend/internal/models"
	"github.com/anonto42/bookhive/backend/internal/repositories"
	"github.com/anonto42/bookhive/backend/internal/workers"
	"github.com/anonto42/bookhive/backend/pkg/logger"
)

const fanoutBatchSize = 100

// NotificationService computes recipients for qualifying events and
// creates notifications. Direct (single-recipient) events run inline;
// follower fan-outs run on the worker pool and never fail the
// triggering request.
type NotificationService interface {
	NotifyReply(ctx context.Context, reply *models.Review, parentAuthorID uint) error
	NotifyReaction(ctx context.Context, actorID uint, review *models.Review) error
	NotifyNewFollower(ctx context.Context, followerID, followedID uint) error
	NotifyFavorite(ctx context.Context, actorID uint, bookID string, bookAuthorID uint) error
	// FanoutReviewApproved notifies the author's followers that a new
	// review is visible. Asynchronous; errors are retried then
	// dead-lettered, never surfaced.
	FanoutReviewApproved(review *models.Review)
}

type notificationService struct {
	notifications repositories.NotificationRepository
	follows       repositories.FollowRepository
	users         repositories.UserRepository
	pool          *workers.FanoutPool
	pusher        Pusher
	dedupWindow   time.Duration
	log           *logger.Logger
}

func NewNotificationService(
	notifications repositories.NotificationRepository,
	follows repositories.FollowRepository,
	users repositories.UserRepository,
	pool *workers.FanoutPool,
	pusher Pusher,
	dedupWindow time.Duration,
	baseLog *logger.Logger,
) NotificationService {
	return &notificationService{
		notifications: notifications,
		follows:       follows,
		users:         users,
		pool:          pool,
		pusher:        pusher,
		dedupWindow:   dedupWindow,
		log:           baseLog.With("service", "NotificationService"),
	}
}

func (s *notificationService) NotifyReply(ctx context.Context, reply *models.Review, parentAuthorID uint) error {
	actor, err := s.users.GetUserByID(reply.AuthorID)
	if err != nil {
		return err
	}
	return s.deliver(ctx, parentAuthorID, reply.AuthorID, models.NotificationTypeReply,
		strconv.FormatUint(uint64(reply.ID), 10),
		fmt.Sprintf("%s replied to your review", actor.Name),
		map[string]any{"review_id": reply.ID, "book_id": reply.BookID},
		fmt.Sprintf("/books/%s/reviews/%d", reply.BookID, reply.ID),
	)
}

func (s *notificationService) NotifyReaction(ctx context.Context, actorID uint, review *models.Review) error {
	actor, err := s.users.GetUserByID(actorID)
	if err != nil {
		return err
	}
	return s.deliver(ctx, review.AuthorID, actorID, models.NotificationTypeReaction,
		strconv.FormatUint(uint64(review.ID), 10),
		fmt.Sprintf("%s reacted to your review", actor.Name),
		map[string]any{"review_id": review.ID, "book_id": review.BookID},
		fmt.Sprintf("/books/%s/reviews/%d", review.BookID, review.ID),
	)
}

func (s *notificationService) NotifyNewFollower(ctx context.Context, followerID, followedID uint) error {
	actor, err := s.users.GetUserByID(followerID)
	if err != nil {
		return err
	}
	return s.deliver(ctx, followedID, followerID, models.NotificationTypeFollow,
		strconv.FormatUint(uint64(followerID), 10),
		fmt.Sprintf("%s started following you", actor.Name),
		map[string]any{"follower_id": followerID},
		fmt.Sprintf("/users/%d", followerID),
	)
}

func (s *notificationService) NotifyFavorite(ctx context.Context, actorID uint, bookID string, bookAuthorID uint) error {
	actor, err := s.users.GetUserByID(actorID)
	if err != nil {
		return err
	}
	return s.deliver(ctx, bookAuthorID, actorID, models.NotificationTypeFavorite,
		bookID,
		fmt.Sprintf("%s favorited a book you reviewed", actor.Name),
		map[string]any{"book_id": bookID},
		fmt.Sprintf("/books/%s", bookID),
	)
}

func (s *notificationService) FanoutReviewApproved(review *models.Review) {
	followerIDs, err := s.follows.GetFollowerIDs(review.AuthorID)
	if err != nil {
		s.log.Error("Failed to compute fan-out recipients", "review_id", review.ID, "error", err)
		return
	}
	if len(followerIDs) == 0 {
		return
	}

	actor, err := s.users.GetUserByID(review.AuthorID)
	if err != nil {
		s.log.Error("Failed to load fan-out actor", "review_id", review.ID, "error", err)
		return
	}
	message := fmt.Sprintf("%s posted a new review", actor.Name)
	sourceID := strconv.FormatUint(uint64(review.ID), 10)

	for start := 0; start < len(followerIDs); start += fanoutBatchSize {
		end := start + fanoutBatchSize
		if end > len(followerIDs) {
			end = len(followerIDs)
		}
		batch := followerIDs[start:end]

		taskName := fmt.Sprintf("review-approved:%d:%d-%d", review.ID, start, end)
		s.pool.Enqueue(taskName, func(ctx context.Context) error {
			for _, recipientID := range batch {
				if err := s.deliver(ctx, recipientID, review.AuthorID, models.NotificationTypeNewActivity,
					sourceID, message,
					map[string]any{"review_id": review.ID, "book_id": review.BookID},
					fmt.Sprintf("/books/%s/reviews/%d", review.BookID, review.ID),
				); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

// deliver is the single choke point for recipient rules: the actor is
// never notified about their own action, and duplicates inside the
// dedup window collapse into the most recent notification.
func (s *notificationService) deliver(ctx context.Context, recipientID, actorID uint, notifType models.NotificationType, sourceID, message string, payload map[string]any, url string) error {
	if recipientID == actorID {
		return nil
	}

	existing, err := s.notifications.FindRecentDuplicate(recipientID, notifType, sourceID, time.Now().Add(-s.dedupWindow))
	if err != nil {
		return err
	}
	if existing != nil {
		if err := s.notifications.Refresh(existing.ID, message); err != nil {
			return err
		}
		return nil
	}

	notification := &models.Notification{
		Type:        notifType,
		ActorID:     actorID,
		RecipientID: recipientID,
		SourceID:    sourceID,
		Message:     message,
		Payload:     payload,
		URL:         url,
	}
	if err := s.notifications.CreateNotification(notification); err != nil {
		return err
	}

	s.push(ctx, recipientID, message)
	return nil
}

// push is best effort: delivery failures are logged and dropped
func (s *notificationService) push(ctx context.Context, recipientID uint, message string) {
	if s.pusher == nil {
		return
	}
	recipient, err := s.users.GetUserByID(recipientID)
	if err != nil || recipient.FCMToken == "" {
		return
	}
	if err := s.pusher.Push(ctx, recipient.FCMToken, message); err != nil {
		s.log.Warn("Push delivery failed", "recipient_id", recipientID, "error", err)
	}
}
