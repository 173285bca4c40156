package services

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/anonto42/bookhive/backend/internal/moderation"
	"github.com/anonto42/bookhive/backend/internal/models"
	"github.com/anonto42/bookhive/backend/internal/repositories"
	"github.com/anonto42/bookhive/backend/pkg/apperrors"
	"github.com/anonto42/bookhive/backend/pkg/logger"
)

// How many recent reviews feed the author-history moderation signal
const authorHistoryWindow = 10

// How many times a lost optimistic-lock race is retried before
// surfacing SERVICE_UNAVAILABLE
const maxTransitionRetries = 3

// ReviewService owns the review visibility lifecycle: submission runs
// synchronously through the scorer and the state machine; on a
// transition into approved the feed and notification hooks fire.
type ReviewService interface {
	SubmitReview(ctx context.Context, authorID uint, bookID string, req models.CreateReviewRequest) (*models.Review, error)
	ModerateReview(ctx context.Context, reviewID uint, decision models.ReviewState, moderator *models.User) (*models.Review, error)
	DeleteReview(ctx context.Context, reviewID uint, principal *models.User) error
	ListBookReviews(bookID string, sort repositories.ReviewSort, page, limit int) ([]models.Review, int64, error)
	ListReplies(parentID uint) ([]models.Review, error)
}

type reviewService struct {
	reviews       repositories.ReviewRepository
	recorder      ActivityService
	notifications NotificationService
	invalidator   RecommendationInvalidator
	log           *logger.Logger
}

// RecommendationInvalidator is the slice of the recommendation layer
// the review pipeline needs.
type RecommendationInvalidator interface {
	Invalidate(ctx context.Context, userID uint) error
}

func NewReviewService(
	reviews repositories.ReviewRepository,
	recorder ActivityService,
	notifications NotificationService,
	invalidator RecommendationInvalidator,
	baseLog *logger.Logger,
) ReviewService {
	return &reviewService{
		reviews:       reviews,
		recorder:      recorder,
		notifications: notifications,
		invalidator:   invalidator,
		log:           baseLog.With("service", "ReviewService"),
	}
}

// allowedTransitions is the automated-flow state machine. auto_rejected
// and deleted are terminal here; manual moderator decisions get the
// extra edges in CanTransition.
var allowedTransitions = map[models.ReviewState][]models.ReviewState{
	models.ReviewStatePending:      {models.ReviewStateApproved, models.ReviewStateAutoRejected},
	models.ReviewStateApproved:     {models.ReviewStateFlagged, models.ReviewStateDeleted},
	models.ReviewStateFlagged:      {models.ReviewStateApproved, models.ReviewStateAutoRejected},
	models.ReviewStateAutoRejected: {},
	models.ReviewStateDeleted:      {},
}

// CanTransition reports whether from→to is a legal state change.
// Deletion is legal from every non-deleted state; manual moderation may
// additionally pull a review out of auto_rejected.
func CanTransition(from, to models.ReviewState, manual bool) bool {
	if to == models.ReviewStateDeleted {
		return from != models.ReviewStateDeleted
	}
	if manual && from == models.ReviewStateAutoRejected {
		return to == models.ReviewStateApproved
	}
	if manual && (from == models.ReviewStatePending || from == models.ReviewStateFlagged) {
		return to == models.ReviewStateApproved || to == models.ReviewStateAutoRejected
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s *reviewService) SubmitReview(ctx context.Context, authorID uint, bookID string, req models.CreateReviewRequest) (*models.Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, apperrors.Validation("rating must be between 1 and 5", nil)
	}
	if bookID == "" {
		return nil, apperrors.Validation("book id is required", nil)
	}

	if req.ParentReviewID != nil {
		if err := s.validateParent(*req.ParentReviewID, bookID); err != nil {
			return nil, err
		}
	}

	total, rejected, err := s.reviews.CountRecentByAuthor(authorID, authorHistoryWindow)
	if err != nil {
		return nil, err
	}

	result := moderation.Score(moderation.ScoreInput{
		Text:                 req.Text,
		Rating:               req.Rating,
		AuthorRecentTotal:    total,
		AuthorRecentRejected: rejected,
	})

	review := &models.Review{
		AuthorID:          authorID,
		BookID:            bookID,
		ParentReviewID:    req.ParentReviewID,
		Rating:            req.Rating,
		CommentText:       req.Text,
		State:             models.ReviewStatePending,
		ModerationScore:   result.Score,
		ModerationReasons: result.Reasons,
	}
	if err := s.reviews.CreateReview(review); err != nil {
		return nil, err
	}

	// Advance out of pending per the scorer recommendation
	if result.Recommendation != models.ReviewStatePending {
		updates := map[string]interface{}{
			"state":          result.Recommendation,
			"auto_moderated": result.Recommendation == models.ReviewStateApproved,
		}
		if result.Recommendation == models.ReviewStateAutoRejected {
			top := moderation.TopReason(result.Reasons)
			updates["auto_rejected"] = true
			updates["rejection_reason"] = top
			review.AutoRejected = true
			review.RejectionReason = &top
		} else {
			review.AutoModerated = true
		}

		if err := s.transitionWithRetry(review.ID, models.ReviewStatePending, result.Recommendation, updates, false); err != nil {
			return nil, err
		}
		review.State = result.Recommendation
	}

	if review.State == models.ReviewStateApproved {
		s.fireApprovalEvent(ctx, review)
	}
	return review, nil
}

func (s *reviewService) validateParent(parentID uint, bookID string) error {
	parent, err := s.reviews.GetReviewByID(parentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.ParentNotVisible("parent review does not exist")
		}
		return err
	}
	if parent.IsReply() {
		return apperrors.ParentNotVisible("replies cannot be nested")
	}
	if parent.BookID != bookID {
		return apperrors.ParentNotVisible("parent review belongs to a different book")
	}
	if parent.State == models.ReviewStateDeleted || parent.State == models.ReviewStateAutoRejected {
		return apperrors.ParentNotVisible("parent review is not visible")
	}
	return nil
}

func (s *reviewService) ModerateReview(ctx context.Context, reviewID uint, decision models.ReviewState, moderator *models.User) (*models.Review, error) {
	if !moderator.IsModerator() {
		return nil, apperrors.Forbidden("manual moderation requires the moderator role")
	}

	review, err := s.reviews.GetReviewByID(reviewID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("review", err)
		}
		return nil, err
	}
	if !CanTransition(review.State, decision, true) {
		return nil, apperrors.Conflict("review state does not allow this decision")
	}

	updates := map[string]interface{}{
		"state":          decision,
		"auto_moderated": false, // manual decision overrides the automated one
	}
	if decision == models.ReviewStateAutoRejected {
		updates["auto_rejected"] = false
	}

	if err := s.transitionWithRetry(reviewID, review.State, decision, updates, true); err != nil {
		return nil, err
	}

	review.State = decision
	review.AutoModerated = false
	if decision == models.ReviewStateApproved {
		s.fireApprovalEvent(ctx, review)
	}

	s.log.Info("Manual moderation decision applied",
		"review_id", reviewID,
		"decision", decision,
		"moderator_id", moderator.ID,
	)
	return review, nil
}

func (s *reviewService) DeleteReview(ctx context.Context, reviewID uint, principal *models.User) error {
	review, err := s.reviews.GetReviewByID(reviewID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.NotFound("review", err)
		}
		return err
	}
	if review.AuthorID != principal.ID && !principal.IsModerator() {
		return apperrors.Forbidden("only the author or a moderator may delete a review")
	}
	if review.State == models.ReviewStateDeleted {
		return nil
	}

	// The row stays behind for audit; deleted_at makes state=deleted
	// and the timestamp move together.
	updates := map[string]interface{}{
		"state":      models.ReviewStateDeleted,
		"deleted_at": time.Now(),
	}
	return s.transitionWithRetry(reviewID, review.State, models.ReviewStateDeleted, updates, principal.IsModerator())
}

func (s *reviewService) ListBookReviews(bookID string, sort repositories.ReviewSort, page, limit int) ([]models.Review, int64, error) {
	return s.reviews.GetVisibleByBookID(bookID, sort, page, limit)
}

func (s *reviewService) ListReplies(parentID uint) ([]models.Review, error) {
	return s.reviews.GetRepliesByParentID(parentID)
}

// transitionWithRetry applies the read-modify-write under optimistic
// versioning. A lost race against a writer landing the same transition
// is retried; a race against a writer who moved the review elsewhere
// means the caller decided on a stale view and gets
// CONCURRENCY_CONFLICT with no write. The retry budget exhausting
// surfaces SERVICE_UNAVAILABLE.
func (s *reviewService) transitionWithRetry(reviewID uint, from, target models.ReviewState, updates map[string]interface{}, manual bool) error {
	if !CanTransition(from, target, manual) {
		return apperrors.Conflict("review state does not allow this transition")
	}

	for attempt := 0; attempt <= maxTransitionRetries; attempt++ {
		current, err := s.reviews.GetReviewByID(reviewID)
		if err != nil {
			return err
		}
		if current.State == target {
			return nil // another writer already landed the same transition
		}
		if current.State != from {
			return apperrors.ConcurrencyConflict("review was concurrently moved to a conflicting state")
		}

		applied, err := s.reviews.TransitionState(reviewID, current.Version, updates)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
		s.log.Debug("Optimistic lock conflict, retrying transition",
			"review_id", reviewID,
			"target", target,
			"attempt", attempt+1,
		)
	}
	return apperrors.ServiceUnavailable("review is being modified concurrently, try again", nil)
}

// fireApprovalEvent runs the recorder and the dispatcher for a review
// that just became visible. Both are idempotent, so they run
// concurrently and a partial failure of one leaves the other intact.
func (s *reviewService) fireApprovalEvent(ctx context.Context, review *models.Review) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.recorder.RecordReviewApproved(ctx, review); err != nil {
			s.log.Error("Failed to record feed activity", "review_id", review.ID, "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if review.IsReply() {
			parent, err := s.reviews.GetReviewByID(*review.ParentReviewID)
			if err != nil {
				s.log.Error("Failed to load parent for reply notification", "review_id", review.ID, "error", err)
			} else if err := s.notifications.NotifyReply(ctx, review, parent.AuthorID); err != nil {
				s.log.Error("Failed to notify parent author", "review_id", review.ID, "error", err)
			}
		}
		s.notifications.FanoutReviewApproved(review)
	}()

	wg.Wait()

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, review.AuthorID); err != nil {
			s.log.Warn("Failed to invalidate recommendations", "user_id", review.AuthorID, "error", err)
		}
	}
}
