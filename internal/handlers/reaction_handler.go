package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/bookhive/backend/internal/models"
	"github.com/anonto42/bookhive/backend/internal/repositories"
	"github.com/anonto42/bookhive/backend/internal/services"
)

// ReactionHandler handles review reactions and book favorites
type ReactionHandler struct {
	reactionRepository  repositories.ReactionRepository
	favoriteRepository  repositories.FavoriteRepository
	reviewRepository    repositories.ReviewRepository
	activityService     services.ActivityService
	notificationService services.NotificationService
	recommendations     services.RecommendationService
}

// NewReactionHandler creates a new ReactionHandler
func NewReactionHandler(
	reactionRepo repositories.ReactionRepository,
	favoriteRepo repositories.FavoriteRepository,
	reviewRepo repositories.ReviewRepository,
	activityService services.ActivityService,
	notificationService services.NotificationService,
	recommendations services.RecommendationService,
) *ReactionHandler {
	return &ReactionHandler{
		reactionRepository:  reactionRepo,
		favoriteRepository:  favoriteRepo,
		reviewRepository:    reviewRepo,
		activityService:     activityService,
		notificationService: notificationService,
		recommendations:     recommendations,
	}
}

// RegisterReactionRoutes registers reaction and favorite routes
func (h *ReactionHandler) RegisterReactionRoutes(g *echo.Group) {
	g.POST("/reviews/:id/reactions", h.ReactToReview)
	g.DELETE("/reviews/:id/reactions", h.RemoveReaction)
	g.POST("/books/:book_id/favorite", h.FavoriteBook)
	g.DELETE("/books/:book_id/favorite", h.UnfavoriteBook)
}

// ReactToReview adds a reaction to a visible review
func (h *ReactionHandler) ReactToReview(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	reviewID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid review ID")
	}

	review, err := h.reviewRepository.GetReviewByID(uint(reviewID))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Review not found")
	}
	if !review.Visible() {
		return echo.NewHTTPError(http.StatusNotFound, "Review not found")
	}

	hasReacted, err := h.reactionRepository.HasUserReacted(uint(reviewID), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if hasReacted {
		return echo.NewHTTPError(http.StatusConflict, "Already reacted to this review")
	}

	reaction := &models.Reaction{
		ReviewID: uint(reviewID),
		UserID:   userID,
	}
	if err := h.reactionRepository.CreateReaction(reaction); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ctx := c.Request().Context()
	_ = h.activityService.RecordReaction(ctx, userID, uint(reviewID))
	_ = h.notificationService.NotifyReaction(ctx, userID, review)

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"reacted": true}})
}

// RemoveReaction removes the caller's reaction from a review
func (h *ReactionHandler) RemoveReaction(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	reviewID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid review ID")
	}

	if err := h.reactionRepository.DeleteReaction(uint(reviewID), userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"reacted": false}})
}

// FavoriteBook marks a book as a favorite of the caller
func (h *ReactionHandler) FavoriteBook(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	bookID := c.Param("book_id")
	if bookID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid book ID")
	}

	hasFavorited, err := h.favoriteRepository.HasUserFavorited(bookID, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if hasFavorited {
		return echo.NewHTTPError(http.StatusConflict, "Already favorited this book")
	}

	favorite := &models.Favorite{
		BookID: bookID,
		UserID: userID,
	}
	if err := h.favoriteRepository.CreateFavorite(favorite); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ctx := c.Request().Context()
	_ = h.activityService.RecordFavorite(ctx, userID, bookID)

	// Notify the authors of the book's visible reviews; the dedup window
	// collapses repeats and deliver skips the actor themselves
	reviews, _, err := h.reviewRepository.GetVisibleByBookID(bookID, repositories.ReviewSortNewest, 1, 20)
	if err == nil {
		notified := make(map[uint]bool)
		for _, review := range reviews {
			if notified[review.AuthorID] {
				continue
			}
			notified[review.AuthorID] = true
			_ = h.notificationService.NotifyFavorite(ctx, userID, bookID, review.AuthorID)
		}
	}

	_ = h.recommendations.Invalidate(ctx, userID)

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"favorited": true}})
}

// UnfavoriteBook removes a book from the caller's favorites
func (h *ReactionHandler) UnfavoriteBook(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	bookID := c.Param("book_id")
	if err := h.favoriteRepository.DeleteFavorite(bookID, userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	_ = h.recommendations.Invalidate(c.Request().Context(), userID)

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"favorited": false}})
}
