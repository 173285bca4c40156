package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/bookhive/backend/internal/models"
	"github.com/anonto42/bookhive/backend/internal/repositories"
	"github.com/anonto42/bookhive/backend/internal/services"
)

// ReviewHandler handles review submission, moderation and listing
type ReviewHandler struct {
	reviewService  services.ReviewService
	userRepository repositories.UserRepository
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(reviewService services.ReviewService, userRepo repositories.UserRepository) *ReviewHandler {
	return &ReviewHandler{
		reviewService:  reviewService,
		userRepository: userRepo,
	}
}

// RegisterReviewRoutes registers review-related routes
func (h *ReviewHandler) RegisterReviewRoutes(g *echo.Group) {
	g.POST("/books/:book_id/reviews", h.SubmitReview)
	g.GET("/books/:book_id/reviews", h.GetBookReviews)
	g.GET("/reviews/:id/replies", h.GetReplies)
	g.PUT("/reviews/:id/moderate", h.ModerateReview)
	g.DELETE("/reviews/:id", h.DeleteReview)
}

// SubmitReview runs a draft through the moderation pipeline and returns
// the resulting state. An auto-rejected review is still a 201: the
// submission itself succeeded, the outcome is terminal.
func (h *ReviewHandler) SubmitReview(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	bookID := c.Param("book_id")

	var req models.CreateReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	review, err := h.reviewService.SubmitReview(c.Request().Context(), currentUserID, bookID, req)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data": echo.Map{
			"review_id":          review.ID,
			"state":              review.State,
			"moderation_reasons": review.ModerationReasons,
		},
	})
}

// ModerateReview applies a manual moderation decision (role-gated)
func (h *ReviewHandler) ModerateReview(c echo.Context) error {
	claims := getClaimsFromContext(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	reviewID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid review ID")
	}

	var req models.ModerateReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	moderator, err := h.userRepository.GetUserByID(claims.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Authenticated user not found in database")
	}

	review, err := h.reviewService.ModerateReview(c.Request().Context(), uint(reviewID), models.ReviewState(req.Decision), moderator)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"review_id": review.ID,
			"state":     review.State,
		},
	})
}

// DeleteReview soft-deletes a review (author or moderator)
func (h *ReviewHandler) DeleteReview(c echo.Context) error {
	claims := getClaimsFromContext(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	reviewID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid review ID")
	}

	principal, err := h.userRepository.GetUserByID(claims.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Authenticated user not found in database")
	}

	if err := h.reviewService.DeleteReview(c.Request().Context(), uint(reviewID), principal); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// GetBookReviews lists visible top-level reviews for a book, newest
// first unless ?sort=oldest
func (h *ReviewHandler) GetBookReviews(c echo.Context) error {
	bookID := c.Param("book_id")

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}

	sort := repositories.ReviewSortNewest
	if c.QueryParam("sort") == "oldest" {
		sort = repositories.ReviewSortOldest
	}

	reviews, total, err := h.reviewService.ListBookReviews(bookID, sort, page, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"reviews": reviews},
		"meta": echo.Map{
			"currentPage":  page,
			"totalItems":   total,
			"itemsPerPage": limit,
		},
	})
}

// GetReplies lists visible replies for a review, oldest first
func (h *ReviewHandler) GetReplies(c echo.Context) error {
	reviewID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid review ID")
	}

	replies, err := h.reviewService.ListReplies(uint(reviewID))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"replies": replies}})
}
