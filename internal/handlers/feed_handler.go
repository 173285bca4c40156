package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/bookhive/backend/internal/models"
	"github.com/anonto42/bookhive/backend/internal/repositories"
	"github.com/anonto42/bookhive/backend/internal/services"
)

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	activityService services.ActivityService
	userRepository  repositories.UserRepository
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(activityService services.ActivityService, userRepo repositories.UserRepository) *FeedHandler {
	return &FeedHandler{
		activityService: activityService,
		userRepository:  userRepo,
	}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
}

// EnrichedActivity is a feed entry with actor info attached
type EnrichedActivity struct {
	models.Activity
	ActorName string `json:"actor_name"`
}

// GetFeed returns the cursor-paginated activity feed of users the
// current user follows
func (h *FeedHandler) GetFeed(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	cursor := c.QueryParam("cursor")

	activities, nextCursor, err := h.activityService.GetFeed(c.Request().Context(), currentUserID, cursor, limit)
	if err != nil {
		return toHTTPError(err)
	}

	// Build actor name map for the page
	actorIDs := make([]uint, 0, len(activities))
	seen := make(map[uint]bool)
	for _, a := range activities {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			actorIDs = append(actorIDs, a.UserID)
		}
	}
	users, err := h.userRepository.GetUsersByIDs(actorIDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	enriched := make([]EnrichedActivity, len(activities))
	for i, a := range activities {
		enriched[i] = EnrichedActivity{Activity: a, ActorName: names[a.UserID]}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"activities":  enriched,
			"next_cursor": nextCursor,
		},
	})
}
