package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/bookhive/backend/internal/services"
)

// RecommendationHandler serves per-user book recommendations
type RecommendationHandler struct {
	recommendationService services.RecommendationService
}

// NewRecommendationHandler creates a new RecommendationHandler
func NewRecommendationHandler(recommendationService services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{recommendationService: recommendationService}
}

// RegisterRecommendationRoutes registers recommendation routes
func (h *RecommendationHandler) RegisterRecommendationRoutes(g *echo.Group) {
	g.GET("/recommendations", h.GetRecommendations)
}

// GetRecommendations returns the caller's recommendation set. The
// stale flag tells the client the set is a fallback copy that could
// not be refreshed.
func (h *RecommendationHandler) GetRecommendations(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	items, stale, err := h.recommendationService.Get(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}
	if items == nil {
		items = []services.RecommendationItem{}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"items": items,
			"stale": stale,
		},
	})
}
