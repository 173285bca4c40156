package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/bookhive/backend/internal/models"
	"github.com/anonto42/bookhive/backend/pkg/apperrors"
)

// getUserIDFromContext extracts the authenticated user ID from the JWT
// claims set by the auth middleware; 0 means unauthenticated.
func getUserIDFromContext(c echo.Context) uint {
	claims, ok := c.Get("user").(*models.JwtCustomClaims)
	if !ok || claims == nil {
		return 0
	}
	return claims.UserID
}

// getClaimsFromContext returns the full claims, or nil when unauthenticated
func getClaimsFromContext(c echo.Context) *models.JwtCustomClaims {
	claims, ok := c.Get("user").(*models.JwtCustomClaims)
	if !ok {
		return nil
	}
	return claims
}

// toHTTPError maps pipeline errors onto echo HTTP errors, preserving
// the machine-readable code for clients.
func toHTTPError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return echo.NewHTTPError(appErr.Status, echo.Map{
			"code":    appErr.Code,
			"message": appErr.Message,
		})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
