package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-vault/internal/services"
)

// UserIDKey is the gin context key the user middleware stores the caller under
const UserIDKey = "user_id"

// DefaultUserID scopes requests that carry no user header
const DefaultUserID = "default"

func userID(c *gin.Context) string {
	if id := c.GetString(UserIDKey); id != "" {
		return id
	}
	return DefaultUserID
}

// respondError maps service errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrCardNotFound),
		errors.Is(err, services.ErrDisplayCaseNotFound),
		errors.Is(err, services.ErrNoSalesData):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidDisplayCase),
		errors.Is(err, services.ErrNoMatchingCards),
		errors.Is(err, services.ErrEmptyCollection),
		errors.Is(err, services.ErrInvalidQuery),
		errors.Is(err, services.ErrInvalidCard),
		errors.Is(err, services.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrDisplayCaseExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
