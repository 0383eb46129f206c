package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/levelup-app/levelup-backend/pkg/errors"
)

// respondError maps service errors to HTTP responses. AppError carries its
// own status; anything else is an opaque 500.
func respondError(c *gin.Context, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func callerID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userId")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return userID.(string), true
}
