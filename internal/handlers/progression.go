package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/levelup-app/levelup-backend/internal/database"
	"github.com/levelup-app/levelup-backend/internal/services"
)

// GetProgression handles GET /api/progression
func GetProgression(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	state, err := services.GetProgression(database.DB, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"progression": state})
}
