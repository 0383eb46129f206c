package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/levelup-app/levelup-backend/internal/database"
	"github.com/levelup-app/levelup-backend/internal/models"
	"github.com/levelup-app/levelup-backend/internal/services"
)

// ListQuests handles GET /api/quests?scope=daily|weekly
// Reading the quest list is what materializes it: assignments for the
// current epoch are created on first access after rollover.
func ListQuests(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	scope := models.ScopeDaily
	if strings.ToUpper(c.Query("scope")) == string(models.ScopeWeekly) {
		scope = models.ScopeWeekly
	}

	quests, epochKey, err := services.EnsureAssignments(database.DB, userID, scope, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quests": quests,
		"epoch":  epochKey,
	})
}

// GetDailyQuests handles GET /api/quests/daily — the shape the dashboard
// expects: today's quests plus the date they belong to.
func GetDailyQuests(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	quests, epochKey, err := services.EnsureAssignments(database.DB, userID, models.ScopeDaily, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quests": quests,
		"date":   epochKey,
	})
}

// RecordQuestProgress handles POST /api/quests/:id/progress
func RecordQuestProgress(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var input struct {
		Delta int `json:"delta" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assignment, event, err := services.RecordProgress(database.DB, userID, c.Param("id"), input.Delta, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"quest": assignment}
	if event != nil {
		resp["event"] = event
	}
	c.JSON(http.StatusOK, resp)
}
