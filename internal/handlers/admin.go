package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/levelup-app/levelup-backend/internal/database"
	"github.com/levelup-app/levelup-backend/internal/services"
)

// PublishTemplate handles POST /api/admin/templates
func PublishTemplate(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		return
	}

	var input services.PublishInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tpl, stats, err := services.PublishTemplate(database.DB, adminID, input, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"template":    tpl,
		"propagation": stats,
	})
}

// ListTemplates handles GET /api/admin/templates
func ListTemplates(c *gin.Context) {
	templates, err := services.ListTemplates(database.DB)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// GrantXP handles POST /api/admin/users/:id/xp
func GrantXP(c *gin.Context) {
	if _, ok := callerID(c); !ok {
		return
	}

	var input struct {
		Amount int    `json:"amount" binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := services.GrantXP(database.DB, c.Param("id"), input.Amount, input.Reason, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progression": state})
}

// TriggerSweep handles POST /api/admin/sweep — on-demand run of the streak
// sweep, mostly for ops and debugging; the cron schedule is the normal path.
func TriggerSweep(c *gin.Context) {
	broken, err := services.RunStreakSweep(database.DB, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"broken": broken})
}
