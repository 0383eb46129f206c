package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/levelup-app/levelup-backend/internal/handlers"
	"github.com/levelup-app/levelup-backend/internal/middleware"
	"github.com/levelup-app/levelup-backend/internal/models"
)

// RegisterQuestRoutes sets up quest assignment and progression endpoints.
func RegisterQuestRoutes(r gin.IRouter) {
	quests := r.Group("/quests")
	quests.Use(middleware.RequireRole(models.RoleUser))
	{
		quests.GET("", handlers.ListQuests)
		quests.GET("/daily", handlers.GetDailyQuests)
		quests.POST("/:id/progress", middleware.ProgressRateLimit(), handlers.RecordQuestProgress)
	}

	r.GET("/progression", middleware.RequireRole(models.RoleUser), handlers.GetProgression)
	r.GET("/analytics/dashboard", middleware.RequireRole(models.RoleUser), handlers.GetDashboard)
}
