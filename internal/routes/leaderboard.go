package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/levelup-app/levelup-backend/internal/handlers"
	"github.com/levelup-app/levelup-backend/internal/middleware"
	"github.com/levelup-app/levelup-backend/internal/models"
)

// RegisterLeaderboardRoutes sets up ranked-view endpoints.
func RegisterLeaderboardRoutes(r gin.IRouter) {
	lb := r.Group("/leaderboard")
	lb.Use(middleware.RequireRole(models.RoleUser))
	{
		lb.GET("", handlers.GetLeaderboard)
		lb.GET("/me", handlers.GetMyRank)
		lb.GET("/around", handlers.GetLeaderboardAround)
	}
}
