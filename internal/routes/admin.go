package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/levelup-app/levelup-backend/internal/handlers"
	"github.com/levelup-app/levelup-backend/internal/middleware"
	"github.com/levelup-app/levelup-backend/internal/models"
)

// RegisterAdminRoutes sets up catalog authoring and ops endpoints. The same
// RequireRole guard protects these as every other route; admin is just a
// higher capability, not a separate auth mechanism.
func RegisterAdminRoutes(r gin.IRouter) {
	admin := r.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.Use(middleware.AdminRateLimit())
	{
		admin.POST("/templates", handlers.PublishTemplate)
		admin.GET("/templates", handlers.ListTemplates)
		admin.POST("/users/:id/xp", handlers.GrantXP)
		admin.POST("/sweep", handlers.TriggerSweep)
	}
}
