package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/levelup-app/levelup-backend/internal/config"
	"github.com/levelup-app/levelup-backend/internal/database"
	"github.com/levelup-app/levelup-backend/internal/models"
)

// Authentication is an external capability: the upstream gateway verifies
// credentials and forwards the caller's identity as trusted headers. The
// engine never re-validates credentials.
const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-User-Role"
)

// Identity resolves the caller from the gateway headers and mirrors the user
// row on first sight (timezone and unlocked modes live on it). Sets "userId"
// and "role" in the context for every handler.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing caller identity"})
			c.Abort()
			return
		}

		role := models.Role(c.GetHeader(HeaderRole))
		if role != models.RoleAdmin {
			role = models.RoleUser
		}

		var user models.User
		err := database.DB.Where(models.User{ID: userID}).
			Attrs(models.User{
				Username: userID,
				Role:     role,
				Timezone: config.AppConfig.DefaultTimezone,
			}).
			FirstOrCreate(&user).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve user"})
			c.Abort()
			return
		}

		// Keep the mirrored role in step with what auth asserts.
		if user.Role != role {
			database.DB.Model(&user).Update("role", role)
		}

		c.Set("userId", userID)
		c.Set("role", role)
		c.Next()
	}
}

// RequireRole is the single capability check used by every protected route.
// Admin satisfies user-level access; there is deliberately no second,
// parallel guard mechanism for admin routes.
func RequireRole(required models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get("role")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		role := roleVal.(models.Role)

		if required == models.RoleAdmin && role != models.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}
