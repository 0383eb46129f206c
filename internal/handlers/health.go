package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Healthz handles GET /api/healthz
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
