package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/levelup-app/levelup-backend/internal/services"
)

const (
	defaultLeaderboardLimit = 25
	maxLeaderboardLimit     = 100
	defaultAroundWindow     = 3
	maxAroundWindow         = 25
)

// GetLeaderboard handles GET /api/leaderboard?limit=k
func GetLeaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLeaderboardLimit)))
	if err != nil || limit < 1 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	entries := services.TopNCached(limit)
	c.JSON(http.StatusOK, gin.H{
		"leaderboard": entries,
		"totalUsers":  services.Board.Len(),
	})
}

// GetMyRank handles GET /api/leaderboard/me
func GetMyRank(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	entry, err := services.Board.RankOf(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

// GetLeaderboardAround handles GET /api/leaderboard/around?window=w —
// the caller plus their nearby competitors.
func GetLeaderboardAround(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	window, err := strconv.Atoi(c.DefaultQuery("window", strconv.Itoa(defaultAroundWindow)))
	if err != nil || window < 1 {
		window = defaultAroundWindow
	}
	if window > maxAroundWindow {
		window = maxAroundWindow
	}

	entries, err := services.Board.Around(userID, window)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
