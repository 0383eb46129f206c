package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/levelup-app/levelup-backend/internal/database"
	"github.com/levelup-app/levelup-backend/internal/epoch"
	"github.com/levelup-app/levelup-backend/internal/models"
	"github.com/levelup-app/levelup-backend/internal/services"
)

type dayStat struct {
	Date      string `json:"date"`
	Completed int    `json:"completed"`
	XP        int    `json:"xp"`
}

// GetDashboard handles GET /api/analytics/dashboard?days=N — progression
// stats over a rolling window, computed from the ledger.
func GetDashboard(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 1 {
		days = 30
	}
	if days > 365 {
		days = 365
	}

	state, err := services.GetProgression(database.DB, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		respondError(c, err)
		return
	}
	loc := epoch.LoadLocation(user.Timezone)

	now := time.Now()
	since := now.AddDate(0, 0, -days)

	var events []models.ProgressionEvent
	if err := database.DB.
		Where(`"userId" = ? AND kind = ? AND "createdAt" >= ?`, userID, models.EventQuestCompleted, since).
		Order("seq asc").
		Find(&events).Error; err != nil {
		respondError(c, err)
		return
	}

	// Bucket completions per day in the user's timezone. Every day of the
	// window appears, zeroes included, so charts have a continuous axis.
	buckets := make(map[string]*dayStat, days)
	series := make([]*dayStat, 0, days)
	for i := days - 1; i >= 0; i-- {
		key := epoch.DailyKey(now.AddDate(0, 0, -i), loc)
		stat := &dayStat{Date: key}
		buckets[key] = stat
		series = append(series, stat)
	}

	totalCompleted := 0
	windowXP := 0
	activeDays := 0
	for i := range events {
		totalCompleted++
		windowXP += events[i].XPDelta
		if stat, ok := buckets[epoch.DailyKey(events[i].CreatedAt, loc)]; ok {
			if stat.Completed == 0 {
				activeDays++
			}
			stat.Completed++
			stat.XP += events[i].XPDelta
		}
	}

	// Share of window days with at least one completion, 0-100.
	disciplineScore := activeDays * 100 / days

	c.JSON(http.StatusOK, gin.H{
		"total_completed":  totalCompleted,
		"window_xp":        windowXP,
		"xp_total":         state.XPTotal,
		"current_level":    state.Level,
		"current_streak":   state.CurrentStreak,
		"longest_streak":   state.LongestStreak,
		"discipline_score": disciplineScore,
		"weekly_data":      series,
		"window_days":      days,
	})
}
