package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/levelup-app/levelup-backend/internal/config"
	"github.com/levelup-app/levelup-backend/internal/database"
	"github.com/levelup-app/levelup-backend/internal/handlers"
	"github.com/levelup-app/levelup-backend/internal/middleware"
	"github.com/levelup-app/levelup-backend/internal/models"
	"github.com/levelup-app/levelup-backend/internal/routes"
	"github.com/levelup-app/levelup-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestRouter wires an in-memory SQLite DB and the real route tree, so
// these tests exercise identity resolution, guards and handlers end to end.
func setupTestRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.QuestTemplate{},
		&models.QuestAssignment{},
		&models.ProgressionEvent{},
		&models.UserProgressionState{},
	))

	database.DB = db
	database.Redis = nil
	services.Board = services.NewLeaderboardIndex()
	config.AppConfig = &config.Config{
		LevelBaseXP:         100,
		DefaultTimezone:     "UTC",
		LeaderboardCacheTTL: 10,
	}

	r := gin.New()
	api := r.Group("/api")
	api.GET("/healthz", handlers.Healthz)
	protected := api.Group("")
	protected.Use(middleware.Identity())
	routes.RegisterQuestRoutes(protected)
	routes.RegisterLeaderboardRoutes(protected)
	routes.RegisterAdminRoutes(protected)
	return r
}

func doRequest(r *gin.Engine, method, path, userID, role string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
	}
	if role != "" {
		req.Header.Set(middleware.HeaderRole, role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedTemplate(t *testing.T, slug string, target, rewardXP int) {
	tpl := models.QuestTemplate{
		Slug: slug, Version: 1, Scope: models.ScopeDaily, Title: slug,
		Metric: "units", Target: target, RewardXP: rewardXP, Active: true,
	}
	assert.NoError(t, database.DB.Create(&tpl).Error)
}

func TestHealthz(t *testing.T) {
	r := setupTestRouter(t)

	w := doRequest(r, http.MethodGet, "/api/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestIdentityRequired(t *testing.T) {
	r := setupTestRouter(t)

	w := doRequest(r, http.MethodGet, "/api/quests/daily", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDailyQuestFlow(t *testing.T) {
	r := setupTestRouter(t)
	seedTemplate(t, "morning-momentum", 3, 50)

	// First read materializes the day's quests
	w := doRequest(r, http.MethodGet, "/api/quests/daily", "u1", "USER", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var listResp struct {
		Quests []models.QuestAssignment `json:"quests"`
		Date   string                   `json:"date"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Quests, 1)
	assert.NotEmpty(t, listResp.Date)
	questID := listResp.Quests[0].ID

	// Three progress increments, the last one completes and awards XP
	for i := 0; i < 3; i++ {
		w = doRequest(r, http.MethodPost, "/api/quests/"+questID+"/progress", "u1", "USER",
			map[string]int{"delta": 1})
		assert.Equal(t, http.StatusOK, w.Code)
	}

	var progResp struct {
		Quest models.QuestAssignment   `json:"quest"`
		Event *models.ProgressionEvent `json:"event"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &progResp))
	assert.Equal(t, models.AssignmentCompleted, progResp.Quest.Status)
	assert.NotNil(t, progResp.Event)
	assert.Equal(t, 50, progResp.Event.XPDelta)

	// A fourth attempt is an invalid state, not a second reward
	w = doRequest(r, http.MethodPost, "/api/quests/"+questID+"/progress", "u1", "USER",
		map[string]int{"delta": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Progression snapshot reflects the single grant
	w = doRequest(r, http.MethodGet, "/api/progression", "u1", "USER", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var stateResp struct {
		Progression models.UserProgressionState `json:"progression"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &stateResp))
	assert.Equal(t, 50, stateResp.Progression.XPTotal)
	assert.Equal(t, 1, stateResp.Progression.CurrentStreak)

	// And the caller shows up ranked on the leaderboard
	w = doRequest(r, http.MethodGet, "/api/leaderboard/me", "u1", "USER", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var rankResp struct {
		Entry services.LeaderboardEntry `json:"entry"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &rankResp))
	assert.Equal(t, 1, rankResp.Entry.Rank)
	assert.Equal(t, 50, rankResp.Entry.XPTotal)
}

func TestAdminGuard(t *testing.T) {
	r := setupTestRouter(t)

	body := map[string]interface{}{
		"slug": "push", "title": "Push", "scope": "GLOBAL", "target": 1, "rewardXp": 10,
	}

	// Plain users are rejected by the capability check
	w := doRequest(r, http.MethodPost, "/api/admin/templates", "u1", "USER", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The same route accepts an admin caller through the same guard
	w = doRequest(r, http.MethodPost, "/api/admin/templates", "admin1", "ADMIN", body)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Template    models.QuestTemplate      `json:"template"`
		Propagation services.PropagationStats `json:"propagation"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Template.Version)
	// u1 and admin1 both got the pushed quest
	assert.Equal(t, 2, resp.Propagation.Created)
}

func TestAdminGrantXP(t *testing.T) {
	r := setupTestRouter(t)

	// Materialize the target user first
	w := doRequest(r, http.MethodGet, "/api/progression", "u1", "USER", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodPost, "/api/admin/users/u1/xp", "admin1", "ADMIN",
		map[string]interface{}{"amount": 250, "reason": "contest prize"})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Progression models.UserProgressionState `json:"progression"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 250, resp.Progression.XPTotal)
	assert.Equal(t, 2, resp.Progression.Level)
}

func TestAnalyticsDashboard(t *testing.T) {
	r := setupTestRouter(t)
	seedTemplate(t, "q", 1, 30)

	w := doRequest(r, http.MethodGet, "/api/quests/daily", "u1", "USER", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Quests []models.QuestAssignment `json:"quests"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))

	w = doRequest(r, http.MethodPost, "/api/quests/"+listResp.Quests[0].ID+"/progress", "u1", "USER",
		map[string]int{"delta": 1})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/api/analytics/dashboard?days=7", "u1", "USER", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var dash map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &dash))
	assert.Equal(t, float64(7), dash["window_days"])
	assert.Equal(t, float64(1), dash["total_completed"])
	assert.Equal(t, float64(30), dash["xp_total"])
	weekly, ok := dash["weekly_data"].([]interface{})
	assert.True(t, ok)
	assert.Len(t, weekly, 7)
}
