package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/levelup-app/levelup-backend/internal/config"
	"github.com/levelup-app/levelup-backend/internal/database"
	"github.com/levelup-app/levelup-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB initializes an in-memory SQLite DB for testing. Each test gets
// its own named shared-cache database so the gorm connection pool sees one
// store while tests stay isolated from each other.
func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.QuestTemplate{},
		&models.QuestAssignment{},
		&models.ProgressionEvent{},
		&models.UserProgressionState{},
	)
	assert.NoError(t, err)

	database.DB = db
	database.Redis = nil
	Board = NewLeaderboardIndex()
	config.AppConfig = &config.Config{
		LevelBaseXP:         100,
		DefaultTimezone:     "UTC",
		SweepCron:           "@hourly",
		LeaderboardCacheTTL: 10,
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, id string, role models.Role) models.User {
	user := models.User{
		ID:       id,
		Username: id,
		Role:     role,
		Timezone: "UTC",
	}
	assert.NoError(t, db.Create(&user).Error)
	return user
}

func createTestTemplate(t *testing.T, db *gorm.DB, slug string, scope models.QuestScope, target, rewardXP int) models.QuestTemplate {
	tpl := models.QuestTemplate{
		Slug:     slug,
		Version:  1,
		Scope:    scope,
		Title:    slug,
		Metric:   "units",
		Target:   target,
		RewardXP: rewardXP,
		Active:   true,
	}
	assert.NoError(t, db.Create(&tpl).Error)
	return tpl
}
