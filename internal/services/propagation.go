package services

import (
	"time"

	"github.com/levelup-app/levelup-backend/internal/epoch"
	"github.com/levelup-app/levelup-backend/internal/models"
	apperrors "github.com/levelup-app/levelup-backend/pkg/errors"
	"github.com/levelup-app/levelup-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PublishInput is the validated shape supplied by the catalog authoring API.
type PublishInput struct {
	Slug         string            `json:"slug" binding:"required"`
	Title        string            `json:"title" binding:"required"`
	Description  string            `json:"description"`
	Scope        models.QuestScope `json:"scope" binding:"required"`
	Metric       string            `json:"metric"`
	Target       int               `json:"target"`
	RewardXP     int               `json:"rewardXp"`
	RequiredMode string            `json:"requiredMode"`
}

// PropagationStats reports what a publish fan-out actually did.
type PropagationStats struct {
	UsersScanned int `json:"usersScanned"`
	Created      int `json:"created"`
	Skipped      int `json:"skipped"` // already materialized (idempotent re-run) or ineligible
	Errors       int `json:"errors"`
}

func sameRequirement(tpl *models.QuestTemplate, in PublishInput) bool {
	return tpl.Scope == in.Scope &&
		tpl.Metric == in.Metric &&
		tpl.Target == in.Target &&
		tpl.RewardXP == in.RewardXP &&
		tpl.RequiredMode == in.RequiredMode
}

// PublishTemplate creates or updates a quest template and pushes assignments
// to every eligible user for their current epoch.
//
// A metadata-only edit (title/description) updates the published version in
// place and resets nothing. A requirement or reward change publishes a new
// immutable version: the old version is deactivated, its still-ACTIVE
// assignments expire, and fresh assignments fan out. The fan-out is
// idempotent per (template version, user, epoch) — re-running after a
// partial failure never duplicates or regresses progress, and completed
// assignments are never re-triggered.
func PublishTemplate(db *gorm.DB, adminID string, in PublishInput, now time.Time) (*models.QuestTemplate, *PropagationStats, error) {
	if !in.Scope.Valid() {
		return nil, nil, apperrors.InvalidState("unknown quest scope")
	}
	if in.Target < 1 {
		return nil, nil, apperrors.InvalidState("target must be at least 1")
	}
	if in.RewardXP < 0 {
		return nil, nil, apperrors.InvalidState("rewardXp must not be negative")
	}

	var latest models.QuestTemplate
	err := db.Where("slug = ?", in.Slug).Order("version desc").First(&latest).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, nil, err
	}
	exists := err == nil

	if exists && sameRequirement(&latest, in) {
		// Metadata-only edit: in place, no reset, no fan-out.
		latest.Title = in.Title
		latest.Description = in.Description
		if err := db.Save(&latest).Error; err != nil {
			return nil, nil, err
		}
		return &latest, &PropagationStats{}, nil
	}

	version := 1
	if exists {
		version = latest.Version + 1
	}

	tpl := models.QuestTemplate{
		Slug:         in.Slug,
		Version:      version,
		Scope:        in.Scope,
		Title:        in.Title,
		Description:  in.Description,
		Metric:       in.Metric,
		Target:       in.Target,
		RewardXP:     in.RewardXP,
		RequiredMode: in.RequiredMode,
		AuthoredBy:   adminID,
		Active:       true,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if exists {
			// Only the newest version stays active.
			if err := tx.Model(&models.QuestTemplate{}).
				Where("slug = ? AND version < ?", in.Slug, version).
				Update("active", false).Error; err != nil {
				return err
			}
			// Close out in-flight assignments of the superseded version;
			// completed ones keep their history.
			if err := tx.Model(&models.QuestAssignment{}).
				Where(`"templateId" = ? AND status = ?`, latest.ID, models.AssignmentActive).
				Update("status", models.AssignmentExpired).Error; err != nil {
				return err
			}
		}
		return tx.Create(&tpl).Error
	})
	if err != nil {
		return nil, nil, err
	}

	stats := Propagate(db, &tpl, now)
	return &tpl, stats, nil
}

// Propagate pushes an active template into every eligible user's assignment
// set for their current epoch. Per-user failures are logged and skipped so
// one broken row never aborts the fan-out.
func Propagate(db *gorm.DB, tpl *models.QuestTemplate, now time.Time) *PropagationStats {
	stats := &PropagationStats{}

	var users []models.User
	result := db.FindInBatches(&users, 200, func(tx *gorm.DB, batch int) error {
		for i := range users {
			user := &users[i]
			stats.UsersScanned++

			if !user.HasMode(tpl.RequiredMode) {
				stats.Skipped++
				continue
			}

			loc := epoch.LoadLocation(user.Timezone)
			key := epoch.Key(epochScope(tpl.Scope), now, loc)

			assignment := models.QuestAssignment{
				UserID:     user.ID,
				TemplateID: tpl.ID,
				EpochKey:   key,
				Scope:      tpl.Scope,
				Target:     tpl.Target,
				RewardXP:   tpl.RewardXP,
				Status:     models.AssignmentActive,
			}
			res := db.Omit(clause.Associations).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "userId"}, {Name: "templateId"}, {Name: "epochKey"}},
				DoNothing: true,
			}).Create(&assignment)
			if res.Error != nil {
				stats.Errors++
				logger.Error().Err(res.Error).
					Str("user_id", user.ID).
					Str("template", tpl.Slug).
					Msg("Failed to propagate assignment")
				continue
			}
			if res.RowsAffected > 0 {
				stats.Created++
			} else {
				stats.Skipped++
			}
		}
		return nil
	})
	if result.Error != nil {
		logger.Error().Err(result.Error).Str("template", tpl.Slug).Msg("Propagation scan failed")
		stats.Errors++
	}

	logger.Info().
		Str("template", tpl.Slug).
		Int("version", tpl.Version).
		Int("created", stats.Created).
		Int("skipped", stats.Skipped).
		Int("errors", stats.Errors).
		Msg("Template propagation complete")
	return stats
}

// ListTemplates returns all template versions, newest lineage first.
func ListTemplates(db *gorm.DB) ([]models.QuestTemplate, error) {
	var templates []models.QuestTemplate
	err := db.Order("slug asc, version desc").Find(&templates).Error
	return templates, err
}
