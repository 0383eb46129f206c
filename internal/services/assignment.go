package services

import (
	"time"

	"github.com/levelup-app/levelup-backend/internal/epoch"
	"github.com/levelup-app/levelup-backend/internal/models"
	apperrors "github.com/levelup-app/levelup-backend/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func epochScope(scope models.QuestScope) epoch.Scope {
	if scope == models.ScopeWeekly {
		return epoch.ScopeWeekly
	}
	return epoch.ScopeDaily
}

// scopesFor maps a requested window to the template scopes materialized in
// it. Admin-pushed GLOBAL templates ride the daily window.
func scopesFor(scope models.QuestScope) []models.QuestScope {
	if scope == models.ScopeWeekly {
		return []models.QuestScope{models.ScopeWeekly}
	}
	return []models.QuestScope{models.ScopeDaily, models.ScopeGlobal}
}

// EnsureAssignments lazily materializes the user's quest set for the current
// epoch: no central cron, the first read or write after rollover does the
// work. Idempotent — the unique (user, template, epoch) index makes the
// losing side of a concurrent insert a silent no-op. Still-ACTIVE
// assignments from older epochs are expired here, never carried over.
func EnsureAssignments(db *gorm.DB, userID string, scope models.QuestScope, now time.Time) ([]models.QuestAssignment, string, error) {
	if scope != models.ScopeDaily && scope != models.ScopeWeekly {
		return nil, "", apperrors.BadRequest("scope must be DAILY or WEEKLY")
	}

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", apperrors.NotFound("user not found")
		}
		return nil, "", err
	}

	loc := epoch.LoadLocation(user.Timezone)
	key := epoch.Key(epochScope(scope), now, loc)
	scopes := scopesFor(scope)

	// Lazy expiry: a newer epoch has been observed, close out unfinished
	// quests from previous windows.
	if err := db.Model(&models.QuestAssignment{}).
		Where(`"userId" = ? AND scope IN ? AND status = ? AND "epochKey" <> ?`,
			userID, scopes, models.AssignmentActive, key).
		Update("status", models.AssignmentExpired).Error; err != nil {
		return nil, "", err
	}

	var templates []models.QuestTemplate
	if err := db.Where("active = ? AND scope IN ?", true, scopes).
		Find(&templates).Error; err != nil {
		return nil, "", err
	}

	for _, tpl := range templates {
		if !user.HasMode(tpl.RequiredMode) {
			continue
		}
		assignment := models.QuestAssignment{
			UserID:     userID,
			TemplateID: tpl.ID,
			EpochKey:   key,
			Scope:      tpl.Scope,
			Target:     tpl.Target,
			RewardXP:   tpl.RewardXP,
			Status:     models.AssignmentActive,
		}
		if err := db.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "userId"}, {Name: "templateId"}, {Name: "epochKey"}},
			DoNothing: true,
		}).Create(&assignment).Error; err != nil {
			return nil, "", err
		}
	}

	var list []models.QuestAssignment
	if err := db.Preload("Template").
		Where(`"userId" = ? AND "epochKey" = ? AND scope IN ?`, userID, key, scopes).
		Order(`"createdAt" asc, id asc`).
		Find(&list).Error; err != nil {
		return nil, "", err
	}
	return list, key, nil
}

// RecordProgress increments an assignment's progress counter. Reaching the
// target transitions it to COMPLETED and appends exactly one QUEST_COMPLETED
// event in the same transaction — a timed-out write can never leave a
// completed assignment without its XP, or the reverse. Status moves only
// forward: ACTIVE -> COMPLETED | EXPIRED.
func RecordProgress(db *gorm.DB, userID, assignmentID string, delta int, now time.Time) (*models.QuestAssignment, *models.ProgressionEvent, error) {
	if delta <= 0 {
		return nil, nil, apperrors.BadRequest("delta must be a positive integer")
	}

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, apperrors.NotFound("user not found")
		}
		return nil, nil, err
	}
	loc := epoch.LoadLocation(user.Timezone)

	mu := lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	var (
		assignment models.QuestAssignment
		event      *models.ProgressionEvent
		state      *models.UserProgressionState
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Template").First(&assignment, "id = ?", assignmentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.NotFound("assignment not found")
			}
			return err
		}
		// Ownership is part of the lookup: someone else's assignment is
		// indistinguishable from a missing one.
		if assignment.UserID != userID {
			return apperrors.NotFound("assignment not found")
		}
		if assignment.Status != models.AssignmentActive {
			return apperrors.InvalidState("assignment is not active")
		}

		assignment.Progress += delta
		if assignment.Progress > assignment.Target {
			assignment.Progress = assignment.Target
		}

		if assignment.Progress >= assignment.Target {
			completedAt := now
			assignment.Status = models.AssignmentCompleted
			assignment.CompletedAt = &completedAt

			// Streaks key on the day the completion actually happened,
			// in the user's timezone. Weekly quests keep their week key
			// and stay out of the daily streak.
			eventKey := epoch.DailyKey(now, loc)
			if assignment.Scope == models.ScopeWeekly {
				eventKey = assignment.EpochKey
			}

			ev := &models.ProgressionEvent{
				UserID:         userID,
				Kind:           models.EventQuestCompleted,
				XPDelta:        assignment.RewardXP,
				AssignmentID:   &assignment.ID,
				EpochKey:       eventKey,
				Reason:         assignment.Template.Slug,
				IdempotencyKey: "complete:" + assignment.ID,
			}
			created, err := appendEventTx(tx, ev)
			if err != nil {
				return err
			}
			if created {
				event = ev
				state, err = foldEventTx(tx, ev)
				if err != nil {
					return err
				}
			}
		}

		return tx.Omit(clause.Associations).Save(&assignment).Error
	})
	if err != nil {
		return nil, nil, err
	}

	if state != nil {
		Board.Upsert(userID, state.XPTotal, state.Level, state.LastEventSeq)
		InvalidateLeaderboardCache()
	}
	return &assignment, event, nil
}
