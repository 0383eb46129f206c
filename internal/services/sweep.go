package services

import (
	"time"

	"github.com/levelup-app/levelup-backend/internal/epoch"
	"github.com/levelup-app/levelup-backend/internal/models"
	"github.com/levelup-app/levelup-backend/pkg/logger"
	"gorm.io/gorm"
)

// RunStreakSweep scans for users who missed the epoch immediately after
// their last active one and appends a STREAK_BROKEN event for each. Streak
// loss is an auditable ledger entry, not a silent recompute artifact, and
// this sweep is the only writer allowed to decrease currentStreak.
//
// Idempotent: the event's idempotency key is derived from the last active
// epoch, so re-running the sweep (or overlapping cron fires) breaks each
// streak at most once. Per-user failures are logged and skipped.
func RunStreakSweep(db *gorm.DB, now time.Time) (broken int, err error) {
	var states []models.UserProgressionState
	result := db.Where(`"currentStreak" > 0`).FindInBatches(&states, 200, func(tx *gorm.DB, batch int) error {
		for i := range states {
			state := states[i]

			var user models.User
			if err := db.First(&user, "id = ?", state.UserID).Error; err != nil {
				logger.Error().Err(err).Str("user_id", state.UserID).Msg("Streak sweep: user lookup failed")
				continue
			}

			loc := epoch.LoadLocation(user.Timezone)
			today := epoch.DailyKey(now, loc)

			// Grace: active today, or yesterday (the streak is still alive
			// until a full epoch passes with no completion).
			if state.LastActiveEpochKey == today || state.LastActiveEpochKey == epoch.PrevDailyKey(today) {
				continue
			}

			if err := breakStreak(db, state.UserID, state.LastActiveEpochKey); err != nil {
				logger.Error().Err(err).Str("user_id", state.UserID).Msg("Streak sweep: break failed")
				continue
			}
			broken++
		}
		return nil
	})
	if result.Error != nil {
		return broken, result.Error
	}

	if broken > 0 {
		logger.Info().Int("broken", broken).Msg("Streak sweep complete")
	}
	return broken, nil
}

func breakStreak(db *gorm.DB, userID, lastActive string) error {
	mu := lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	return db.Transaction(func(tx *gorm.DB) error {
		// Re-check under the lock: a completion may have landed since the
		// scan and revived the streak for a newer epoch.
		var state models.UserProgressionState
		if err := tx.First(&state, `"userId" = ?`, userID).Error; err != nil {
			return err
		}
		if state.CurrentStreak == 0 || state.LastActiveEpochKey != lastActive {
			return nil
		}

		ev := &models.ProgressionEvent{
			UserID:         userID,
			Kind:           models.EventStreakBroken,
			XPDelta:        0,
			EpochKey:       epoch.NextDailyKey(lastActive),
			Reason:         "no completion after " + lastActive,
			IdempotencyKey: "streak_broken:" + lastActive,
		}
		created, err := appendEventTx(tx, ev)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		_, err = foldEventTx(tx, ev)
		return err
	})
}
