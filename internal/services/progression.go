package services

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/levelup-app/levelup-backend/internal/config"
	"github.com/levelup-app/levelup-backend/internal/epoch"
	"github.com/levelup-app/levelup-backend/internal/models"
	apperrors "github.com/levelup-app/levelup-backend/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Per-user writes serialize on a striped mutex so streak/XP folds observe a
// consistent event order. Different users land on different stripes and
// never contend (hash collisions aside).
var userLocks [64]sync.Mutex

func lockUser(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &userLocks[h.Sum32()%uint32(len(userLocks))]
}

func levelBaseXP() int {
	if config.AppConfig != nil && config.AppConfig.LevelBaseXP > 0 {
		return config.AppConfig.LevelBaseXP
	}
	return 100
}

// LevelForXP maps total XP to a level via doubling thresholds: with the
// default base of 100, level 2 starts at 100 XP, level 3 at 300, level 4 at
// 700, and so on. Pure, total, monotonic non-decreasing.
func LevelForXP(xp int) int {
	level := 1
	step := levelBaseXP()
	for xp >= step {
		xp -= step
		step *= 2
		level++
	}
	return level
}

// Weekly epoch keys look like "2024-W11"; daily ones like "2024-03-14".
// Only daily activity drives streaks.
func isDailyEpochKey(key string) bool {
	return key != "" && !strings.Contains(key, "W")
}

// applyEvent folds one ledger event into a progression snapshot. This is the
// single place streak and level rules live: both the incremental fast path
// and the full rebuild go through it, which is what keeps them equivalent.
func applyEvent(state *models.UserProgressionState, ev *models.ProgressionEvent) {
	state.XPTotal += ev.XPDelta
	state.Level = LevelForXP(state.XPTotal)
	if ev.Seq > state.LastEventSeq {
		state.LastEventSeq = ev.Seq
	}

	switch ev.Kind {
	case models.EventQuestCompleted:
		if !isDailyEpochKey(ev.EpochKey) {
			return // weekly completions grant XP but do not touch the daily streak
		}
		switch state.LastActiveEpochKey {
		case ev.EpochKey:
			// already active this epoch, streak unchanged
		case epoch.PrevDailyKey(ev.EpochKey):
			state.CurrentStreak++
		default:
			// first-ever activity, or a gap of two or more days
			state.CurrentStreak = 1
		}
		if state.CurrentStreak > state.LongestStreak {
			state.LongestStreak = state.CurrentStreak
		}
		state.LastActiveEpochKey = ev.EpochKey
	case models.EventStreakBroken:
		state.CurrentStreak = 0
	}
}

func newState(userID string) *models.UserProgressionState {
	return &models.UserProgressionState{
		UserID: userID,
		Level:  LevelForXP(0),
	}
}

// appendEventTx assigns the next per-user sequence number and inserts the
// event. A duplicate idempotency key makes the insert a silent no-op and the
// function reports created=false, so retried writes can never double-grant.
func appendEventTx(tx *gorm.DB, ev *models.ProgressionEvent) (created bool, err error) {
	var maxSeq int64
	if err := tx.Model(&models.ProgressionEvent{}).
		Where(`"userId" = ?`, ev.UserID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		return false, err
	}
	ev.Seq = maxSeq + 1

	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "userId"}, {Name: "idempotencyKey"}},
		DoNothing: true,
	}).Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// foldEventTx applies one freshly appended event to the cached snapshot
// (incremental evaluation) inside the same transaction as the append, so an
// assignment can never end up Completed without its XP being reflected.
func foldEventTx(tx *gorm.DB, ev *models.ProgressionEvent) (*models.UserProgressionState, error) {
	state := newState(ev.UserID)
	err := tx.First(state, `"userId" = ?`, ev.UserID).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	applyEvent(state, ev)
	// Upsert: the snapshot row may not exist yet and the primary key is
	// always set, so a plain Save would update zero rows.
	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(state).Error; err != nil {
		return nil, err
	}
	return state, nil
}

// RebuildState replays a user's full ledger in sequence order. Used for
// repair and migration, and as the correctness oracle in tests: it must
// always agree with the incremental fold.
func RebuildState(db *gorm.DB, userID string) (*models.UserProgressionState, error) {
	var events []models.ProgressionEvent
	if err := db.Where(`"userId" = ?`, userID).
		Order("seq asc").
		Find(&events).Error; err != nil {
		return nil, err
	}

	state := newState(userID)
	for i := range events {
		applyEvent(state, &events[i])
	}
	return state, nil
}

// RepairState rebuilds the snapshot from the ledger and persists it,
// then repositions the user on the leaderboard.
func RepairState(db *gorm.DB, userID string) (*models.UserProgressionState, error) {
	mu := lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	state, err := RebuildState(db, userID)
	if err != nil {
		return nil, err
	}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(state).Error; err != nil {
		return nil, err
	}
	Board.Upsert(userID, state.XPTotal, state.Level, state.LastEventSeq)
	return state, nil
}

// GetProgression returns the cached snapshot, building it from the ledger on
// first read.
func GetProgression(db *gorm.DB, userID string) (*models.UserProgressionState, error) {
	var state models.UserProgressionState
	err := db.First(&state, `"userId" = ?`, userID).Error
	if err == nil {
		return &state, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperrors.NotFound("user not found")
	}
	return RepairState(db, userID)
}

// GrantXP appends a MANUAL_XP event on behalf of an admin. Every XP-bearing
// event needs either a completed assignment or an explicit reason; this is
// the explicit-reason path.
func GrantXP(db *gorm.DB, userID string, amount int, reason string, now time.Time) (*models.UserProgressionState, error) {
	if amount == 0 {
		return nil, apperrors.BadRequest("amount must be non-zero")
	}
	if reason == "" {
		return nil, apperrors.BadRequest("a reason is required for manual XP grants")
	}

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, err
	}

	mu := lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	loc := epoch.LoadLocation(user.Timezone)
	var state *models.UserProgressionState
	err := db.Transaction(func(tx *gorm.DB) error {
		ev := &models.ProgressionEvent{
			UserID:         userID,
			Kind:           models.EventManualXP,
			XPDelta:        amount,
			EpochKey:       epoch.DailyKey(now, loc),
			Reason:         reason,
			IdempotencyKey: "manual:" + uuid.New().String(),
		}
		created, err := appendEventTx(tx, ev)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		state, err = foldEventTx(tx, ev)
		return err
	})
	if err != nil {
		return nil, err
	}

	Board.Upsert(userID, state.XPTotal, state.Level, state.LastEventSeq)
	InvalidateLeaderboardCache()
	return state, nil
}
