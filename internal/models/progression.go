package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventKind string

const (
	EventQuestCompleted EventKind = "QUEST_COMPLETED"
	EventManualXP       EventKind = "MANUAL_XP"
	EventStreakBroken   EventKind = "STREAK_BROKEN"
)

// ProgressionEvent is the append-only ledger: the source of truth for XP,
// level and streaks. Rows are never updated or deleted. Seq is a per-user
// monotonic sequence giving completions for the same user a total order;
// IdempotencyKey deduplicates retried appends (double completion, re-run
// sweep) at the database level.
type ProgressionEvent struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`

	UserID string `gorm:"column:userId;uniqueIndex:idx_event_user_seq,priority:1;uniqueIndex:idx_event_user_idem,priority:1;not null" json:"userId"`
	Seq    int64  `gorm:"uniqueIndex:idx_event_user_seq,priority:2;not null" json:"seq"`

	Kind    EventKind `gorm:"type:text;not null" json:"kind"`
	XPDelta int       `gorm:"column:xpDelta;default:0" json:"xpDelta"`

	// Set for QUEST_COMPLETED events; nil for manual grants and breaks.
	AssignmentID *string `gorm:"column:assignmentId" json:"assignmentId,omitempty"`

	// Epoch the event counts toward (daily key for streak-bearing events).
	EpochKey string `gorm:"column:epochKey" json:"epochKey"`

	// Audit trail: template slug for completions, admin-supplied reason for
	// manual grants, last active epoch for streak breaks.
	Reason string `json:"reason"`

	IdempotencyKey string `gorm:"column:idempotencyKey;uniqueIndex:idx_event_user_idem,priority:2;not null" json:"-"`
}

func (ProgressionEvent) TableName() string {
	return "progression_events"
}

func (e *ProgressionEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return
}

// UserProgressionState is the derived snapshot over a user's ledger. It is a
// cache: RebuildState replays the ledger and must produce an identical row.
// LastEventSeq records how far the fold has consumed; it doubles as the
// monotone version for leaderboard updates.
type UserProgressionState struct {
	UserID    string    `gorm:"column:userId;primaryKey;type:text" json:"userId"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`

	XPTotal int `gorm:"column:xpTotal;default:0" json:"xpTotal"`
	Level   int `gorm:"default:1" json:"level"`

	CurrentStreak int `gorm:"column:currentStreak;default:0" json:"currentStreak"`
	LongestStreak int `gorm:"column:longestStreak;default:0" json:"longestStreak"`

	LastActiveEpochKey string `gorm:"column:lastActiveEpochKey" json:"lastActiveEpochKey"`
	LastEventSeq       int64  `gorm:"column:lastEventSeq;default:0" json:"lastEventSeq"`
}

func (UserProgressionState) TableName() string {
	return "user_progression_states"
}
