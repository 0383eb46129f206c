package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestScope string

const (
	ScopeDaily  QuestScope = "DAILY"
	ScopeWeekly QuestScope = "WEEKLY"
	ScopeGlobal QuestScope = "GLOBAL" // admin-pushed, keyed on the daily epoch
)

func (s QuestScope) Valid() bool {
	return s == ScopeDaily || s == ScopeWeekly || s == ScopeGlobal
}

// QuestTemplate is an authored, versioned quest definition. Published
// versions are immutable: a content edit (requirement or reward) creates a
// new row with Version+1 under the same Slug; only metadata (title,
// description) may change in place.
type QuestTemplate struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updatedAt" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index;column:deletedAt" json:"-"`

	Slug    string `gorm:"uniqueIndex:idx_template_slug_version,priority:1;not null" json:"slug"`
	Version int    `gorm:"uniqueIndex:idx_template_slug_version,priority:2;default:1" json:"version"`

	Scope       QuestScope `gorm:"type:text;not null" json:"scope"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`

	// Requirement: reach Target units of Metric ("sessions", "pages"...)
	Metric   string `json:"metric"`
	Target   int    `gorm:"default:1" json:"target"`
	RewardXP int    `gorm:"column:rewardXp;default:0" json:"rewardXp"`

	// Eligibility: empty applies to everyone, otherwise a mode slug the
	// user must have unlocked.
	RequiredMode string `gorm:"column:requiredMode" json:"requiredMode"`

	AuthoredBy string `gorm:"column:authoredBy" json:"authoredBy"` // admin user id or "system"
	Active     bool   `gorm:"default:true" json:"active"`          // only the latest version stays active
}

func (QuestTemplate) TableName() string {
	return "quest_templates"
}

func (t *QuestTemplate) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return
}

type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "ACTIVE"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
	AssignmentExpired   AssignmentStatus = "EXPIRED"
)

// QuestAssignment is a user's per-epoch instance of a template. The
// (userId, templateId, epochKey) triple is unique, which is what makes
// concurrent materialization idempotent: the losing insert is a no-op.
// Target and RewardXP are copied from the template at materialization so a
// later template version never mutates an assignment already in play.
type QuestAssignment struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`

	UserID     string        `gorm:"column:userId;uniqueIndex:idx_assignment_triple,priority:1;not null" json:"userId"`
	TemplateID string        `gorm:"column:templateId;uniqueIndex:idx_assignment_triple,priority:2;not null" json:"templateId"`
	EpochKey   string        `gorm:"column:epochKey;uniqueIndex:idx_assignment_triple,priority:3;not null" json:"epochKey"`
	Template   QuestTemplate `gorm:"foreignKey:TemplateID" json:"template,omitempty"`

	Scope    QuestScope       `gorm:"type:text;not null" json:"scope"`
	Progress int              `gorm:"default:0" json:"progress"`
	Target   int              `gorm:"default:1" json:"target"`
	RewardXP int              `gorm:"column:rewardXp;default:0" json:"rewardXp"`
	Status   AssignmentStatus `gorm:"type:text;default:'ACTIVE';index" json:"status"`

	CompletedAt *time.Time `gorm:"column:completedAt" json:"completedAt,omitempty"`
}

func (QuestAssignment) TableName() string {
	return "quest_assignments"
}

func (a *QuestAssignment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return
}
