package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is the engine's identity mirror. Credentials and sessions live in the
// external auth system; we only keep what progression needs: who the user is,
// their timezone for epoch resolution, and which modes they have unlocked.
type User struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updatedAt" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index;column:deletedAt" json:"-"`

	Username string `gorm:"uniqueIndex" json:"username"`
	Role     Role   `gorm:"type:text;default:'USER'" json:"role"`

	// IANA zone name, e.g. "Asia/Tokyo". Empty means UTC.
	Timezone string `json:"timezone"`

	// Comma-separated mode slugs ("founder,strategist"). Templates with a
	// RequiredMode only materialize for users who have unlocked it.
	UnlockedModes string `gorm:"column:unlockedModes" json:"unlockedModes"`
}

func (User) TableName() string {
	return "users"
}

// HasMode reports whether the user has unlocked the given mode slug.
func (u *User) HasMode(mode string) bool {
	if mode == "" {
		return true
	}
	for _, m := range strings.Split(u.UnlockedModes, ",") {
		if strings.TrimSpace(m) == mode {
			return true
		}
	}
	return false
}
