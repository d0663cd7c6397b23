package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username     string     `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"type:varchar(254);uniqueIndex;not null" json:"email"`
	FirstName    string     `gorm:"type:varchar(100)" json:"first_name"`
	LastName     string     `gorm:"type:varchar(100)" json:"last_name"`
	PasswordHash string     `gorm:"type:varchar(256);not null" json:"-"`
	IsActive     bool       `gorm:"not null;index" json:"is_active"`
	LastLoginAt  *time.Time `gorm:"index" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Roles        []Role                `gorm:"many2many:user_roles;constraint:OnDelete:CASCADE" json:"-"`
	Memory       *UserMemory           `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	AuthSessions []UserSession         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Sessions     []ConversationSession `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Messages     []ChatMessage         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// UserMemory holds the assistant-maintained summary of a user. One row per user.
type UserMemory struct {
	UserID        string    `gorm:"type:varchar(36);primaryKey" json:"user_id"`
	MemorySummary string    `gorm:"type:text;not null" json:"memory_summary"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (UserMemory) TableName() string { return "user_memory" }
