package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleAdmin is the role whose holders pass the coarse admin gate.
const RoleAdmin = "admin"

type Role struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt   time.Time `json:"created_at"`

	Permissions []Permission `gorm:"many2many:role_permissions;constraint:OnDelete:CASCADE" json:"permissions,omitempty"`
}

func (Role) TableName() string { return "roles" }

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

type Permission struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Permission) TableName() string { return "permissions" }

func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type RolePermission struct {
	RoleID       string `gorm:"type:varchar(36);primaryKey"`
	PermissionID string `gorm:"type:varchar(36);primaryKey"`
}

func (RolePermission) TableName() string { return "role_permissions" }

type UserRole struct {
	UserID     string    `gorm:"type:varchar(36);primaryKey"`
	RoleID     string    `gorm:"type:varchar(36);primaryKey"`
	AssignedAt time.Time `gorm:"autoCreateTime"`
}

func (UserRole) TableName() string { return "user_roles" }
