package models

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserSession is an authenticated login. The row is the source of truth; the
// cache holds a {user_id, is_active} projection keyed by SessionKey.
type UserSession struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string    `gorm:"type:varchar(36);index;not null" json:"user_id"`
	SessionKey string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"-"`
	IsActive   bool      `gorm:"not null" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (UserSession) TableName() string { return "user_sessions" }

func (s *UserSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SessionKey == "" {
		key, err := NewSessionKey()
		if err != nil {
			return err
		}
		s.SessionKey = key
	}
	return nil
}

// NewSessionKey returns 48 random bytes, URL-safe base64 encoded (64 chars).
func NewSessionKey() (string, error) {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
