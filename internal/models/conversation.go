package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationSession is a chat thread. Not to be confused with UserSession.
type ConversationSession struct {
	ID           string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       string     `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Title        *string    `gorm:"type:varchar(255)" json:"title"`
	Language     string     `gorm:"type:varchar(50);not null" json:"language"`
	ModelUsed    string     `gorm:"type:varchar(100);not null" json:"model_used"`
	Platform     string     `gorm:"type:varchar(50);not null" json:"platform"`
	SystemPrompt *string    `gorm:"type:varchar(512)" json:"system_prompt"`
	StartedAt    time.Time  `gorm:"autoCreateTime;index" json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
	IsActive     bool       `gorm:"not null" json:"is_active"`

	Messages []ChatMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ConversationSession) TableName() string { return "sessions" }

func (s *ConversationSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"

	MessageSourceText  = "text"
	MessageSourceAudio = "audio"
)

type ChatMessage struct {
	ID        string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string `gorm:"type:varchar(36);index;not null" json:"user_id"`
	SessionID string `gorm:"type:varchar(36);index;not null" json:"session_id"`
	Role      string `gorm:"type:varchar(20);not null" json:"role"`
	Content   string `gorm:"type:text;not null" json:"content"`
	Source    string `gorm:"type:varchar(32);not null" json:"source"`
	// base64 audio for now
	AudioData *string   `gorm:"type:text" json:"audio_data,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
