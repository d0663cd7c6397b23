package chat

import (
	"context"
	"errors"

	"github.com/devedd/neurochat/internal/models"
	"github.com/devedd/neurochat/internal/pagination"
	"gorm.io/gorm"
)

var (
	SessionSortFields = pagination.Fields{
		"started_at": "started_at",
		"ended_at":   "ended_at",
		"title":      "title",
		"language":   "language",
		"model_used": "model_used",
		"platform":   "platform",
		"is_active":  "is_active",
	}
	MessageSortFields = pagination.Fields{
		"created_at": "created_at",
		"role":       "role",
		"source":     "source",
	}
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// GetOwnedSession returns nil when the session does not exist or belongs to
// someone else.
func (r *Repo) GetOwnedSession(ctx context.Context, userID, sessionID string) (*models.ConversationSession, error) {
	var s models.ConversationSession
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) GetMessage(ctx context.Context, messageID string) (*models.ChatMessage, error) {
	var m models.ChatMessage
	if err := r.db.WithContext(ctx).Where("id = ?", messageID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *Repo) ListSessions(ctx context.Context, userID string, p pagination.Params) ([]models.ConversationSession, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ConversationSession{}).Where("user_id = ?", userID)
	q = pagination.ApplySort(q, SessionSortFields, p.SortBy, p.Order)
	return pagination.Paginate[models.ConversationSession](ctx, q, p.Page, p.Limit)
}

func (r *Repo) ListMessages(ctx context.Context, sessionID string, p pagination.Params) ([]models.ChatMessage, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ChatMessage{}).Where("session_id = ?", sessionID)
	q = pagination.ApplySort(q, MessageSortFields, p.SortBy, p.Order)
	return pagination.Paginate[models.ChatMessage](ctx, q, p.Page, p.Limit)
}
