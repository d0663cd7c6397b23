package chat

import (
	"context"
	"strings"
	"time"

	"github.com/devedd/neurochat/internal/cache"
	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/crud"
	"github.com/devedd/neurochat/internal/models"
	"github.com/devedd/neurochat/internal/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	SessionTTL     = 24 * time.Hour
	SessionListTTL = 5 * time.Minute
	MessageTTL     = 5 * time.Minute
	MessageListTTL = 2 * time.Minute
)

const (
	defaultLanguage = "en"
	defaultModel    = "gpt-5"
	defaultPlatform = "web"
)

var (
	errSessionNotFound = common.ErrNotFound.WithMessage("session not found")
	errMessageNotFound = common.ErrNotFound.WithMessage("message not found")
)

type Service struct {
	db    *gorm.DB
	repo  *Repo
	cache cache.Store
	log   *zap.Logger
}

func NewService(db *gorm.DB, store cache.Store, log *zap.Logger) *Service {
	return &Service{db: db, repo: NewRepo(db), cache: store, log: log.Named("chat")}
}

type CreateSessionInput struct {
	Title        *string `json:"title" binding:"omitempty,max=255"`
	Language     string  `json:"language" binding:"max=50"`
	ModelUsed    string  `json:"model_used" binding:"max=100"`
	Platform     string  `json:"platform" binding:"max=50"`
	SystemPrompt *string `json:"system_prompt" binding:"omitempty,max=512"`
}

func (s *Service) CreateSession(ctx context.Context, userID string, in CreateSessionInput) (*models.ConversationSession, error) {
	sess := &models.ConversationSession{
		UserID:       userID,
		Title:        in.Title,
		Language:     orDefault(in.Language, defaultLanguage),
		ModelUsed:    orDefault(in.ModelUsed, defaultModel),
		Platform:     orDefault(in.Platform, defaultPlatform),
		SystemPrompt: in.SystemPrompt,
		IsActive:     true,
	}
	if err := crud.Create(ctx, s.db, sess); err != nil {
		return nil, err
	}
	if err := s.afterSessionWrite(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, userID, sessionID string) (*models.ConversationSession, cache.Source, error) {
	sess, src, err := cache.FetchCacheFirst(ctx, s.cache, s.log, cache.ConversationKey(userID, sessionID), SessionTTL,
		func(ctx context.Context) (*models.ConversationSession, error) {
			return s.repo.GetOwnedSession(ctx, userID, sessionID)
		})
	if err != nil {
		return nil, "", err
	}
	if sess == nil || sess.UserID != userID {
		return nil, src, errSessionNotFound
	}
	return sess, src, nil
}

func (s *Service) ListSessions(ctx context.Context, userID string, p pagination.Params) (*pagination.Page[models.ConversationSession], cache.Source, error) {
	p, err := p.Normalize("started_at", "desc")
	if err != nil {
		return nil, "", err
	}
	return cache.FetchCacheFirst(ctx, s.cache, s.log, cache.UserSessionsListKey(userID, p), SessionListTTL,
		func(ctx context.Context) (*pagination.Page[models.ConversationSession], error) {
			items, total, err := s.repo.ListSessions(ctx, userID, p)
			if err != nil {
				return nil, err
			}
			return pagination.NewPage(items, total, p), nil
		}, cache.UserSessionsIndex(userID))
}

type UpdateSessionInput struct {
	Title        *string `json:"title" binding:"omitempty,max=255"`
	Language     *string `json:"language" binding:"omitempty,max=50"`
	ModelUsed    *string `json:"model_used" binding:"omitempty,max=100"`
	Platform     *string `json:"platform" binding:"omitempty,max=50"`
	SystemPrompt *string `json:"system_prompt" binding:"omitempty,max=512"`
	IsActive     *bool   `json:"is_active"`
}

func (s *Service) UpdateSession(ctx context.Context, userID, sessionID string, in UpdateSessionInput) (*models.ConversationSession, error) {
	fields := map[string]any{}
	if in.Title != nil {
		fields["title"] = *in.Title
	}
	if in.Language != nil {
		fields["language"] = *in.Language
	}
	if in.ModelUsed != nil {
		fields["model_used"] = *in.ModelUsed
	}
	if in.Platform != nil {
		fields["platform"] = *in.Platform
	}
	if in.SystemPrompt != nil {
		fields["system_prompt"] = *in.SystemPrompt
	}
	if len(fields) == 0 && in.IsActive == nil {
		return nil, common.ErrValidation.WithMessage("no fields to update")
	}

	sess, err := s.repo.GetOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errSessionNotFound
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
		switch {
		case !*in.IsActive && sess.EndedAt == nil:
			fields["ended_at"] = time.Now().UTC()
		case *in.IsActive:
			fields["ended_at"] = nil
		}
	}

	if err := crud.Update(ctx, s.db, sess, fields); err != nil {
		return nil, err
	}
	if err := s.afterSessionWrite(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// DeleteSession removes the session and its messages.
func (s *Service) DeleteSession(ctx context.Context, userID, sessionID string) error {
	sess, err := s.repo.GetOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return errSessionNotFound
	}

	var messageIDs []string
	if err := s.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Pluck("id", &messageIDs).Error; err != nil {
		return err
	}

	if err := crud.Delete(ctx, s.db, sess, "Messages"); err != nil {
		return err
	}

	keys := []string{cache.ConversationKey(userID, sessionID)}
	for _, id := range messageIDs {
		keys = append(keys, cache.MessageKey(id))
	}
	return cache.Invalidate(ctx, s.cache, keys, cache.UserSessionsIndex(userID), cache.SessionMessagesIndex(sessionID))
}

func (s *Service) afterSessionWrite(ctx context.Context, sess *models.ConversationSession) error {
	if err := cache.WriteThrough(ctx, s.cache, cache.ConversationKey(sess.UserID, sess.ID), sess, SessionTTL); err != nil {
		return err
	}
	return cache.Invalidate(ctx, s.cache, nil, cache.UserSessionsIndex(sess.UserID))
}

type CreateMessageInput struct {
	SessionID string  `json:"session_id" binding:"required"`
	Role      string  `json:"role" binding:"omitempty,oneof=user assistant system"`
	Content   string  `json:"content" binding:"required"`
	Source    string  `json:"source" binding:"omitempty,oneof=text audio"`
	AudioData *string `json:"audio_data"`
}

func (s *Service) CreateMessage(ctx context.Context, userID string, in CreateMessageInput) (*models.ChatMessage, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, common.ErrValidation.WithMessage("content required")
	}
	role := orDefault(in.Role, models.MessageRoleUser)
	switch role {
	case models.MessageRoleUser, models.MessageRoleAssistant, models.MessageRoleSystem:
	default:
		return nil, common.ErrValidation.WithMessage("invalid role")
	}
	source := orDefault(in.Source, models.MessageSourceText)
	switch source {
	case models.MessageSourceText:
	case models.MessageSourceAudio:
		if in.AudioData == nil || *in.AudioData == "" {
			return nil, common.ErrValidation.WithMessage("audio_data required for audio messages")
		}
	default:
		return nil, common.ErrValidation.WithMessage("invalid source")
	}

	// ownership is checked against the database, not the cache
	sess, err := s.repo.GetOwnedSession(ctx, userID, in.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errSessionNotFound
	}

	msg := &models.ChatMessage{
		UserID:    userID,
		SessionID: sess.ID,
		Role:      role,
		Content:   in.Content,
		Source:    source,
		AudioData: in.AudioData,
	}
	if err := crud.Create(ctx, s.db, msg); err != nil {
		return nil, err
	}
	if err := cache.WriteThrough(ctx, s.cache, cache.MessageKey(msg.ID), msg, MessageTTL); err != nil {
		return nil, err
	}
	if err := cache.Invalidate(ctx, s.cache, nil, cache.SessionMessagesIndex(sess.ID)); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessage checks ownership on every read, cached or not.
func (s *Service) GetMessage(ctx context.Context, userID, messageID string) (*models.ChatMessage, cache.Source, error) {
	msg, src, err := cache.FetchCacheFirst(ctx, s.cache, s.log, cache.MessageKey(messageID), MessageTTL,
		func(ctx context.Context) (*models.ChatMessage, error) {
			return s.repo.GetMessage(ctx, messageID)
		})
	if err != nil {
		return nil, "", err
	}
	if msg == nil || msg.UserID != userID {
		return nil, src, errMessageNotFound
	}
	return msg, src, nil
}

// ListMessages pages through a session the caller owns. The list key is not
// identity-scoped, so ownership is established before the cache is consulted.
func (s *Service) ListMessages(ctx context.Context, userID, sessionID string, p pagination.Params) (*pagination.Page[models.ChatMessage], cache.Source, error) {
	p, err := p.Normalize("created_at", "asc")
	if err != nil {
		return nil, "", err
	}
	if _, _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return nil, "", err
	}
	return cache.FetchCacheFirst(ctx, s.cache, s.log, cache.SessionMessagesListKey(sessionID, p), MessageListTTL,
		func(ctx context.Context) (*pagination.Page[models.ChatMessage], error) {
			items, total, err := s.repo.ListMessages(ctx, sessionID, p)
			if err != nil {
				return nil, err
			}
			return pagination.NewPage(items, total, p), nil
		}, cache.SessionMessagesIndex(sessionID))
}

func (s *Service) DeleteMessage(ctx context.Context, userID, messageID string) error {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.UserID != userID {
		return errMessageNotFound
	}
	if err := crud.Delete(ctx, s.db, msg); err != nil {
		return err
	}
	return cache.Invalidate(ctx, s.cache, []string{cache.MessageKey(messageID)}, cache.SessionMessagesIndex(msg.SessionID))
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
