package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devedd/neurochat/internal/auth"
	"github.com/devedd/neurochat/internal/cache"
	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/crud"
	"github.com/devedd/neurochat/internal/models"
	"github.com/devedd/neurochat/internal/pagination"
	"github.com/devedd/neurochat/internal/rbac"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	UserTTL   = 5 * time.Minute
	ListTTL   = 2 * time.Minute
	MemoryTTL = 5 * time.Minute
)

var SortFields = pagination.Fields{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"username":   "username",
	"email":      "email",
	"is_active":  "is_active",
}

// View is the public projection of a user, and what user:{id} caches.
type View struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ViewOf(u *models.User) *View {
	return &View{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type Service struct {
	db       *gorm.DB
	cache    cache.Store
	verifier auth.PasswordVerifier
	log      *zap.Logger
}

func NewService(db *gorm.DB, store cache.Store, verifier auth.PasswordVerifier, log *zap.Logger) *Service {
	return &Service{db: db, cache: store, verifier: verifier, log: log.Named("users")}
}

type CreateInput struct {
	Username  string `json:"username" binding:"required,max=150"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*View, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, common.ErrValidation.WithMessage("username, email and password required")
	}
	if err := s.ensureUnique(ctx, "", in.Username, in.Email); err != nil {
		return nil, err
	}

	hash, err := s.verifier.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := crud.Create(ctx, s.db, u); err != nil {
		return nil, err
	}

	v := ViewOf(u)
	if err := s.afterWrite(ctx, v); err != nil {
		return nil, err
	}
	s.log.Info("user created", zap.String("user_id", u.ID))
	return v, nil
}

func (s *Service) ensureUnique(ctx context.Context, exceptID, username, email string) error {
	if username == "" && email == "" {
		return nil
	}
	q := s.db.WithContext(ctx).Model(&models.User{})
	switch {
	case username != "" && email != "":
		q = q.Where("username = ? OR email = ?", username, email)
	case username != "":
		q = q.Where("username = ?", username)
	default:
		q = q.Where("email = ?", email)
	}
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return fmt.Errorf("check duplicates: %w", err)
	}
	if n > 0 {
		return common.ErrConflict.WithMessage("username or email already registered")
	}
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*View, error) {
	u, err := crud.GetByID[models.User](ctx, s.db, id)
	if err != nil || u == nil {
		return nil, err
	}
	return ViewOf(u), nil
}

func (s *Service) Get(ctx context.Context, id string) (*View, cache.Source, error) {
	v, src, err := cache.FetchCacheFirst(ctx, s.cache, s.log, cache.UserKey(id), UserTTL, func(ctx context.Context) (*View, error) {
		return s.load(ctx, id)
	})
	if err != nil {
		return nil, "", err
	}
	if v == nil {
		return nil, src, common.ErrNotFound.WithMessage("user not found")
	}
	return v, src, nil
}

// GetOwn returns the user only when the requester is that user; anything else
// reads as not found.
func (s *Service) GetOwn(ctx context.Context, requesterID, id string) (*View, cache.Source, error) {
	if requesterID != id {
		return nil, "", common.ErrNotFound.WithMessage("user not found")
	}
	return s.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, p pagination.Params) (*pagination.Page[View], cache.Source, error) {
	p, err := p.Normalize("created_at", "desc")
	if err != nil {
		return nil, "", err
	}
	return s.list(ctx, cache.UsersListKey(p), p)
}

// AdminList is List keyed by the acting admin.
func (s *Service) AdminList(ctx context.Context, adminID string, p pagination.Params) (*pagination.Page[View], cache.Source, error) {
	p, err := p.Normalize("created_at", "desc")
	if err != nil {
		return nil, "", err
	}
	return s.list(ctx, cache.AdminUsersListKey(adminID, p), p)
}

func (s *Service) list(ctx context.Context, key string, p pagination.Params) (*pagination.Page[View], cache.Source, error) {
	page, src, err := cache.FetchCacheFirst(ctx, s.cache, s.log, key, ListTTL, func(ctx context.Context) (*pagination.Page[View], error) {
		q := pagination.ApplySort(s.db.WithContext(ctx).Model(&models.User{}), SortFields, p.SortBy, p.Order)
		rows, total, err := pagination.Paginate[models.User](ctx, q, p.Page, p.Limit)
		if err != nil {
			return nil, err
		}
		views := make([]View, 0, len(rows))
		for i := range rows {
			views = append(views, *ViewOf(&rows[i]))
		}
		return pagination.NewPage(views, total, p), nil
	}, cache.UsersListIndex)
	if err != nil {
		return nil, "", err
	}
	return page, src, nil
}

type UpdateInput struct {
	Username  *string `json:"username" binding:"omitempty,max=150"`
	Email     *string `json:"email" binding:"omitempty,email"`
	FirstName *string `json:"first_name" binding:"omitempty,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,max=100"`
	Password  *string `json:"password" binding:"omitempty,min=6"`
}

func (s *Service) Update(ctx context.Context, requesterID, id string, in UpdateInput) (*View, error) {
	if requesterID != id {
		return nil, common.ErrNotFound.WithMessage("user not found")
	}
	fields := map[string]any{}
	var username, email string
	if in.Username != nil {
		username = strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, common.ErrValidation.WithMessage("username cannot be empty")
		}
		fields["username"] = username
	}
	if in.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			return nil, common.ErrValidation.WithMessage("email cannot be empty")
		}
		fields["email"] = email
	}
	if in.FirstName != nil {
		fields["first_name"] = *in.FirstName
	}
	if in.LastName != nil {
		fields["last_name"] = *in.LastName
	}
	if in.Password != nil {
		if *in.Password == "" {
			return nil, common.ErrValidation.WithMessage("password cannot be empty")
		}
		hash, err := s.verifier.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		fields["password_hash"] = hash
	}
	if len(fields) == 0 {
		return nil, common.ErrValidation.WithMessage("no fields to update")
	}
	if err := s.ensureUnique(ctx, id, username, email); err != nil {
		return nil, err
	}
	return s.update(ctx, id, fields)
}

func (s *Service) update(ctx context.Context, id string, fields map[string]any) (*View, error) {
	u, err := crud.GetByID[models.User](ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, common.ErrNotFound.WithMessage("user not found")
	}
	if err := crud.Update(ctx, s.db, u, fields); err != nil {
		return nil, err
	}
	v := ViewOf(u)
	if err := s.afterWrite(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// afterWrite refreshes user:{id} and drops every cached user list.
func (s *Service) afterWrite(ctx context.Context, v *View) error {
	if err := cache.WriteThrough(ctx, s.cache, cache.UserKey(v.ID), v, UserTTL); err != nil {
		return err
	}
	return cache.Invalidate(ctx, s.cache, nil, cache.UsersListIndex)
}

// Delete removes the account with everything it owns.
func (s *Service) Delete(ctx context.Context, requesterID, id string) error {
	if requesterID != id {
		return common.ErrNotFound.WithMessage("user not found")
	}
	u, err := crud.GetByID[models.User](ctx, s.db, id)
	if err != nil {
		return err
	}
	if u == nil {
		return common.ErrNotFound.WithMessage("user not found")
	}

	var sessionKeys, conversationIDs []string
	if err := s.db.WithContext(ctx).Model(&models.UserSession{}).Where("user_id = ?", id).
		Pluck("session_key", &sessionKeys).Error; err != nil {
		return fmt.Errorf("list auth sessions: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.ConversationSession{}).Where("user_id = ?", id).
		Pluck("id", &conversationIDs).Error; err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	if err := crud.Delete(ctx, s.db, u, clause.Associations); err != nil {
		return err
	}

	keys := []string{cache.UserKey(id), cache.UserMemoryKey(id)}
	indexes := []string{cache.UsersListIndex, cache.UserSessionsIndex(id)}
	for _, k := range sessionKeys {
		keys = append(keys, cache.AuthSessionKey(k))
	}
	for _, cid := range conversationIDs {
		keys = append(keys, cache.ConversationKey(id, cid))
		indexes = append(indexes, cache.SessionMessagesIndex(cid))
	}
	if err := cache.Invalidate(ctx, s.cache, keys, indexes...); err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("user_id", id))
	return nil
}

func (s *Service) GetMemory(ctx context.Context, userID string) (*models.UserMemory, cache.Source, error) {
	m, src, err := cache.FetchCacheFirst(ctx, s.cache, s.log, cache.UserMemoryKey(userID), MemoryTTL, func(ctx context.Context) (*models.UserMemory, error) {
		var m models.UserMemory
		err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load memory: %w", err)
		}
		return &m, nil
	})
	if err != nil {
		return nil, "", err
	}
	if m == nil {
		return nil, src, common.ErrNotFound.WithMessage("memory not found")
	}
	return m, src, nil
}

// PutMemory creates or replaces the user's memory summary.
func (s *Service) PutMemory(ctx context.Context, userID, summary string) (*models.UserMemory, error) {
	if strings.TrimSpace(summary) == "" {
		return nil, common.ErrValidation.WithMessage("memory_summary required")
	}
	m := models.UserMemory{UserID: userID, MemorySummary: summary}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"memory_summary", "updated_at"}),
		}).Create(&m).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).First(&m).Error
	})
	if err != nil {
		return nil, fmt.Errorf("save memory: %w", err)
	}
	if err := cache.WriteThrough(ctx, s.cache, cache.UserMemoryKey(userID), &m, MemoryTTL); err != nil {
		return nil, err
	}
	return &m, nil
}

// SetActive flips the account flag. Deactivated users are rejected at
// authentication, so their session mirrors are left to expire.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*View, error) {
	v, err := s.update(ctx, id, map[string]any{"is_active": active})
	if err != nil {
		return nil, err
	}
	s.log.Info("user active flag changed", zap.String("user_id", id), zap.Bool("is_active", active))
	return v, nil
}

// Promote grants the admin role. promoted is false when the user already held it.
func (s *Service) Promote(ctx context.Context, id string) (v *View, promoted bool, err error) {
	u, err := crud.GetByID[models.User](ctx, s.db, id)
	if err != nil {
		return nil, false, err
	}
	if u == nil {
		return nil, false, common.ErrNotFound.WithMessage("user not found")
	}
	promoted, err = rbac.AssignRole(ctx, s.db, id, models.RoleAdmin)
	if err != nil {
		return nil, false, err
	}
	if promoted {
		s.log.Info("user promoted", zap.String("user_id", id))
	}
	return ViewOf(u), promoted, nil
}
