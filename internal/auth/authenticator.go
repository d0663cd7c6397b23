package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devedd/neurochat/internal/cache"
	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/metrics"
	"github.com/devedd/neurochat/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Options struct {
	SessionTTL   time.Duration
	RememberTTL  time.Duration
	RehydrateTTL time.Duration
}

// sessionEntry is what the cache holds under session:{key}.
type sessionEntry struct {
	UserID   string `json:"user_id"`
	IsActive bool   `json:"is_active"`
}

// Authenticator issues opaque session keys and resolves them back to an
// Identity. The user_sessions row is authoritative; the cache mirrors it.
type Authenticator struct {
	db       *gorm.DB
	cache    cache.Store
	verifier PasswordVerifier
	opts     Options
	log      *zap.Logger
}

func NewAuthenticator(db *gorm.DB, store cache.Store, verifier PasswordVerifier, opts Options, log *zap.Logger) *Authenticator {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.RememberTTL <= 0 {
		opts.RememberTTL = 30 * 24 * time.Hour
	}
	if opts.RehydrateTTL <= 0 {
		opts.RehydrateTTL = 24 * time.Hour
	}
	return &Authenticator{db: db, cache: store, verifier: verifier, opts: opts, log: log.Named("auth")}
}

func (a *Authenticator) Verifier() PasswordVerifier { return a.verifier }

// Resolve maps a session key to the caller's identity: cache first, then the
// active row (rehydrating the cache), then the user row.
func (a *Authenticator) Resolve(ctx context.Context, sessionKey string) (*Identity, error) {
	if sessionKey == "" {
		return nil, common.ErrAuthRequired
	}
	key := cache.AuthSessionKey(sessionKey)

	var entry sessionEntry
	hit, err := a.cache.GetJSON(ctx, key, &entry)
	if err != nil {
		return nil, err
	}

	userID := entry.UserID
	switch {
	case hit && !entry.IsActive:
		return nil, common.ErrAuthExpired
	case !hit || userID == "":
		var row models.UserSession
		err := a.db.WithContext(ctx).
			Where("session_key = ? AND is_active = ?", sessionKey, true).
			First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, common.ErrAuthInvalid
			}
			return nil, fmt.Errorf("load session: %w", err)
		}
		userID = row.UserID
		if err := a.cache.SetJSON(ctx, key, sessionEntry{UserID: userID, IsActive: true}, a.opts.RehydrateTTL); err != nil {
			return nil, err
		}
		metrics.SessionRehydrations.Inc()
		a.log.Debug("session rehydrated", zap.String("user_id", userID))
	}

	var user models.User
	err = a.db.WithContext(ctx).Preload("Roles").Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrAuthUserGone
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrAuthAccountDisabled
	}

	id := &Identity{UserID: user.ID, IsActive: user.IsActive}
	for _, r := range user.Roles {
		if r.Name == models.RoleAdmin {
			id.IsAdmin = true
			break
		}
	}
	return id, nil
}

type LoginInput struct {
	// Identifier is an email or a username.
	Identifier string
	Password   string
	RememberMe bool
}

type LoginResult struct {
	SessionKey string        `json:"session_key"`
	UserID     string        `json:"user_id"`
	ExpiresIn  time.Duration `json:"-"`
}

// Login always opens a new session row; existing sessions are left alone.
func (a *Authenticator) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	ident := strings.TrimSpace(in.Identifier)
	if ident == "" || in.Password == "" {
		return nil, common.ErrValidation.WithMessage("credentials required")
	}

	var user models.User
	err := a.db.WithContext(ctx).
		Where("email = ? OR username = ?", strings.ToLower(ident), ident).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthFailures.WithLabelValues("bad_credentials").Inc()
			return nil, common.ErrAuthInvalid.WithMessage("invalid credentials")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !a.verifier.Verify(user.PasswordHash, in.Password) {
		metrics.AuthFailures.WithLabelValues("bad_credentials").Inc()
		return nil, common.ErrAuthInvalid.WithMessage("invalid credentials")
	}
	if !user.IsActive {
		return nil, common.ErrAuthAccountDisabled
	}

	sess := models.UserSession{UserID: user.ID, IsActive: true}
	now := time.Now().UTC()
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sess).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).UpdateColumn("last_login_at", now).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	ttl := a.opts.SessionTTL
	if in.RememberMe {
		ttl = a.opts.RememberTTL
	}
	if err := a.cache.SetJSON(ctx, cache.AuthSessionKey(sess.SessionKey), sessionEntry{UserID: user.ID, IsActive: true}, ttl); err != nil {
		return nil, err
	}

	a.log.Info("login", zap.String("user_id", user.ID), zap.Bool("remember_me", in.RememberMe))
	return &LoginResult{SessionKey: sess.SessionKey, UserID: user.ID, ExpiresIn: ttl}, nil
}

// Logout deactivates the row, then drops the cache mirror. A failed cache
// delete is returned: the mirror would otherwise keep the key usable.
func (a *Authenticator) Logout(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return common.ErrAuthRequired
	}
	res := a.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("session_key = ? AND is_active = ?", sessionKey, true).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate session: %w", res.Error)
	}
	key := cache.AuthSessionKey(sessionKey)
	if res.RowsAffected == 0 {
		// already inactive; a mirror left by an earlier failed logout still goes
		if err := a.cache.Delete(ctx, key); err != nil {
			a.log.Warn("drop stale session mirror failed", zap.Error(err))
		}
		return common.ErrAuthInvalid
	}
	if err := a.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("drop session mirror: %w", err)
	}
	a.log.Info("logout")
	return nil
}

// RevokeUserSessions drops the cache mirror of every session the user holds.
// Callers use it before removing or disabling an account.
func (a *Authenticator) RevokeUserSessions(ctx context.Context, userID string) error {
	var keys []string
	if err := a.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("user_id = ?", userID).
		Pluck("session_key", &keys).Error; err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	logical := make([]string, 0, len(keys))
	for _, k := range keys {
		logical = append(logical, cache.AuthSessionKey(k))
	}
	return a.cache.Delete(ctx, logical...)
}

// FailureReason labels auth errors for metrics.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, common.ErrAuthRequired):
		return "missing"
	case errors.Is(err, common.ErrAuthExpired):
		return "expired"
	case errors.Is(err, common.ErrAuthInvalid):
		return "invalid"
	case errors.Is(err, common.ErrAuthUserGone):
		return "user_gone"
	case errors.Is(err, common.ErrAuthAccountDisabled):
		return "disabled"
	default:
		return "error"
	}
}
