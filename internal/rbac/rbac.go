package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/devedd/neurochat/internal/auth"
	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/metrics"
	"github.com/devedd/neurochat/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	PermUsersRead     = "users.read"
	PermUsersActivate = "users.activate"
	PermUsersPromote  = "users.promote"
)

// Engine answers permission questions straight from the database.
type Engine struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewEngine(db *gorm.DB, log *zap.Logger) *Engine {
	return &Engine{db: db, log: log.Named("rbac")}
}

// EffectivePermissions is the union of the permissions of every role the user
// holds, loaded in one query.
func (e *Engine) EffectivePermissions(ctx context.Context, userID string) (map[string]struct{}, error) {
	var names []string
	err := e.db.WithContext(ctx).
		Model(&models.Permission{}).
		Distinct().
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ?", userID).
		Pluck("permissions.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set, nil
}

func (e *Engine) HasPermission(ctx context.Context, userID, name string) (bool, error) {
	perms, err := e.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	_, ok := perms[name]
	return ok, nil
}

// RequirePermission rejects callers whose current roles do not grant name.
// It must run after the auth middleware.
func (e *Engine) RequirePermission(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.IdentityFrom(c)
		if !ok {
			common.FailErr(c, common.ErrAuthRequired)
			return
		}
		allowed, err := e.HasPermission(c.Request.Context(), id.UserID, name)
		if err != nil {
			e.log.Error("permission check failed", zap.String("user_id", id.UserID), zap.String("permission", name), zap.Error(err))
			common.FailErr(c, common.ErrInternal)
			return
		}
		if !allowed {
			metrics.AuthFailures.WithLabelValues("forbidden").Inc()
			e.log.Info("permission denied", zap.String("user_id", id.UserID), zap.String("permission", name))
			common.FailErr(c, common.ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequireAdmin is the coarse gate for read-only admin views. Mutating admin
// actions use RequirePermission.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.IdentityFrom(c)
		if !ok {
			common.FailErr(c, common.ErrAuthRequired)
			return
		}
		if !id.IsAdmin {
			metrics.AuthFailures.WithLabelValues("forbidden").Inc()
			common.FailErr(c, common.ErrForbidden.WithMessage("admin only"))
			return
		}
		c.Next()
	}
}

// AssignRole gives userID the named role. Returns false when the user already
// held it.
func AssignRole(ctx context.Context, db *gorm.DB, userID, roleName string) (bool, error) {
	assigned := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.Where("name = ?", roleName).First(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.ErrNotFound.WithMessage(fmt.Sprintf("role %q not found", roleName))
			}
			return err
		}

		var n int64
		if err := tx.Model(&models.UserRole{}).
			Where("user_id = ? AND role_id = ?", userID, role.ID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Create(&models.UserRole{UserID: userID, RoleID: role.ID}).Error; err != nil {
			return err
		}
		assigned = true
		return nil
	})
	if err != nil {
		// a concurrent assignment won the insert
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		if _, ok := common.AsAppError(err); ok {
			return false, err
		}
		return false, fmt.Errorf("assign role %s: %w", roleName, err)
	}
	return assigned, nil
}

// Catalog lists every role with its permissions.
func Catalog(ctx context.Context, db *gorm.DB) ([]models.Role, error) {
	var roles []models.Role
	if err := db.WithContext(ctx).Preload("Permissions").Order("name").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}
