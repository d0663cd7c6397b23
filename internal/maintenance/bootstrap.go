package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devedd/neurochat/internal/auth"
	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/models"
	"github.com/devedd/neurochat/internal/rbac"
	"gorm.io/gorm"
)

type BootstrapInput struct {
	Username string
	Email    string
	Password string
}

// BootstrapAdmin makes sure an active admin account with the given credentials
// exists. Roles are seeded first. created reports whether the user row is new.
func BootstrapAdmin(ctx context.Context, db *gorm.DB, verifier auth.PasswordVerifier, in BootstrapInput) (u *models.User, created bool, err error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" || in.Username == "" || in.Password == "" {
		return nil, false, common.ErrValidation.WithMessage("username, email and password required")
	}
	if err := rbac.Seed(ctx, db); err != nil {
		return nil, false, err
	}

	hash, err := verifier.Hash(in.Password)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}

	var user models.User
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", in.Email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{Username: in.Username, Email: in.Email, PasswordHash: hash, IsActive: true}
			created = true
			return tx.Create(&user).Error
		case err != nil:
			return err
		}
		return tx.Model(&user).Updates(map[string]any{"password_hash": hash, "is_active": true}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, common.ErrConflict.WithMessage("username already taken")
		}
		return nil, false, fmt.Errorf("bootstrap admin: %w", err)
	}

	if _, err := rbac.AssignRole(ctx, db, user.ID, models.RoleAdmin); err != nil {
		return nil, false, err
	}
	return &user, created, nil
}
