package rbac

import (
	"context"
	"fmt"

	"github.com/devedd/neurochat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type roleDef struct {
	Name        string
	Description string
	Permissions []string
}

var permissionDefs = []models.Permission{
	{Name: PermUsersRead, Description: "List and view users"},
	{Name: PermUsersActivate, Description: "Activate or deactivate users"},
	{Name: PermUsersPromote, Description: "Grant the admin role"},
}

var roleDefs = []roleDef{
	{Name: models.RoleAdmin, Description: "Full administrative access", Permissions: []string{PermUsersRead, PermUsersActivate, PermUsersPromote}},
	{Name: "support", Description: "Read-only user support", Permissions: []string{PermUsersRead}},
	{Name: "user", Description: "Regular account"},
}

// Seed creates the default roles and permissions. Running it again only adds
// what is missing.
func Seed(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perms := make(map[string]string, len(permissionDefs))
		for _, def := range permissionDefs {
			p := models.Permission{}
			if err := tx.Where(models.Permission{Name: def.Name}).
				Attrs(models.Permission{Description: def.Description}).
				FirstOrCreate(&p).Error; err != nil {
				return fmt.Errorf("seed permission %s: %w", def.Name, err)
			}
			perms[p.Name] = p.ID
		}

		for _, def := range roleDefs {
			r := models.Role{}
			if err := tx.Where(models.Role{Name: def.Name}).
				Attrs(models.Role{Description: def.Description}).
				FirstOrCreate(&r).Error; err != nil {
				return fmt.Errorf("seed role %s: %w", def.Name, err)
			}
			for _, pname := range def.Permissions {
				link := models.RolePermission{RoleID: r.ID, PermissionID: perms[pname]}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
					return fmt.Errorf("seed %s -> %s: %w", def.Name, pname, err)
				}
			}
		}
		return nil
	})
}
