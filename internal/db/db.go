package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/devedd/neurochat/internal/models"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dialector picks the gorm driver from the DSN shape:
//
//	postgres://... or postgresql://...  -> postgres
//	sqlite:<path>                       -> sqlite (local dev, tests)
//	anything else                       -> mysql
func Dialector(dsn string) gorm.Dialector {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn)
	case strings.HasPrefix(dsn, "sqlite:"):
		return gormsqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	default:
		return mysql.Open(strings.TrimPrefix(dsn, "mysql://"))
	}
}

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(Dialector(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return gdb, nil
}

// Migrate creates or updates every table. The custom join tables must be
// registered before AutoMigrate so gorm does not create its own.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.SetupJoinTable(&models.User{}, "Roles", &models.UserRole{}); err != nil {
		return fmt.Errorf("setup user_roles: %w", err)
	}
	if err := gdb.SetupJoinTable(&models.Role{}, "Permissions", &models.RolePermission{}); err != nil {
		return fmt.Errorf("setup role_permissions: %w", err)
	}
	return gdb.AutoMigrate(
		&models.User{},
		&models.UserMemory{},
		&models.UserSession{},
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.UserRole{},
		&models.ConversationSession{},
		&models.ChatMessage{},
	)
}
