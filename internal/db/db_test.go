package db

import (
	"fmt"
	"testing"

	"github.com/devedd/neurochat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector_ByDSN(t *testing.T) {
	assert.Equal(t, "postgres", Dialector("postgres://u:p@localhost:5432/x").Name())
	assert.Equal(t, "sqlite", Dialector("sqlite:file::memory:").Name())
	assert.Equal(t, "mysql", Dialector("app:apppass@tcp(127.0.0.1:3306)/x").Name())
}

func TestConnectAndMigrate_SQLite(t *testing.T) {
	dsn := fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	for _, m := range []any{
		&models.User{}, &models.UserSession{}, &models.Role{}, &models.Permission{},
		&models.RolePermission{}, &models.UserRole{}, &models.ConversationSession{},
		&models.ChatMessage{}, &models.UserMemory{},
	} {
		assert.True(t, gdb.Migrator().HasTable(m), "%T", m)
	}
	assert.True(t, gdb.Migrator().HasColumn(&models.UserRole{}, "assigned_at"))
}
