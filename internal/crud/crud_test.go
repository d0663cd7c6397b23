package crud

import (
	"context"
	"testing"

	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/models"
	"github.com/devedd/neurochat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func newUser(name string) *models.User {
	return &models.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "temp_hash_pw",
		IsActive:     true,
	}
}

func TestCreate_PopulatesGeneratedFields(t *testing.T) {
	gdb := testutil.OpenDB(t)
	ctx := context.Background()

	u := newUser("alice")
	require.NoError(t, Create(ctx, gdb, u))
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := GetByID[models.User](ctx, gdb, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)
}

func TestCreate_DuplicateIsConflict(t *testing.T) {
	gdb := testutil.OpenDB(t)
	ctx := context.Background()

	require.NoError(t, Create(ctx, gdb, newUser("bob")))
	err := Create(ctx, gdb, newUser("bob"))
	assert.ErrorIs(t, err, common.ErrConflict)

	var n int64
	require.NoError(t, gdb.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestUpdate(t *testing.T) {
	gdb := testutil.OpenDB(t)
	ctx := context.Background()

	u := newUser("carol")
	require.NoError(t, Create(ctx, gdb, u))

	err := Update(ctx, gdb, u, map[string]any{})
	assert.ErrorIs(t, err, common.ErrValidation)

	require.NoError(t, Update(ctx, gdb, u, map[string]any{"is_active": false, "first_name": "Carol"}))
	assert.False(t, u.IsActive)
	assert.Equal(t, "Carol", u.FirstName)

	var row models.User
	require.NoError(t, gdb.First(&row, "id = ?", u.ID).Error)
	assert.False(t, row.IsActive)
}

func TestUpdate_RollsBackOnFailure(t *testing.T) {
	gdb := testutil.OpenDB(t)
	ctx := context.Background()

	require.NoError(t, Create(ctx, gdb, newUser("dave")))
	erin := newUser("erin")
	require.NoError(t, Create(ctx, gdb, erin))

	err := Update(ctx, gdb, erin, map[string]any{"first_name": "Erin", "email": "dave@example.com"})
	assert.ErrorIs(t, err, common.ErrConflict)

	var row models.User
	require.NoError(t, gdb.First(&row, "id = ?", erin.ID).Error)
	assert.Equal(t, "", row.FirstName)
	assert.Equal(t, "erin@example.com", row.Email)
}

func TestDelete_Cascades(t *testing.T) {
	gdb := testutil.OpenDB(t)
	ctx := context.Background()

	u := newUser("frank")
	require.NoError(t, Create(ctx, gdb, u))
	sess := &models.ConversationSession{UserID: u.ID, Language: "en", ModelUsed: "gpt-5", Platform: "web", IsActive: true}
	require.NoError(t, Create(ctx, gdb, sess))
	msg := &models.ChatMessage{UserID: u.ID, SessionID: sess.ID, Role: models.MessageRoleUser, Content: "hi", Source: models.MessageSourceText}
	require.NoError(t, Create(ctx, gdb, msg))
	require.NoError(t, gdb.Create(&models.UserMemory{UserID: u.ID, MemorySummary: "likes go"}).Error)

	require.NoError(t, Delete(ctx, gdb, u, clause.Associations))

	for _, m := range []any{&models.User{}, &models.ConversationSession{}, &models.ChatMessage{}, &models.UserMemory{}} {
		var n int64
		require.NoError(t, gdb.Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T", m)
	}

	err := Delete(ctx, gdb, u)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetByID_Absent(t *testing.T) {
	gdb := testutil.OpenDB(t)

	got, err := GetByID[models.User](context.Background(), gdb, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}
