package users

import (
	"context"
	"testing"

	"github.com/devedd/neurochat/internal/auth"
	"github.com/devedd/neurochat/internal/cache"
	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/models"
	"github.com/devedd/neurochat/internal/pagination"
	"github.com/devedd/neurochat/internal/rbac"
	"github.com/devedd/neurochat/internal/store/redisstore"
	"github.com/devedd/neurochat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*Service, *gorm.DB, *redisstore.Store) {
	t.Helper()
	gdb := testutil.OpenDB(t)
	store, _ := testutil.OpenCache(t)
	v, err := auth.NewPasswordVerifier("placeholder")
	require.NoError(t, err)
	return NewService(gdb, store, v, zaptest.NewLogger(t)), gdb, store
}

func mustCreate(t *testing.T, s *Service, name string) *View {
	t.Helper()
	v, err := s.Create(context.Background(), CreateInput{Username: name, Email: name + "@Example.com", Password: "secret"})
	require.NoError(t, err)
	return v
}

func TestCreate(t *testing.T) {
	s, gdb, store := newService(t)
	ctx := context.Background()

	v := mustCreate(t, s, "alice")
	assert.Equal(t, "alice@example.com", v.Email)
	assert.True(t, v.IsActive)

	var row models.User
	require.NoError(t, gdb.First(&row, "id = ?", v.ID).Error)
	assert.Equal(t, "temp_hash_secret", row.PasswordHash)

	ok, err := store.Exists(ctx, cache.UserKey(v.ID))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Create(ctx, CreateInput{Username: "alice", Email: "other@example.com", Password: "secret"})
	assert.ErrorIs(t, err, common.ErrConflict)
	_, err = s.Create(ctx, CreateInput{Username: "alice2", Email: "ALICE@example.com", Password: "secret"})
	assert.ErrorIs(t, err, common.ErrConflict)
	_, err = s.Create(ctx, CreateInput{Username: "x"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestGet_CacheAside(t *testing.T) {
	s, _, store := newService(t)
	ctx := context.Background()
	v := mustCreate(t, s, "bob")

	// write-through means the first read is already served from cache
	got, src, err := s.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, cache.SourceCache, src)
	assert.Equal(t, "bob", got.Username)

	require.NoError(t, store.Delete(ctx, cache.UserKey(v.ID)))
	_, src, err = s.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, cache.SourcePrimary, src)

	_, src, err = s.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, cache.SourceCache, src)

	_, _, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, _, err = s.GetOwn(ctx, "someone-else", v.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdate_WriteThroughAndListInvalidation(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	v := mustCreate(t, s, "carol")

	p := pagination.Params{Page: 1, Limit: 10}
	page, src, err := s.List(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, cache.SourcePrimary, src)
	assert.Equal(t, int64(1), page.Total)

	_, src, err = s.List(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, cache.SourceCache, src)

	name := "Carol"
	updated, err := s.Update(ctx, v.ID, v.ID, UpdateInput{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Carol", updated.FirstName)

	got, src, err := s.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, cache.SourceCache, src)
	assert.Equal(t, "Carol", got.FirstName)

	page, src, err = s.List(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, cache.SourcePrimary, src)
	assert.Equal(t, "Carol", page.Items[0].FirstName)

	_, err = s.Update(ctx, v.ID, v.ID, UpdateInput{})
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = s.Update(ctx, "intruder", v.ID, UpdateInput{FirstName: &name})
	assert.ErrorIs(t, err, common.ErrNotFound)

	other := mustCreate(t, s, "dave")
	taken := "carol"
	_, err = s.Update(ctx, other.ID, other.ID, UpdateInput{Username: &taken})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestList_Validation(t *testing.T) {
	s, _, _ := newService(t)
	_, _, err := s.List(context.Background(), pagination.Params{Limit: 500})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSetActive(t *testing.T) {
	s, gdb, store := newService(t)
	ctx := context.Background()
	v := mustCreate(t, s, "erin")

	out, err := s.SetActive(ctx, v.ID, false)
	require.NoError(t, err)
	assert.False(t, out.IsActive)

	var cached View
	ok, err := store.GetJSON(ctx, cache.UserKey(v.ID), &cached)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, cached.IsActive)

	var row models.User
	require.NoError(t, gdb.First(&row, "id = ?", v.ID).Error)
	assert.False(t, row.IsActive)

	_, err = s.SetActive(ctx, "missing", true)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete_CascadesAndInvalidates(t *testing.T) {
	s, gdb, store := newService(t)
	ctx := context.Background()
	v := mustCreate(t, s, "frank")

	conv := models.ConversationSession{UserID: v.ID, Language: "en", ModelUsed: "gpt-5", Platform: "web", IsActive: true}
	require.NoError(t, gdb.Create(&conv).Error)
	require.NoError(t, gdb.Create(&models.ChatMessage{UserID: v.ID, SessionID: conv.ID, Role: "user", Content: "hi", Source: "text"}).Error)
	_, err := s.PutMemory(ctx, v.ID, "prefers short answers")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, v.ID, v.ID))

	var n int64
	gdb.Model(&models.ChatMessage{}).Where("user_id = ?", v.ID).Count(&n)
	assert.Zero(t, n)
	gdb.Model(&models.ConversationSession{}).Where("user_id = ?", v.ID).Count(&n)
	assert.Zero(t, n)

	for _, k := range []string{cache.UserKey(v.ID), cache.UserMemoryKey(v.ID)} {
		ok, err := store.Exists(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, k)
	}
	assert.ErrorIs(t, s.Delete(ctx, v.ID, v.ID), common.ErrNotFound)
}

func TestMemory(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	v := mustCreate(t, s, "gina")

	_, _, err := s.GetMemory(ctx, v.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.PutMemory(ctx, v.ID, "first")
	require.NoError(t, err)
	m, err := s.PutMemory(ctx, v.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", m.MemorySummary)

	got, src, err := s.GetMemory(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, cache.SourceCache, src)
	assert.Equal(t, "second", got.MemorySummary)

	_, err = s.PutMemory(ctx, v.ID, "  ")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestPromote(t *testing.T) {
	s, gdb, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, rbac.Seed(ctx, gdb))
	v := mustCreate(t, s, "hank")

	_, promoted, err := s.Promote(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, promoted)

	_, promoted, err = s.Promote(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, promoted)

	_, _, err = s.Promote(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAdminList_ScopedKey(t *testing.T) {
	s, _, store := newService(t)
	ctx := context.Background()
	mustCreate(t, s, "ivy")

	p := pagination.Params{Page: 1, Limit: 5, SortBy: "username", Order: "asc"}
	_, src, err := s.AdminList(ctx, "admin-1", p)
	require.NoError(t, err)
	assert.Equal(t, cache.SourcePrimary, src)

	_, src, err = s.AdminList(ctx, "admin-2", p)
	require.NoError(t, err)
	assert.Equal(t, cache.SourcePrimary, src)

	ok, err := store.Exists(ctx, cache.AdminUsersListKey("admin-1", pagination.Params{Page: 1, Limit: 5, SortBy: "username", Order: "asc"}))
	require.NoError(t, err)
	assert.True(t, ok)

	// admin lists are registered under the users list index too
	mustCreate(t, s, "jack")
	_, src, err = s.AdminList(ctx, "admin-1", p)
	require.NoError(t, err)
	assert.Equal(t, cache.SourcePrimary, src)
}
