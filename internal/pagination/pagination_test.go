package pagination

import (
	"context"
	"fmt"
	"testing"

	"github.com/devedd/neurochat/internal/common"
	"github.com/devedd/neurochat/internal/models"
	"github.com/devedd/neurochat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var userFields = Fields{"username": "username", "created_at": "created_at"}

func seedUsers(t *testing.T, gdb *gorm.DB, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		u := models.User{
			Username:     fmt.Sprintf("user%02d", i),
			Email:        fmt.Sprintf("user%02d@example.com", i),
			PasswordHash: "x",
			IsActive:     true,
		}
		require.NoError(t, gdb.Create(&u).Error)
	}
}

func TestNormalize(t *testing.T) {
	p, err := Params{}.Normalize("created_at", "desc")
	require.NoError(t, err)
	assert.Equal(t, Params{Page: 1, Limit: 20, SortBy: "created_at", Order: "desc"}, p)

	p, err = Params{Page: 3, Limit: 100, SortBy: "username", Order: "DESC"}.Normalize("created_at", "asc")
	require.NoError(t, err)
	assert.Equal(t, "desc", p.Order)
	assert.Equal(t, 200, p.Offset())

	p, err = Params{Order: "sideways"}.Normalize("created_at", "desc")
	require.NoError(t, err)
	assert.Equal(t, "asc", p.Order)

	_, err = Params{Page: -1}.Normalize("", "")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = Params{Limit: 101}.Normalize("", "")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = Params{Limit: -5}.Normalize("", "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestPaginate_Empty(t *testing.T) {
	gdb := testutil.OpenDB(t)

	items, total, err := Paginate[models.User](context.Background(), gdb.Model(&models.User{}), 1, 20)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Equal(t, int64(0), total)
}

func TestPaginate_SecondPage(t *testing.T) {
	gdb := testutil.OpenDB(t)
	seedUsers(t, gdb, 25)

	q := ApplySort(gdb.Model(&models.User{}), userFields, "username", "asc")
	items, total, err := Paginate[models.User](context.Background(), q, 2, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	require.Len(t, items, 5)
	assert.Equal(t, "user20", items[0].Username)
	assert.Equal(t, "user24", items[4].Username)
}

func TestPaginate_CountHonoursFilters(t *testing.T) {
	gdb := testutil.OpenDB(t)
	seedUsers(t, gdb, 6)
	require.NoError(t, gdb.Model(&models.User{}).Where("username IN ?", []string{"user01", "user02"}).
		Update("is_active", false).Error)

	q := gdb.Model(&models.User{}).Where("is_active = ?", true)
	items, total, err := Paginate[models.User](context.Background(), q, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, items, 3)
}

func TestApplySort(t *testing.T) {
	gdb := testutil.OpenDB(t)
	seedUsers(t, gdb, 3)

	desc := ApplySort(gdb.Model(&models.User{}), userFields, "username", "desc")
	items, _, err := Paginate[models.User](context.Background(), desc, 1, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "user02", items[0].Username)

	// unknown fields are ignored rather than rejected
	q := gdb.Model(&models.User{})
	assert.Same(t, q, ApplySort(q, userFields, "nonexistent_field", "desc"))
	items, total, err := Paginate[models.User](context.Background(), ApplySort(q, userFields, "password_hash; DROP TABLE users", "desc"), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 3)
}
