// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/devedd/neurochat/internal/db"
	"github.com/devedd/neurochat/internal/store/redisstore"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDB returns a migrated in-memory sqlite database private to the test.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps the shared in-memory db free of lock contention
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// OpenCache returns a cache client backed by a fresh miniredis.
func OpenCache(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := redisstore.New(redisstore.Options{Addr: mr.Addr(), HMACSecret: "test-hmac-secret"}, zaptest.NewLogger(t))
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect cache: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}
