package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/devedd/neurochat/internal/cache"
	"github.com/devedd/neurochat/internal/metrics"
	"github.com/devedd/neurochat/internal/models"
	"github.com/devedd/neurochat/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sweeper deactivates accounts that have not logged in for StaleAfter.
type Sweeper struct {
	db         *gorm.DB
	cache      cache.Store
	staleAfter time.Duration
	log        *zap.Logger
}

func NewSweeper(db *gorm.DB, store cache.Store, staleAfter time.Duration, log *zap.Logger) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = 90 * 24 * time.Hour
	}
	return &Sweeper{db: db, cache: store, staleAfter: staleAfter, log: log.Named("maintenance")}
}

// DeactivateStaleUsers flips is_active for every active user whose last login
// is older than now-StaleAfter. Users who never logged in are left alone.
func (s *Sweeper) DeactivateStaleUsers(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.UTC().Add(-s.staleAfter)

	var ids []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("is_active = ? AND last_login_at < ?", true, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&models.User{}).Where("id IN ?", ids).Update("is_active", false).Error
	})
	if err != nil {
		return 0, fmt.Errorf("deactivate stale users: %w", err)
	}
	if len(ids) == 0 {
		s.log.Info("no stale users", zap.Time("cutoff", cutoff))
		return 0, nil
	}

	var changed []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&changed).Error; err != nil {
		return 0, fmt.Errorf("reload deactivated users: %w", err)
	}
	for i := range changed {
		if err := cache.WriteThrough(ctx, s.cache, cache.UserKey(changed[i].ID), users.ViewOf(&changed[i]), users.UserTTL); err != nil {
			return 0, err
		}
	}
	if err := cache.Invalidate(ctx, s.cache, nil, cache.UsersListIndex); err != nil {
		return 0, err
	}

	metrics.UsersDeactivated.Add(float64(len(ids)))
	s.log.Info("stale users deactivated", zap.Int("count", len(ids)), zap.Time("cutoff", cutoff))
	return len(ids), nil
}
