// Package crud holds the transactional write primitives every mutating
// operation goes through. Each one commits or rolls back as a unit and leaves
// the passed entity refreshed from the database, so generated ids and
// timestamps are populated. Cache maintenance is the caller's job.
package crud

import (
	"context"
	"errors"
	"fmt"

	"github.com/devedd/neurochat/internal/common"
	"gorm.io/gorm"
)

// Create inserts v and reloads it.
func Create[T any](ctx context.Context, db *gorm.DB, v *T) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		return tx.First(v).Error
	})
	return translate("create", v, err)
}

// Update applies fields (column -> value) to v and reloads it.
// An empty field set is a validation failure.
func Update[T any](ctx context.Context, db *gorm.DB, v *T, fields map[string]any) error {
	if len(fields) == 0 {
		return common.ErrValidation.WithMessage("no fields to update")
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(v).Updates(fields).Error; err != nil {
			return err
		}
		return tx.First(v).Error
	})
	return translate("update", v, err)
}

// Delete removes v. associations names the relations deleted along with it
// (clause.Associations for all of them).
func Delete[T any](ctx context.Context, db *gorm.DB, v *T, associations ...string) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if len(associations) > 0 {
			q = q.Select(associations)
		}
		res := q.Delete(v)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return common.ErrNotFound
		}
		return nil
	})
	return translate("delete", v, err)
}

// GetByID returns nil, nil when no row matches.
func GetByID[T any](ctx context.Context, db *gorm.DB, id string, preload ...string) (*T, error) {
	q := db.WithContext(ctx)
	for _, p := range preload {
		q = q.Preload(p)
	}
	var v T
	if err := q.Where("id = ?", id).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %T %s: %w", v, id, err)
	}
	return &v, nil
}

func translate(op string, v any, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := common.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return common.ErrConflict.Wrap(err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return common.ErrNotFound.Wrap(err)
	}
	return fmt.Errorf("%s %T: %w", op, v, err)
}
