package pagination

import (
	"context"
	"fmt"
	"strings"

	"github.com/devedd/neurochat/internal/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params are the list query parameters shared by every list endpoint.
type Params struct {
	Page   int    `form:"page" json:"page"`
	Limit  int    `form:"limit" json:"limit"`
	SortBy string `form:"sort_by" json:"sort_by"`
	Order  string `form:"order" json:"order"`
}

func (p Params) Offset() int { return (p.Page - 1) * p.Limit }

// Normalize fills defaults and rejects out-of-range page/limit.
// Order is folded to "asc" or "desc".
func (p Params) Normalize(defaultSort, defaultOrder string) (Params, error) {
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Page < 1 {
		return p, common.ErrValidation.WithMessage("page must be >= 1")
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		return p, common.ErrValidation.WithMessage(fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	if p.SortBy == "" {
		p.SortBy = defaultSort
	}
	if p.Order == "" {
		p.Order = defaultOrder
	}
	if strings.EqualFold(p.Order, "desc") {
		p.Order = "desc"
	} else {
		p.Order = "asc"
	}
	return p, nil
}

// Fields maps a client-facing sort name to a column.
type Fields map[string]string

// ApplySort orders q by field when field is allow-listed. Unknown fields leave
// q untouched: the caller gets unsorted results, not an error.
func ApplySort(q *gorm.DB, allowed Fields, field, order string) *gorm.DB {
	col, ok := allowed[field]
	if !ok {
		return q
	}
	desc := strings.EqualFold(order, "desc")
	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: desc})
	if col != "id" {
		// stable pages when the sort column has ties
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc})
	}
	return q
}

// Paginate runs a count over q and fetches the requested window.
func Paginate[T any](ctx context.Context, q *gorm.DB, page, limit int) ([]T, int64, error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 || limit > MaxLimit {
		limit = DefaultLimit
	}
	offset := (page - 1) * limit

	base := q.Session(&gorm.Session{})

	var total int64
	if err := q.Session(&gorm.Session{NewDB: true}).WithContext(ctx).
		Table("(?) AS sub", base).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	items := make([]T, 0)
	if total == 0 {
		return items, 0, nil
	}
	if err := base.WithContext(ctx).Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("fetch page: %w", err)
	}
	return items, total, nil
}

// Page is the envelope payload of every list endpoint.
type Page[T any] struct {
	Items []T    `json:"items"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Sort  string `json:"sort_by"`
	Order string `json:"order"`
}

func NewPage[T any](items []T, total int64, p Params) *Page[T] {
	if items == nil {
		items = make([]T, 0)
	}
	return &Page[T]{Items: items, Total: total, Page: p.Page, Limit: p.Limit, Sort: p.SortBy, Order: p.Order}
}
