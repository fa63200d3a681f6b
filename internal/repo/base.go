package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by the content repositories (assets, blog, businesses,
// templates).
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx, or the bare connection when ctx is nil.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// DeleteWhere removes rows of model matching query and reports whether any
// row was affected, so callers can map a miss to not found.
func (b Base) DeleteWhere(ctx context.Context, model any, query string, args ...any) (bool, error) {
	res := b.DB(ctx).Where(query, args...).Delete(model)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
