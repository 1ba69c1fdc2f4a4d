package orm

import "gorm.io/gorm"

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ApplyPagination applies offset/limit; page <= 0 or limit <= 0 leaves the query untouched.
func ApplyPagination(db *gorm.DB, page, limit int) *gorm.DB {
	if page > 0 && limit > 0 {
		offset := (page - 1) * limit
		return db.Offset(offset).Limit(limit)
	}
	return db
}

// NormalizePage clamps user supplied paging values.
func NormalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}
