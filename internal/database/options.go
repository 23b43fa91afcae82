package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/hibikido/hibikido/domain/catalog"
)

// ApplyOptions applies a full catalog query (conditions, ordering,
// pagination) to a GORM session.
func ApplyOptions(db *gorm.DB, options ...catalog.Option) *gorm.DB {
	q := catalog.Build(options...)
	db = applyConditions(db, q)

	for _, ord := range q.Orders() {
		dir := "ASC"
		if !ord.Ascending() {
			dir = "DESC"
		}
		db = db.Order(fmt.Sprintf("%s %s", ord.Field(), dir))
	}

	if q.LimitValue() > 0 {
		db = db.Limit(q.LimitValue())
	}
	if q.OffsetValue() > 0 {
		db = db.Offset(q.OffsetValue())
	}
	return db
}

// ApplyConditions applies only the WHERE conditions, for COUNT queries
// where ordering and pagination have no meaning.
func ApplyConditions(db *gorm.DB, options ...catalog.Option) *gorm.DB {
	return applyConditions(db, catalog.Build(options...))
}

func applyConditions(db *gorm.DB, q catalog.Query) *gorm.DB {
	for _, cond := range q.Conditions() {
		if cond.In() {
			db = db.Where(fmt.Sprintf("%s IN ?", cond.Field()), cond.Value())
		} else {
			db = db.Where(fmt.Sprintf("%s = ?", cond.Field()), cond.Value())
		}
	}
	return db
}
