package database

import (
	"context"

	"gorm.io/gorm"
)

// WithTransaction runs fn inside one transaction. The transaction commits
// when fn returns nil and rolls back when it returns an error or panics.
// fn's error comes back unwrapped so callers can branch on sentinels.
func WithTransaction(ctx context.Context, db Database, fn func(tx *gorm.DB) error) error {
	return db.Session(ctx).Transaction(fn)
}

// WithTransactionResult runs fn inside one transaction and returns its
// result. Commit and rollback follow WithTransaction; on error the zero
// value is returned.
func WithTransactionResult[T any](ctx context.Context, db Database, fn func(tx *gorm.DB) (T, error)) (T, error) {
	var result T
	err := WithTransaction(ctx, db, func(tx *gorm.DB) error {
		var err error
		result, err = fn(tx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
