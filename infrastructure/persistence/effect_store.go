package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibikido/hibikido/domain/catalog"
	"github.com/hibikido/hibikido/internal/database"
	"gorm.io/gorm"
)

// EffectStore implements catalog.EffectStore using GORM.
type EffectStore struct {
	database.Repository[catalog.Effect, EffectModel]
}

// NewEffectStore creates a new EffectStore.
func NewEffectStore(db database.Database) EffectStore {
	return EffectStore{
		Repository: database.NewRepository[catalog.Effect, EffectModel](db, EffectMapper{}, "effect"),
	}
}

type effectUpsert struct {
	model   EffectModel
	created bool
}

// Upsert inserts the effect or, when the path is already registered,
// updates its description. The bool reports whether a new row was created.
func (s EffectStore) Upsert(ctx context.Context, effect catalog.Effect) (catalog.Effect, bool, error) {
	res, err := database.WithTransactionResult(ctx, s.Database(), func(tx *gorm.DB) (effectUpsert, error) {
		var existing EffectModel
		err := tx.Where("path = ?", effect.Path()).First(&existing).Error
		switch {
		case err == nil:
			existing.Name = effect.Name()
			existing.Description = effect.Description()
			if err := tx.Save(&existing).Error; err != nil {
				return effectUpsert{}, err
			}
			return effectUpsert{model: existing}, nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			model := s.Mapper().ToModel(effect)
			if err := tx.Create(&model).Error; err != nil {
				return effectUpsert{}, err
			}
			return effectUpsert{model: model, created: true}, nil
		default:
			return effectUpsert{}, err
		}
	})
	if err != nil {
		return catalog.Effect{}, false, fmt.Errorf("upsert effect: %w", err)
	}
	return s.Mapper().ToDomain(res.model), res.created, nil
}

// FindByPath returns the effect registered under path.
func (s EffectStore) FindByPath(ctx context.Context, path string) (catalog.Effect, error) {
	return s.FindOne(ctx, catalog.WithPath(path))
}

// Count returns the number of effects.
func (s EffectStore) Count(ctx context.Context) (int64, error) {
	return s.Repository.Count(ctx)
}
