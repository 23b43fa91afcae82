package persistence

import (
	"context"
	"fmt"

	"github.com/hibikido/hibikido/domain/catalog"
	"github.com/hibikido/hibikido/internal/database"
	"gorm.io/gorm"
)

// PresetStore implements catalog.PresetStore using GORM.
type PresetStore struct {
	database.Repository[catalog.Preset, PresetModel]
}

// NewPresetStore creates a new PresetStore.
func NewPresetStore(db database.Database) PresetStore {
	return PresetStore{
		Repository: database.NewRepository[catalog.Preset, PresetModel](db, PresetMapper{}, "preset"),
	}
}

// Save inserts a preset and returns it with its assigned id. An unknown
// effect path is a dangling reference.
func (s PresetStore) Save(ctx context.Context, preset catalog.Preset) (catalog.Preset, error) {
	model, err := database.WithTransactionResult(ctx, s.Database(), func(tx *gorm.DB) (PresetModel, error) {
		var count int64
		if err := tx.Model(&EffectModel{}).Where("path = ?", preset.EffectPath()).Count(&count).Error; err != nil {
			return PresetModel{}, err
		}
		if count == 0 {
			return PresetModel{}, fmt.Errorf("%w: effect %q", catalog.ErrDanglingReference, preset.EffectPath())
		}

		model := s.Mapper().ToModel(preset)
		if err := tx.Create(&model).Error; err != nil {
			return PresetModel{}, err
		}
		return model, nil
	})
	if err != nil {
		return catalog.Preset{}, fmt.Errorf("save preset: %w", err)
	}
	return s.Mapper().ToDomain(model), nil
}

// Update rewrites an existing preset by id.
func (s PresetStore) Update(ctx context.Context, preset catalog.Preset) error {
	model := s.Mapper().ToModel(preset)
	if result := s.DB(ctx).Save(&model); result.Error != nil {
		return fmt.Errorf("update preset: %w", result.Error)
	}
	return nil
}

// FindByID returns the preset with the given id.
func (s PresetStore) FindByID(ctx context.Context, id int64) (catalog.Preset, error) {
	return s.FindOne(ctx, catalog.WithID(id))
}

// FindByRow returns the preset owning the given vector-index row.
func (s PresetStore) FindByRow(ctx context.Context, row int) (catalog.Preset, error) {
	return s.FindOne(ctx, catalog.WithEmbeddingRow(row))
}

// ByEffect returns the presets of one effect ordered by id.
func (s PresetStore) ByEffect(ctx context.Context, effectPath string) ([]catalog.Preset, error) {
	return s.Find(ctx, catalog.WithEffectPath(effectPath), catalog.WithOrderAsc("id"))
}

// All returns every preset ordered by id.
func (s PresetStore) All(ctx context.Context) ([]catalog.Preset, error) {
	return s.Find(ctx, catalog.WithOrderAsc("id"))
}

// ClearRows detaches every preset from the vector index. Clearing before
// rows are reassigned keeps the unique row constraint out of the way.
func (s PresetStore) ClearRows(ctx context.Context) error {
	result := s.DB(ctx).Model(&PresetModel{}).
		Where("embedding_row IS NOT NULL").
		Update("embedding_row", nil)
	if result.Error != nil {
		return fmt.Errorf("clear preset rows: %w", result.Error)
	}
	return nil
}

// Count returns the number of presets.
func (s PresetStore) Count(ctx context.Context) (int64, error) {
	return s.Repository.Count(ctx)
}
