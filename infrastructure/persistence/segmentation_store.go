package persistence

import (
	"context"
	"fmt"

	"github.com/hibikido/hibikido/domain/catalog"
	"github.com/hibikido/hibikido/internal/database"
	"gorm.io/gorm"
)

// SegmentationStore implements catalog.SegmentationStore using GORM.
type SegmentationStore struct {
	database.Repository[catalog.Segmentation, SegmentationModel]
}

// NewSegmentationStore creates a new SegmentationStore.
func NewSegmentationStore(db database.Database) SegmentationStore {
	return SegmentationStore{
		Repository: database.NewRepository[catalog.Segmentation, SegmentationModel](db, SegmentationMapper{}, "segmentation"),
	}
}

// Save inserts a segmentation. A taken id is a conflict.
func (s SegmentationStore) Save(ctx context.Context, segmentation catalog.Segmentation) error {
	err := database.WithTransaction(ctx, s.Database(), func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&SegmentationModel{}).Where("id = ?", segmentation.ID()).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: segmentation %q", catalog.ErrConflict, segmentation.ID())
		}
		model := s.Mapper().ToModel(segmentation)
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("save segmentation: %w", err)
	}
	return nil
}

// FindByID returns the segmentation with the given natural id.
func (s SegmentationStore) FindByID(ctx context.Context, id string) (catalog.Segmentation, error) {
	return s.FindOne(ctx, catalog.WithKey(id))
}

// Count returns the number of segmentations.
func (s SegmentationStore) Count(ctx context.Context) (int64, error) {
	return s.Repository.Count(ctx)
}
