package persistence

import (
	"context"
	"fmt"

	"github.com/hibikido/hibikido/domain/catalog"
	"github.com/hibikido/hibikido/internal/database"
	"gorm.io/gorm"
)

// SegmentStore implements catalog.SegmentStore using GORM.
type SegmentStore struct {
	database.Repository[catalog.Segment, SegmentModel]
}

// NewSegmentStore creates a new SegmentStore.
func NewSegmentStore(db database.Database) SegmentStore {
	return SegmentStore{
		Repository: database.NewRepository[catalog.Segment, SegmentModel](db, SegmentMapper{}, "segment"),
	}
}

// Save inserts a segment and returns it with its assigned id. An unknown
// source path or segmentation id is a dangling reference.
func (s SegmentStore) Save(ctx context.Context, segment catalog.Segment) (catalog.Segment, error) {
	model, err := database.WithTransactionResult(ctx, s.Database(), func(tx *gorm.DB) (SegmentModel, error) {
		var count int64
		if err := tx.Model(&RecordingModel{}).Where("path = ?", segment.SourcePath()).Count(&count).Error; err != nil {
			return SegmentModel{}, err
		}
		if count == 0 {
			return SegmentModel{}, fmt.Errorf("%w: recording %q", catalog.ErrDanglingReference, segment.SourcePath())
		}

		if err := tx.Model(&SegmentationModel{}).Where("id = ?", segment.SegmentationID()).Count(&count).Error; err != nil {
			return SegmentModel{}, err
		}
		if count == 0 {
			return SegmentModel{}, fmt.Errorf("%w: segmentation %q", catalog.ErrDanglingReference, segment.SegmentationID())
		}

		model := s.Mapper().ToModel(segment)
		if err := tx.Create(&model).Error; err != nil {
			return SegmentModel{}, err
		}
		return model, nil
	})
	if err != nil {
		return catalog.Segment{}, fmt.Errorf("save segment: %w", err)
	}
	return s.Mapper().ToDomain(model), nil
}

// Update rewrites an existing segment by id.
func (s SegmentStore) Update(ctx context.Context, segment catalog.Segment) error {
	model := s.Mapper().ToModel(segment)
	if result := s.DB(ctx).Save(&model); result.Error != nil {
		return fmt.Errorf("update segment: %w", result.Error)
	}
	return nil
}

// FindByID returns the segment with the given id.
func (s SegmentStore) FindByID(ctx context.Context, id int64) (catalog.Segment, error) {
	return s.FindOne(ctx, catalog.WithID(id))
}

// FindByRow returns the segment owning the given vector-index row.
func (s SegmentStore) FindByRow(ctx context.Context, row int) (catalog.Segment, error) {
	return s.FindOne(ctx, catalog.WithEmbeddingRow(row))
}

// ByRecording returns the segments of one recording ordered by start.
func (s SegmentStore) ByRecording(ctx context.Context, sourcePath string) ([]catalog.Segment, error) {
	return s.Find(ctx, catalog.WithSourcePath(sourcePath), catalog.WithOrderAsc("start"))
}

// All returns every segment ordered by id.
func (s SegmentStore) All(ctx context.Context) ([]catalog.Segment, error) {
	return s.Find(ctx, catalog.WithOrderAsc("id"))
}

// ClearRows detaches every segment from the vector index. Clearing before
// rows are reassigned keeps the unique row constraint out of the way.
func (s SegmentStore) ClearRows(ctx context.Context) error {
	result := s.DB(ctx).Model(&SegmentModel{}).
		Where("embedding_row IS NOT NULL").
		Update("embedding_row", nil)
	if result.Error != nil {
		return fmt.Errorf("clear segment rows: %w", result.Error)
	}
	return nil
}

// Count returns the number of segments.
func (s SegmentStore) Count(ctx context.Context) (int64, error) {
	return s.Repository.Count(ctx)
}
