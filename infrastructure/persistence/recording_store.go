package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibikido/hibikido/domain/catalog"
	"github.com/hibikido/hibikido/internal/database"
	"gorm.io/gorm"
)

// RecordingStore implements catalog.RecordingStore using GORM.
type RecordingStore struct {
	database.Repository[catalog.Recording, RecordingModel]
}

// NewRecordingStore creates a new RecordingStore.
func NewRecordingStore(db database.Database) RecordingStore {
	return RecordingStore{
		Repository: database.NewRepository[catalog.Recording, RecordingModel](db, RecordingMapper{}, "recording"),
	}
}

type recordingUpsert struct {
	model   RecordingModel
	created bool
}

// Upsert inserts the recording or, when the path is already registered,
// updates its description. The bool reports whether a new row was created.
func (s RecordingStore) Upsert(ctx context.Context, recording catalog.Recording) (catalog.Recording, bool, error) {
	res, err := database.WithTransactionResult(ctx, s.Database(), func(tx *gorm.DB) (recordingUpsert, error) {
		var existing RecordingModel
		err := tx.Where("path = ?", recording.Path()).First(&existing).Error
		switch {
		case err == nil:
			existing.Description = recording.Description()
			if err := tx.Save(&existing).Error; err != nil {
				return recordingUpsert{}, err
			}
			return recordingUpsert{model: existing}, nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			model := s.Mapper().ToModel(recording)
			if err := tx.Create(&model).Error; err != nil {
				return recordingUpsert{}, err
			}
			return recordingUpsert{model: model, created: true}, nil
		default:
			return recordingUpsert{}, err
		}
	})
	if err != nil {
		return catalog.Recording{}, false, fmt.Errorf("upsert recording: %w", err)
	}
	return s.Mapper().ToDomain(res.model), res.created, nil
}

// FindByPath returns the recording registered under path.
func (s RecordingStore) FindByPath(ctx context.Context, path string) (catalog.Recording, error) {
	return s.FindOne(ctx, catalog.WithPath(path))
}

// Count returns the number of recordings.
func (s RecordingStore) Count(ctx context.Context) (int64, error) {
	return s.Repository.Count(ctx)
}
