package persistence

import (
	"context"
	"fmt"

	"github.com/hibikido/hibikido/domain/catalog"
	"github.com/hibikido/hibikido/internal/database"
	"gorm.io/gorm"
)

// PerformanceStore implements catalog.PerformanceStore using GORM.
type PerformanceStore struct {
	database.Repository[catalog.Performance, PerformanceModel]
	invocations InvocationMapper
}

// NewPerformanceStore creates a new PerformanceStore.
func NewPerformanceStore(db database.Database) PerformanceStore {
	return PerformanceStore{
		Repository: database.NewRepository[catalog.Performance, PerformanceModel](db, PerformanceMapper{}, "performance"),
	}
}

// Save inserts a performance. A taken id is a conflict.
func (s PerformanceStore) Save(ctx context.Context, performance catalog.Performance) error {
	err := database.WithTransaction(ctx, s.Database(), func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&PerformanceModel{}).Where("id = ?", performance.ID()).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: performance %q", catalog.ErrConflict, performance.ID())
		}
		model := s.Mapper().ToModel(performance)
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("save performance: %w", err)
	}
	return nil
}

// AppendInvocation appends one invocation to a performance's log.
func (s PerformanceStore) AppendInvocation(ctx context.Context, performanceID string, invocation catalog.Invocation) error {
	err := database.WithTransaction(ctx, s.Database(), func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&PerformanceModel{}).Where("id = ?", performanceID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: performance %q", catalog.ErrDanglingReference, performanceID)
		}
		model := s.invocations.ToModel(invocation)
		model.PerformanceID = performanceID
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("append invocation: %w", err)
	}
	return nil
}

// FindByID returns the performance with the given id, including its
// invocation log in append order.
func (s PerformanceStore) FindByID(ctx context.Context, id string) (catalog.Performance, error) {
	performance, err := s.FindOne(ctx, catalog.WithKey(id))
	if err != nil {
		return catalog.Performance{}, err
	}

	var models []InvocationModel
	result := database.ApplyOptions(
		s.DB(ctx).Model(&InvocationModel{}),
		catalog.WithPerformanceID(id),
		catalog.WithOrderAsc("id"),
	).Find(&models)
	if result.Error != nil {
		return catalog.Performance{}, fmt.Errorf("find invocations: %w", result.Error)
	}

	invocations := make([]catalog.Invocation, len(models))
	for i, m := range models {
		invocations[i] = s.invocations.ToDomain(m)
	}
	return catalog.ReconstructPerformance(performance.ID(), performance.Date(), invocations), nil
}

// Count returns the number of performances.
func (s PerformanceStore) Count(ctx context.Context) (int64, error) {
	return s.Repository.Count(ctx)
}
