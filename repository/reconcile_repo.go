package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/goal_vault/model"
)

type ReconcileRepository struct {
	db *gorm.DB
}

func NewReconcileRepository(db *gorm.DB) *ReconcileRepository {
	return &ReconcileRepository{db: db}
}

func (r *ReconcileRepository) Enqueue(ctx context.Context, entry *model.ReconcileEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListPending returns queued entries oldest-first so the sweep retries in
// confirmation order.
func (r *ReconcileRepository) ListPending(ctx context.Context, limit int) ([]model.ReconcileEntry, error) {
	var entries []model.ReconcileEntry
	err := r.db.WithContext(ctx).
		Order("created_at asc, id asc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *ReconcileRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.ReconcileEntry{}, id).Error
}

func (r *ReconcileRepository) RecordFailure(ctx context.Context, id uint, lastErr string) error {
	return r.db.WithContext(ctx).Model(&model.ReconcileEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastErr,
		}).Error
}
