package repository

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/goal_vault/model"
)

type TxRepository struct {
	db *gorm.DB
}

func NewTxRepository(db *gorm.DB) *TxRepository {
	return &TxRepository{db: db}
}

func (r *TxRepository) Create(ctx context.Context, lt *model.LedgerTransaction) error {
	if lt.Status == "" {
		lt.Status = model.TxSubmitted
	}
	return r.db.WithContext(ctx).Create(lt).Error
}

func (r *TxRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.LedgerTransaction, error) {
	var lt model.LedgerTransaction
	if err := r.db.WithContext(ctx).First(&lt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lt, nil
}

// Outstanding returns the goal's non-terminal transaction, if any. The
// orchestrator allows one outstanding ledger operation per goal at a time.
func (r *TxRepository) Outstanding(ctx context.Context, goalID uuid.UUID) (*model.LedgerTransaction, error) {
	var lt model.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("goal_id = ? AND status = ?", goalID, model.TxSubmitted).
		First(&lt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lt, nil
}

func (r *TxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).Model(&model.LedgerTransaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": model.TxFailed, "fail_reason": reason}).Error
}

func (r *TxRepository) SetHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).Model(&model.LedgerTransaction{}).
		Where("id = ?", id).
		Update("tx_hash", hash).Error
}

// ListByGoal returns a goal's transactions newest-first, with the same
// unordered fallback as goal listings.
func (r *TxRepository) ListByGoal(ctx context.Context, goalID uuid.UUID) ([]model.LedgerTransaction, error) {
	var txs []model.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("goal_id = ?", goalID).
		Order("created_at desc").
		Find(&txs).Error
	if err == nil {
		return txs, nil
	}
	if err := r.db.WithContext(ctx).Where("goal_id = ?", goalID).Find(&txs).Error; err != nil {
		return nil, err
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
	return txs, nil
}
