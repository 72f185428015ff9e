package repository

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/goal_vault/model"
)

// ErrAlreadyBound guards against double-binding a ledger identifier from a
// duplicate confirmation event. A bound OnChainID is never overwritten.
var ErrAlreadyBound = errors.New("goal already bound to an on-chain id")

var ErrGoalNotFound = errors.New("goal not found")

type GoalRepository struct {
	db *gorm.DB
}

func NewGoalRepository(db *gorm.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

// CreateDraft persists a new goal in Draft state with no on-chain identifier.
func (r *GoalRepository) CreateDraft(ctx context.Context, goal *model.Goal) error {
	goal.State = model.StateDraft
	goal.OnChainID = nil
	goal.CurrentBalance = decimal.Zero
	goal.DepositCount = 0
	goal.IsActive = true
	goal.IsCompleted = false
	return r.db.WithContext(ctx).Create(goal).Error
}

func (r *GoalRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Goal, error) {
	var goal model.Goal
	if err := r.db.WithContext(ctx).First(&goal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	return &goal, nil
}

// SetState moves the goal to next, rejecting transitions that would reverse
// the lifecycle.
func (r *GoalRepository) SetState(ctx context.Context, id uuid.UUID, next model.ConfirmationState) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var goal model.Goal
		if err := tx.First(&goal, "id = ?", id).Error; err != nil {
			return err
		}
		if !goal.State.CanTransition(next) {
			return errors.Errorf("illegal state transition %s -> %s for goal %s", goal.State, next, id)
		}
		return tx.Model(&goal).Update("state", next).Error
	})
}

// BindOnChainID assigns the ledger identifier exactly once, flips the goal to
// Confirmed and marks the creation transaction confirmed, all atomically.
func (r *GoalRepository) BindOnChainID(ctx context.Context, goalID uuid.UUID, txID uuid.UUID, onChainID uint64) (*model.Goal, error) {
	var goal model.Goal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&goal, "id = ?", goalID).Error; err != nil {
			return err
		}
		if goal.OnChainID != nil {
			return ErrAlreadyBound
		}
		goal.OnChainID = &onChainID
		goal.State = model.StateConfirmed
		if err := tx.Save(&goal).Error; err != nil {
			return err
		}
		if txID != uuid.Nil {
			if err := tx.Model(&model.LedgerTransaction{}).
				Where("id = ?", txID).
				Updates(map[string]interface{}{"status": model.TxConfirmed, "on_chain_goal_id": onChainID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// ApplyDeposit applies a confirmed deposit: balance and deposit count go up,
// completion is recomputed for amount goals, and the ledger transaction flips
// to Confirmed in the same store transaction. A transaction no longer in
// Submitted means the effect was already applied, so retries are no-ops.
func (r *GoalRepository) ApplyDeposit(ctx context.Context, goalID, txID uuid.UUID, delta decimal.Decimal) (*model.Goal, error) {
	var goal model.Goal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lt model.LedgerTransaction
		if err := tx.First(&lt, "id = ?", txID).Error; err != nil {
			return err
		}
		if lt.Status != model.TxSubmitted {
			return tx.First(&goal, "id = ?", goalID).Error
		}
		if err := tx.First(&goal, "id = ?", goalID).Error; err != nil {
			return err
		}
		goal.CurrentBalance = goal.CurrentBalance.Add(delta)
		goal.DepositCount++
		if goal.GoalType == model.GoalTypeAmount {
			goal.IsCompleted = goal.CurrentBalance.GreaterThanOrEqual(goal.TargetValue)
		}
		if err := tx.Save(&goal).Error; err != nil {
			return err
		}
		return tx.Model(&lt).Update("status", model.TxConfirmed).Error
	})
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// ApplyWithdrawal applies a confirmed withdrawal. A regular withdrawal drains
// the full balance and deactivates the goal; early withdrawals subtract the
// requested amount and leave the goal active while funds remain. Same
// Submitted-status idempotency guard as ApplyDeposit.
func (r *GoalRepository) ApplyWithdrawal(ctx context.Context, goalID, txID uuid.UUID, amount decimal.Decimal) (*model.Goal, error) {
	var goal model.Goal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lt model.LedgerTransaction
		if err := tx.First(&lt, "id = ?", txID).Error; err != nil {
			return err
		}
		if lt.Status != model.TxSubmitted {
			return tx.First(&goal, "id = ?", goalID).Error
		}
		if err := tx.First(&goal, "id = ?", goalID).Error; err != nil {
			return err
		}
		goal.CurrentBalance = goal.CurrentBalance.Sub(amount)
		if goal.CurrentBalance.LessThanOrEqual(decimal.Zero) {
			goal.CurrentBalance = decimal.Zero
			goal.IsActive = false
		}
		if err := tx.Save(&goal).Error; err != nil {
			return err
		}
		return tx.Model(&lt).Update("status", model.TxConfirmed).Error
	})
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// ListActiveByOwner returns the owner's active goals newest-first. If the
// store rejects the ordered compound query it degrades to an unordered fetch
// sorted in memory, rather than failing the read.
func (r *GoalRepository) ListActiveByOwner(ctx context.Context, ownerID string) ([]model.Goal, error) {
	var goals []model.Goal
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Order("created_at desc").
		Find(&goals).Error
	if err == nil {
		return goals, nil
	}

	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Find(&goals).Error; err != nil {
		return nil, err
	}
	sortGoalsNewestFirst(goals)
	return goals, nil
}

func sortGoalsNewestFirst(goals []model.Goal) {
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].CreatedAt.After(goals[j].CreatedAt)
	})
}

// Deactivate hides the goal from listings. Goals are never hard-deleted.
func (r *GoalRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&model.Goal{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrGoalNotFound
	}
	return nil
}
