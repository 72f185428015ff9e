package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/goal_vault/model"
)

func TestCreateDraftDefaults(t *testing.T) {
	db := openTestDB(t)
	goals := NewGoalRepository(db)
	ctx := context.Background()

	bogus := uint64(99)
	goal := &model.Goal{
		OwnerID:        "owner-1",
		WalletAddress:  "0xabc",
		GoalType:       model.GoalTypePrice,
		TargetValue:    decimal.RequireFromString("4000"),
		Currency:       model.CurrencyUSD,
		OnChainID:      &bogus,
		CurrentBalance: decimal.RequireFromString("5"),
		State:          model.StateConfirmed,
	}
	require.NoError(t, goals.CreateDraft(ctx, goal))

	got, err := goals.GetByID(ctx, goal.ID)
	require.NoError(t, err)
	require.Equal(t, model.StateDraft, got.State)
	require.Equal(t, model.GoalTypePrice, got.GoalType)
	require.Equal(t, model.CurrencyUSD, got.Currency)
	require.True(t, got.TargetValue.Equal(decimal.RequireFromString("4000")))
	require.Nil(t, got.OnChainID)
	require.True(t, got.CurrentBalance.IsZero())
	require.Zero(t, got.DepositCount)
	require.True(t, got.IsActive)
	require.False(t, got.IsCompleted)
}

func TestGoalRoundTrip(t *testing.T) {
	db := openTestDB(t)
	goals := NewGoalRepository(db)
	ctx := context.Background()

	goal := newAmountGoal(t, goals, "1.5")

	got, err := goals.GetByID(ctx, goal.ID)
	require.NoError(t, err)
	require.Equal(t, model.GoalTypeAmount, got.GoalType)
	require.True(t, got.TargetValue.Equal(decimal.RequireFromString("1.5")))
	require.Equal(t, goal.OwnerID, got.OwnerID)
	require.NotNil(t, got.UnlockTimestamp)

	_, err = goals.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, ErrGoalNotFound)
}

func TestSetStateRejectsReversal(t *testing.T) {
	db := openTestDB(t)
	goals := NewGoalRepository(db)
	ctx := context.Background()

	goal := newAmountGoal(t, goals, "1")
	require.NoError(t, goals.SetState(ctx, goal.ID, model.StatePending))
	require.NoError(t, goals.SetState(ctx, goal.ID, model.StateConfirmed))

	err := goals.SetState(ctx, goal.ID, model.StateDraft)
	require.Error(t, err)

	got, err := goals.GetByID(ctx, goal.ID)
	require.NoError(t, err)
	require.Equal(t, model.StateConfirmed, got.State)
}

func TestBindOnChainIDOnce(t *testing.T) {
	db := openTestDB(t)
	goals := NewGoalRepository(db)
	txs := NewTxRepository(db)
	ctx := context.Background()

	goal := newAmountGoal(t, goals, "1")
	require.NoError(t, goals.SetState(ctx, goal.ID, model.StatePending))
	lt := newSubmittedTx(t, txs, goal.ID, model.TxKindGoalCreation, "0")

	bound, err := goals.BindOnChainID(ctx, goal.ID, lt.ID, 7)
	require.NoError(t, err)
	require.NotNil(t, bound.OnChainID)
	require.Equal(t, uint64(7), *bound.OnChainID)
	require.Equal(t, model.StateConfirmed, bound.State)

	confirmed, err := txs.GetByID(ctx, lt.ID)
	require.NoError(t, err)
	require.Equal(t, model.TxConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.OnChainGoalID)
	require.Equal(t, uint64(7), *confirmed.OnChainGoalID)

	_, err = goals.BindOnChainID(ctx, goal.ID, lt.ID, 8)
	require.ErrorIs(t, err, ErrAlreadyBound)

	got, err := goals.GetByID(ctx, goal.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(7), *got.OnChainID)
}

func TestApplyDepositSequence(t *testing.T) {
	db := openTestDB(t)
	goals := NewGoalRepository(db)
	txs := NewTxRepository(db)
	ctx := context.Background()

	goal := newAmountGoal(t, goals, "1.5")

	wantPercents := []string{"0.5", "1.0", "1.5"}
	for i, balance := range wantPercents {
		lt := newSubmittedTx(t, txs, goal.ID, model.TxKindDeposit, "0.5")
		got, err := goals.ApplyDeposit(ctx, goal.ID, lt.ID, decimal.RequireFromString("0.5"))
		require.NoError(t, err)
		require.True(t, got.CurrentBalance.Equal(decimal.RequireFromString(balance)))
		require.Equal(t, i+1, got.DepositCount)
	}

	got, err := goals.GetByID(ctx, goal.ID)
	require.NoError(t, err)
	require.True(t, got.IsCompleted)
}

func TestApplyDepositIdempotent(t *testing.T) {
	db := openTestDB(t)
	goals := NewGoalRepository(db)
	txs := NewTxRepository(db)
	ctx := context.Background()

	goal := newAmountGoal(t, goals, "10")
	lt := newSubmittedTx(t, txs, goal.ID, model.TxKindDeposit, "1")

	_, err := goals.ApplyDeposit(ctx, goal.ID, lt.ID, decimal.NewFromInt(1))
	require.NoError(t, err)

	// Retrying the same confirmed transaction must not double-apply.
	got, err := goals.ApplyDeposit(ctx, goal.ID, lt.ID, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.True(t, got.CurrentBalance.Equal(decimal.NewFromInt(1)))
	require.Equal(t, 1, got.DepositCount)
}

func TestApplyWithdrawalDrainsAndDeactivates(t *testing.T) {
	db := openTestDB(t)
	goals := NewGoalRepository(db)
	txs := NewTxRepository(db)
	ctx := context.Background()

	goal := newAmountGoal(t, goals, "10")
	dep := newSubmittedTx(t, txs, goal.ID, model.TxKindDeposit, "2")
	_, err := goals.ApplyDeposit(ctx, goal.ID, dep.ID, decimal.NewFromInt(2))
	require.NoError(t, err)

	early := newSubmittedTx(t, txs, goal.ID, model.TxKindEarlyWithdrawal, "1")
	got, err := goals.ApplyWithdrawal(ctx, goal.ID, early.ID, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.True(t, got.CurrentBalance.Equal(decimal.NewFromInt(1)))
	require.True(t, got.IsActive)

	full := newSubmittedTx(t, txs, goal.ID, model.TxKindWithdrawal, "1")
	got, err = goals.ApplyWithdrawal(ctx, goal.ID, full.ID, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.True(t, got.CurrentBalance.IsZero())
	require.False(t, got.IsActive)
}

func TestListActiveByOwnerNewestFirst(t *testing.T) {
	db := openTestDB(t)
	goals := NewGoalRepository(db)
	ctx := context.Background()

	older := newAmountGoal(t, goals, "1")
	require.NoError(t, db.Model(older).Update("created_at", time.Now().Add(-time.Hour)).Error)
	newer := newAmountGoal(t, goals, "2")
	hidden := newAmountGoal(t, goals, "3")
	require.NoError(t, goals.Deactivate(ctx, hidden.ID))

	got, err := goals.ListActiveByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, newer.ID, got[0].ID)
	require.Equal(t, older.ID, got[1].ID)
}

func TestSortGoalsNewestFirst(t *testing.T) {
	now := time.Now()
	goals := []model.Goal{
		{OwnerID: "a", CreatedAt: now.Add(-2 * time.Hour)},
		{OwnerID: "b", CreatedAt: now},
		{OwnerID: "c", CreatedAt: now.Add(-time.Hour)},
	}
	sortGoalsNewestFirst(goals)
	require.Equal(t, "b", goals[0].OwnerID)
	require.Equal(t, "c", goals[1].OwnerID)
	require.Equal(t, "a", goals[2].OwnerID)
}
