package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goal_vault/model"
)

func TestOutstanding(t *testing.T) {
	db := openTestDB(t)
	goals := NewGoalRepository(db)
	txs := NewTxRepository(db)
	ctx := context.Background()

	goal := newAmountGoal(t, goals, "1")

	got, err := txs.Outstanding(ctx, goal.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	lt := newSubmittedTx(t, txs, goal.ID, model.TxKindDeposit, "0.5")
	got, err = txs.Outstanding(ctx, goal.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, lt.ID, got.ID)

	require.NoError(t, txs.MarkFailed(ctx, lt.ID, "insufficient funds"))
	got, err = txs.Outstanding(ctx, goal.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	failed, err := txs.GetByID(ctx, lt.ID)
	require.NoError(t, err)
	require.Equal(t, model.TxFailed, failed.Status)
	require.Equal(t, "insufficient funds", failed.FailReason)
}

func TestSetHash(t *testing.T) {
	db := openTestDB(t)
	goals := NewGoalRepository(db)
	txs := NewTxRepository(db)
	ctx := context.Background()

	goal := newAmountGoal(t, goals, "1")
	lt := newSubmittedTx(t, txs, goal.ID, model.TxKindGoalCreation, "0")

	require.NoError(t, txs.SetHash(ctx, lt.ID, "0xdeadbeef"))
	got, err := txs.GetByID(ctx, lt.ID)
	require.NoError(t, err)
	require.Equal(t, "0xdeadbeef", got.TxHash)
}

func TestListByGoalNewestFirst(t *testing.T) {
	db := openTestDB(t)
	goals := NewGoalRepository(db)
	txs := NewTxRepository(db)
	ctx := context.Background()

	goal := newAmountGoal(t, goals, "1")
	first := newSubmittedTx(t, txs, goal.ID, model.TxKindGoalCreation, "0")
	require.NoError(t, db.Model(first).Update("created_at", time.Now().Add(-time.Hour)).Error)
	second := newSubmittedTx(t, txs, goal.ID, model.TxKindDeposit, "0.5")

	got, err := txs.ListByGoal(ctx, goal.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, second.ID, got[0].ID)
	require.Equal(t, first.ID, got[1].ID)
}
