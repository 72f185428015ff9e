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

func TestReconcileQueueOrderAndRetry(t *testing.T) {
	db := openTestDB(t)
	queue := NewReconcileRepository(db)
	ctx := context.Background()

	first := &model.ReconcileEntry{
		GoalID: uuid.New(),
		TxID:   uuid.New(),
		Kind:   model.TxKindDeposit,
		Amount: decimal.NewFromInt(1),
	}
	require.NoError(t, queue.Enqueue(ctx, first))
	require.NoError(t, db.Model(first).Update("created_at", time.Now().Add(-time.Hour)).Error)

	second := &model.ReconcileEntry{
		GoalID: uuid.New(),
		TxID:   uuid.New(),
		Kind:   model.TxKindWithdrawal,
		Amount: decimal.NewFromInt(2),
	}
	require.NoError(t, queue.Enqueue(ctx, second))

	entries, err := queue.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, first.ID, entries[0].ID)
	require.Equal(t, second.ID, entries[1].ID)

	require.NoError(t, queue.RecordFailure(ctx, first.ID, "goal not found"))
	require.NoError(t, queue.RecordFailure(ctx, first.ID, "goal not found"))

	entries, err = queue.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, entries[0].Attempts)
	require.Equal(t, "goal not found", entries[0].LastError)

	require.NoError(t, queue.Delete(ctx, first.ID))
	entries, err = queue.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, second.ID, entries[0].ID)
}
