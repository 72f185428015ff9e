package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/goal_vault/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	return db
}

func newAmountGoal(t *testing.T, goals *GoalRepository, target string) *model.Goal {
	t.Helper()
	unlock := time.Now().Add(24 * time.Hour)
	goal := &model.Goal{
		OwnerID:         "owner-1",
		WalletAddress:   "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
		GoalType:        model.GoalTypeAmount,
		TargetValue:     decimal.RequireFromString(target),
		UnlockTimestamp: &unlock,
	}
	require.NoError(t, goals.CreateDraft(context.Background(), goal))
	return goal
}

func newSubmittedTx(t *testing.T, txs *TxRepository, goalID uuid.UUID, kind model.TxKind, amount string) *model.LedgerTransaction {
	t.Helper()
	lt := &model.LedgerTransaction{
		GoalID: goalID,
		Kind:   kind,
		Amount: decimal.RequireFromString(amount),
	}
	require.NoError(t, txs.Create(context.Background(), lt))
	return lt
}
