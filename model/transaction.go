package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TxKind string

const (
	TxKindGoalCreation    TxKind = "GOAL_CREATION"
	TxKindDeposit         TxKind = "DEPOSIT"
	TxKindWithdrawal      TxKind = "WITHDRAWAL"
	TxKindEarlyWithdrawal TxKind = "EARLY_WITHDRAWAL"
)

type TxStatus string

const (
	TxSubmitted TxStatus = "SUBMITTED"
	TxConfirmed TxStatus = "CONFIRMED"
	TxFailed    TxStatus = "FAILED"
)

// LedgerTransaction tracks one submitted ledger operation. Status is
// monotonic: Submitted -> Confirmed | Failed. The off-chain effect of a
// confirmed operation is applied in the same store transaction that flips the
// status, so a row still in Submitted is the idempotency guard for retries.
type LedgerTransaction struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	GoalID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"goalId"`
	OnChainGoalID *uint64         `json:"onChainGoalId,omitempty"`
	Kind          TxKind          `gorm:"size:32;not null" json:"kind"`
	Amount        decimal.Decimal `gorm:"type:decimal(32,18)" json:"amount"`
	TxHash        string          `gorm:"size:66;index" json:"txHash,omitempty"`
	Status        TxStatus        `gorm:"size:16;index;not null" json:"status"`
	FailReason    string          `gorm:"type:text" json:"failReason,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (t *LedgerTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ReconcileEntry queues a ledger effect that confirmed on-chain but whose
// off-chain patch failed. The sweeper retries these until they apply; an
// entry is never dropped on failure.
type ReconcileEntry struct {
	ID            uint            `gorm:"primaryKey"`
	GoalID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	TxID          uuid.UUID       `gorm:"type:uuid;index;not null"`
	Kind          TxKind          `gorm:"size:32;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(32,18)"`
	OnChainGoalID *uint64
	Attempts      int    `gorm:"not null;default:0"`
	LastError     string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AutoMigrate creates the reconciliation engine's tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Goal{}, &LedgerTransaction{}, &ReconcileEntry{}, &WalletLink{})
}
