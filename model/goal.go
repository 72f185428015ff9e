package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GoalType determines which progress formula applies and which fields of a
// Goal are meaningful.
type GoalType string

const (
	GoalTypeAmount    GoalType = "AMOUNT_TARGET"    // target in asset units
	GoalTypePrice     GoalType = "PRICE_TARGET"     // target price per unit in quote currency
	GoalTypePortfolio GoalType = "PORTFOLIO_TARGET" // target total value in quote currency
)

// ChainValue is the uint8 encoding the vault contract uses. This mapping is
// the single source of truth for every call site; the legacy creation path
// predates goal types and never encodes one.
func (t GoalType) ChainValue() (uint8, error) {
	switch t {
	case GoalTypeAmount:
		return 0, nil
	case GoalTypePrice:
		return 1, nil
	case GoalTypePortfolio:
		return 2, nil
	}
	return 0, fmt.Errorf("unknown goal type %q", t)
}

func GoalTypeFromChain(v uint8) (GoalType, error) {
	switch v {
	case 0:
		return GoalTypeAmount, nil
	case 1:
		return GoalTypePrice, nil
	case 2:
		return GoalTypePortfolio, nil
	}
	return "", fmt.Errorf("unknown goal type encoding %d", v)
}

func (t GoalType) Valid() bool {
	_, err := t.ChainValue()
	return err == nil
}

// Currency is the quote currency for price and portfolio goals.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

func (c Currency) ChainValue() (uint8, error) {
	switch c {
	case CurrencyUSD:
		return 0, nil
	case CurrencyEUR:
		return 1, nil
	}
	return 0, fmt.Errorf("unknown currency %q", c)
}

func CurrencyFromChain(v uint8) (Currency, error) {
	switch v {
	case 0:
		return CurrencyUSD, nil
	case 1:
		return CurrencyEUR, nil
	}
	return "", fmt.Errorf("unknown currency encoding %d", v)
}

func (c Currency) Valid() bool {
	_, err := c.ChainValue()
	return err == nil
}

// ConfirmationState is the one-way lifecycle of a goal's binding to the
// ledger: Draft -> PendingChainConfirmation -> Confirmed | Failed.
type ConfirmationState string

const (
	StateDraft     ConfirmationState = "DRAFT"
	StatePending   ConfirmationState = "PENDING_CHAIN_CONFIRMATION"
	StateConfirmed ConfirmationState = "CONFIRMED"
	StateFailed    ConfirmationState = "FAILED"
)

// CanTransition reports whether moving from s to next respects the monotonic
// lifecycle.
func (s ConfirmationState) CanTransition(next ConfirmationState) bool {
	switch s {
	case StateDraft:
		return next == StatePending || next == StateFailed
	case StatePending:
		return next == StateConfirmed || next == StateFailed
	}
	return false
}

// Goal is the off-chain record of a savings target. OnChainID stays nil until
// the creation transaction confirms and is assigned exactly once; the escrowed
// balance is mutated only as the result of a confirmed ledger transaction.
type Goal struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID       string    `gorm:"size:128;index;not null" json:"ownerId"`
	WalletAddress string    `gorm:"size:64;index;not null" json:"walletAddress"`

	GoalType    GoalType        `gorm:"size:32;not null" json:"goalType"`
	TargetValue decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"targetValue"`
	Currency    Currency        `gorm:"size:8" json:"currency,omitempty"`
	Description string          `gorm:"type:text" json:"description,omitempty"`

	// Only set for amount goals; price and portfolio goals unlock when their
	// target is reached.
	UnlockTimestamp *time.Time `json:"unlockTimestamp,omitempty"`

	OnChainID *uint64 `gorm:"uniqueIndex" json:"onChainId,omitempty"`

	CurrentBalance decimal.Decimal   `gorm:"type:decimal(32,18);not null" json:"currentBalance"`
	DepositCount   int               `gorm:"not null;default:0" json:"depositCount"`
	State          ConfirmationState `gorm:"size:32;not null" json:"state"`
	IsActive       bool              `gorm:"index" json:"isActive"`
	IsCompleted    bool              `json:"isCompleted"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (g *Goal) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// Bound reports whether the goal has its ledger identifier.
func (g *Goal) Bound() bool {
	return g.OnChainID != nil
}
