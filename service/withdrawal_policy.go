package service

import (
	"github.com/shopspring/decimal"

	"github.com/goal_vault/model"
)

// Flat rate applied to early withdrawals.
var earlyWithdrawalPenaltyRate = decimal.RequireFromString("0.10")

type PlanKind string

const (
	PlanBlocked PlanKind = "BLOCKED"
	PlanRegular PlanKind = "REGULAR"
	PlanEarly   PlanKind = "EARLY"
)

// WithdrawalPlan is the policy's verdict. The policy never moves funds; it
// only computes the amounts the bridge is instructed to submit.
type WithdrawalPlan struct {
	Kind    PlanKind        `json:"kind"`
	Reason  string          `json:"reason,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
	Penalty decimal.Decimal `json:"penalty"`
	Payout  decimal.Decimal `json:"payout"`
}

// EvaluateWithdrawal decides the withdrawal path. Ledger-reported eligibility
// takes the regular path for the full balance with no penalty, whether or not
// the caller asked for the early path. An ineligible goal is blocked unless
// the caller explicitly opted into early withdrawal, which costs the flat
// penalty on the requested amount. Requested amounts outside (0, balance]
// are rejected before any submission.
func EvaluateWithdrawal(goal *model.Goal, eligible bool, reason string, early bool, requested decimal.Decimal) (WithdrawalPlan, error) {
	if eligible {
		return WithdrawalPlan{
			Kind:   PlanRegular,
			Amount: goal.CurrentBalance,
			Payout: goal.CurrentBalance,
		}, nil
	}
	if !early {
		if reason == "" {
			reason = "goal is not yet eligible for withdrawal"
		}
		return WithdrawalPlan{Kind: PlanBlocked, Reason: reason}, nil
	}

	if requested.Sign() <= 0 {
		return WithdrawalPlan{}, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if requested.GreaterThan(goal.CurrentBalance) {
		return WithdrawalPlan{}, &ValidationError{Field: "amount", Reason: "exceeds current balance"}
	}

	penalty := requested.Mul(earlyWithdrawalPenaltyRate)
	return WithdrawalPlan{
		Kind:    PlanEarly,
		Amount:  requested,
		Penalty: penalty,
		Payout:  requested.Sub(penalty),
	}, nil
}
