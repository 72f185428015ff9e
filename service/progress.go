package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/goal_vault/model"
)

// Progress is a goal's completion figure for a render cycle. Percent is
// always within [0, 100].
type Progress struct {
	Percent      float64         `json:"progress"`
	Reached      bool            `json:"reached"`
	CurrentValue decimal.Decimal `json:"currentValue"`
	TargetValue  decimal.Decimal `json:"targetValue"`
}

var oneHundred = decimal.NewFromInt(100)

// GoalProgress computes completion for a goal against the current quote.
// Amount goals compare escrowed balance to the target, price goals compare
// the quote itself, portfolio goals compare balance times quote. The clamp
// also covers non-positive targets on rows written before creation-time
// validation existed.
func GoalProgress(goal *model.Goal, quote Quote) Progress {
	var current decimal.Decimal
	switch goal.GoalType {
	case model.GoalTypePrice:
		current = quote.PriceIn(goal.Currency)
	case model.GoalTypePortfolio:
		current = goal.CurrentBalance.Mul(quote.PriceIn(goal.Currency))
	default:
		current = goal.CurrentBalance
	}
	return Progress{
		Percent:      clampPercent(current, goal.TargetValue),
		Reached:      current.GreaterThanOrEqual(goal.TargetValue),
		CurrentValue: current,
		TargetValue:  goal.TargetValue,
	}
}

func clampPercent(current, target decimal.Decimal) float64 {
	if target.Sign() <= 0 {
		return 0
	}
	ratio := current.Div(target)
	if ratio.Sign() < 0 {
		return 0
	}
	if ratio.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return 100
	}
	pct, _ := ratio.Mul(oneHundred).Float64()
	return pct
}

// AmountUnlocked is the local mirror of the ledger's unlock rule for amount
// goals: eligible once now reaches the unlock timestamp. Price and portfolio
// goals have no local equivalent; their unlock depends on ledger-side price
// feeds.
func AmountUnlocked(goal *model.Goal, now time.Time) bool {
	if goal.GoalType != model.GoalTypeAmount || goal.UnlockTimestamp == nil {
		return false
	}
	return !now.Before(*goal.UnlockTimestamp)
}
