package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/goal_vault/model"
)

func usdQuote(price string) Quote {
	return Quote{USD: decimal.RequireFromString(price), EUR: decimal.RequireFromString(price), IsLive: true}
}

func TestAmountGoalProgress(t *testing.T) {
	goal := &model.Goal{
		GoalType:    model.GoalTypeAmount,
		TargetValue: decimal.RequireFromString("1.5"),
	}

	steps := []struct {
		balance     string
		wantPercent float64
		wantReached bool
	}{
		{"0.5", 100.0 / 3.0, false},
		{"1.0", 200.0 / 3.0, false},
		{"1.5", 100, true},
		{"2.0", 100, true},
	}
	for _, tt := range steps {
		goal.CurrentBalance = decimal.RequireFromString(tt.balance)
		p := GoalProgress(goal, usdQuote("2300"))
		require.InDelta(t, tt.wantPercent, p.Percent, 1e-9, "balance %s", tt.balance)
		require.Equal(t, tt.wantReached, p.Reached, "balance %s", tt.balance)
	}
}

func TestPriceGoalProgress(t *testing.T) {
	goal := &model.Goal{
		GoalType:    model.GoalTypePrice,
		TargetValue: decimal.RequireFromString("4000"),
		Currency:    model.CurrencyUSD,
	}

	p := GoalProgress(goal, usdQuote("3800"))
	require.InDelta(t, 95, p.Percent, 1e-9)
	require.False(t, p.Reached)

	p = GoalProgress(goal, usdQuote("4100"))
	require.Equal(t, float64(100), p.Percent)
	require.True(t, p.Reached)
}

func TestPortfolioGoalProgress(t *testing.T) {
	goal := &model.Goal{
		GoalType:       model.GoalTypePortfolio,
		TargetValue:    decimal.RequireFromString("10000"),
		Currency:       model.CurrencyUSD,
		CurrentBalance: decimal.RequireFromString("2"),
	}

	p := GoalProgress(goal, usdQuote("2500"))
	require.InDelta(t, 50, p.Percent, 1e-9)
	require.False(t, p.Reached)
	require.True(t, p.CurrentValue.Equal(decimal.RequireFromString("5000")))

	p = GoalProgress(goal, usdQuote("5000"))
	require.Equal(t, float64(100), p.Percent)
	require.True(t, p.Reached)
}

func TestProgressUsesGoalCurrency(t *testing.T) {
	goal := &model.Goal{
		GoalType:    model.GoalTypePrice,
		TargetValue: decimal.RequireFromString("2000"),
		Currency:    model.CurrencyEUR,
	}
	quote := Quote{
		USD: decimal.RequireFromString("2300"),
		EUR: decimal.RequireFromString("2100"),
	}

	p := GoalProgress(goal, quote)
	require.Equal(t, float64(100), p.Percent)
	require.True(t, p.CurrentValue.Equal(decimal.RequireFromString("2100")))
}

func TestClampPercent(t *testing.T) {
	require.Equal(t, float64(0), clampPercent(decimal.NewFromInt(5), decimal.Zero))
	require.Equal(t, float64(0), clampPercent(decimal.NewFromInt(5), decimal.NewFromInt(-1)))
	require.Equal(t, float64(0), clampPercent(decimal.NewFromInt(-5), decimal.NewFromInt(10)))
	require.Equal(t, float64(100), clampPercent(decimal.NewFromInt(10), decimal.NewFromInt(10)))
	require.InDelta(t, 50, clampPercent(decimal.NewFromInt(5), decimal.NewFromInt(10)), 1e-9)
}

func TestAmountUnlocked(t *testing.T) {
	unlock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	goal := &model.Goal{GoalType: model.GoalTypeAmount, UnlockTimestamp: &unlock}

	require.False(t, AmountUnlocked(goal, unlock.Add(-time.Second)))
	require.True(t, AmountUnlocked(goal, unlock))
	require.True(t, AmountUnlocked(goal, unlock.Add(time.Hour)))

	require.False(t, AmountUnlocked(&model.Goal{GoalType: model.GoalTypeAmount}, unlock))
	require.False(t, AmountUnlocked(&model.Goal{GoalType: model.GoalTypePrice, UnlockTimestamp: &unlock}, unlock))
}
