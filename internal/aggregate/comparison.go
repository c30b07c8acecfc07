package aggregate

import (
	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Comparison is the selected month against the calendar month before it.
type Comparison struct {
	Month         core.MonthSelector
	PreviousMonth core.MonthSelector
	Current       decimal.Decimal
	Previous      decimal.Decimal
	Delta         decimal.Decimal
	// Percentage is Delta relative to Previous, unrounded. It is zero when
	// Previous is zero.
	Percentage decimal.Decimal
}

// CompareMonths computes the month-over-month change for sel. The previous
// month of January is December of the year before.
func CompareMonths(expenses []core.Expense, sel core.MonthSelector) Comparison {
	prev := sel.Previous()
	current := monthTotal(expenses, sel)
	previous := monthTotal(expenses, prev)
	return Comparison{
		Month:         sel,
		PreviousMonth: prev,
		Current:       current,
		Previous:      previous,
		Delta:         current.Sub(previous),
		Percentage:    PercentChange(current, previous),
	}
}

// PercentChange returns (current-previous)/previous*100, or zero when
// previous is zero.
func PercentChange(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred)
}

// Rounded is the percentage with one decimal place, for display.
func (c Comparison) Rounded() decimal.Decimal {
	return c.Percentage.Round(1)
}

func (c Comparison) Trend() Trend {
	switch c.Delta.Sign() {
	case 1:
		return TrendUp
	case -1:
		return TrendDown
	default:
		return TrendFlat
	}
}
