package aggregate

import (
	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Breakdown holds per-category totals in category order. Categories whose
// total is zero are never present.
type Breakdown []core.CategoryAmount

// CategoryBreakdown sums the selected month's expenses per category.
// The entries always add up to the month's total.
func CategoryBreakdown(expenses []core.Expense, sel core.MonthSelector) Breakdown {
	sums := make(map[core.Category]decimal.Decimal, len(core.Categories()))
	for _, e := range expenses {
		if !sel.Contains(e.Date) {
			continue
		}
		if cur, ok := sums[e.Category]; ok {
			sums[e.Category] = cur.Add(e.Amount)
		} else {
			sums[e.Category] = e.Amount
		}
	}

	out := Breakdown{}
	for _, c := range core.Categories() {
		sum, ok := sums[c]
		if !ok || sum.IsZero() {
			continue
		}
		out = append(out, core.CategoryAmount{Category: c, Amount: sum})
	}
	return out
}

func (b Breakdown) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, ca := range b {
		sum = sum.Add(ca.Amount)
	}
	return sum
}

// Amounts returns the breakdown keyed by category code, the shape the
// insight generator consumes.
func (b Breakdown) Amounts() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(b))
	for _, ca := range b {
		out[ca.Category.Code()] = ca.Amount
	}
	return out
}

// Shares returns each entry's percentage of the total, one decimal place,
// aligned with b.
func (b Breakdown) Shares() []decimal.Decimal {
	total := b.Total()
	out := make([]decimal.Decimal, len(b))
	for i, ca := range b {
		if total.IsZero() {
			out[i] = decimal.Zero
			continue
		}
		out[i] = ca.Amount.Div(total).Mul(hundred).Round(1)
	}
	return out
}
