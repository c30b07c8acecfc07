// Package aggregate derives the monthly dashboard figures from a snapshot of
// one owner's expenses.
//
// Every function here is pure: it never mutates its input, performs no I/O
// and returns the same output for the same snapshot and month. Callers that
// want caching key it on the snapshot identity and the selected month.
package aggregate

import (
	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

// FilterByMonth returns the expenses dated inside sel, matching month and
// year independently of the day. The result may be empty.
func FilterByMonth(expenses []core.Expense, sel core.MonthSelector) []core.Expense {
	var out []core.Expense
	for _, e := range expenses {
		if sel.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

// Total sums the amounts of expenses.
func Total(expenses []core.Expense) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// monthTotal is Total(FilterByMonth(expenses, sel)) without the copy.
func monthTotal(expenses []core.Expense, sel core.MonthSelector) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range expenses {
		if sel.Contains(e.Date) {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}
