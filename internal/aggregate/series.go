package aggregate

import (
	"time"

	"gastos/internal/core"
)

// TrailingMonths is the length of the trailing series.
const TrailingMonths = 6

// TrailingSeries returns the totals of the six calendar months ending with
// the month containing now, oldest first. Months without expenses are
// present with a zero total.
//
// The series follows the clock, not the month selected on the dashboard.
func TrailingSeries(expenses []core.Expense, now time.Time) []core.MonthTotal {
	sel := core.SelectorOf(now)
	for i := 1; i < TrailingMonths; i++ {
		sel = sel.Previous()
	}

	out := make([]core.MonthTotal, 0, TrailingMonths)
	for i := 0; i < TrailingMonths; i++ {
		out = append(out, core.MonthTotal{Month: sel, Total: monthTotal(expenses, sel)})
		sel = sel.Next()
	}
	return out
}
