package core

import "github.com/shopspring/decimal"

// CategoryAmount is an amount aggregated for one category.
type CategoryAmount struct {
	Category Category
	Amount   decimal.Decimal
}

// MonthTotal is the total spent in one calendar month.
type MonthTotal struct {
	Month MonthSelector
	Total decimal.Decimal
}

// Label is the Spanish month name used on charts.
func (m MonthTotal) Label() string {
	return m.Month.Label()
}
