package http

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/aggregate"
	"gastos/internal/core"
	"gastos/internal/insight"
)

// Amounts travel as fixed two-decimal strings next to their es-ES rendering
// so clients never do float arithmetic on money.

type monthView struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Key   string `json:"key"`
	Label string `json:"label"`
}

func newMonthView(sel core.MonthSelector) monthView {
	return monthView{
		Year:  sel.Year,
		Month: sel.Index(),
		Key:   sel.String(),
		Label: sel.Label(),
	}
}

type categoryView struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Color string `json:"color"`
}

func newCategoryView(c core.Category) categoryView {
	return categoryView{Code: c.Code(), Label: c.Label(), Color: c.Color()}
}

type expenseView struct {
	ID              string    `json:"id"`
	Amount          string    `json:"amount"`
	AmountFormatted string    `json:"amount_formatted"`
	Category        string    `json:"category"`
	CategoryLabel   string    `json:"category_label"`
	CategoryColor   string    `json:"category_color"`
	Description     string    `json:"description"`
	Date            string    `json:"date"`
	CreatedAt       time.Time `json:"created_at"`
}

func newExpenseView(e core.Expense) expenseView {
	return expenseView{
		ID:              e.ID,
		Amount:          e.Amount.StringFixed(2),
		AmountFormatted: core.FormatEuros(e.Amount),
		Category:        e.Category.Code(),
		CategoryLabel:   e.Category.Label(),
		CategoryColor:   e.Category.Color(),
		Description:     e.Description,
		Date:            e.Date.String(),
		CreatedAt:       e.CreatedAt.UTC(),
	}
}

type expenseListView struct {
	Expenses []expenseView `json:"expenses"`
	Count    int           `json:"count"`
}

func newExpenseListView(expenses []core.Expense) expenseListView {
	out := make([]expenseView, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, newExpenseView(e))
	}
	return expenseListView{Expenses: out, Count: len(out)}
}

type breakdownEntryView struct {
	Category        string      `json:"category"`
	Label           string      `json:"label"`
	Color           string      `json:"color"`
	Amount          string      `json:"amount"`
	AmountFormatted string      `json:"amount_formatted"`
	Share           json.Number `json:"share"`
}

type breakdownView struct {
	Month          monthView            `json:"month"`
	Total          string               `json:"total"`
	TotalFormatted string               `json:"total_formatted"`
	Categories     []breakdownEntryView `json:"categories"`
}

func newBreakdownView(sel core.MonthSelector, b aggregate.Breakdown) breakdownView {
	shares := b.Shares()
	entries := make([]breakdownEntryView, 0, len(b))
	for i, ca := range b {
		entries = append(entries, breakdownEntryView{
			Category:        ca.Category.Code(),
			Label:           ca.Category.Label(),
			Color:           ca.Category.Color(),
			Amount:          ca.Amount.StringFixed(2),
			AmountFormatted: core.FormatEuros(ca.Amount),
			Share:           decimalNumber(shares[i], 1),
		})
	}
	total := b.Total()
	return breakdownView{
		Month:          newMonthView(sel),
		Total:          total.StringFixed(2),
		TotalFormatted: core.FormatEuros(total),
		Categories:     entries,
	}
}

type comparisonView struct {
	Month             monthView   `json:"month"`
	PreviousMonth     monthView   `json:"previous_month"`
	Current           string      `json:"current"`
	CurrentFormatted  string      `json:"current_formatted"`
	Previous          string      `json:"previous"`
	PreviousFormatted string      `json:"previous_formatted"`
	Delta             string      `json:"delta"`
	DeltaFormatted    string      `json:"delta_formatted"`
	Percentage        json.Number `json:"percentage"`
	Trend             string      `json:"trend"`
}

func newComparisonView(c aggregate.Comparison) comparisonView {
	return comparisonView{
		Month:             newMonthView(c.Month),
		PreviousMonth:     newMonthView(c.PreviousMonth),
		Current:           c.Current.StringFixed(2),
		CurrentFormatted:  core.FormatEuros(c.Current),
		Previous:          c.Previous.StringFixed(2),
		PreviousFormatted: core.FormatEuros(c.Previous),
		Delta:             c.Delta.StringFixed(2),
		DeltaFormatted:    core.FormatEuros(c.Delta),
		Percentage:        decimalNumber(c.Rounded(), 1),
		Trend:             string(c.Trend()),
	}
}

type trendPointView struct {
	Month          monthView `json:"month"`
	Total          string    `json:"total"`
	TotalFormatted string    `json:"total_formatted"`
}

type trendView struct {
	AnchoredAt time.Time        `json:"anchored_at"`
	Months     []trendPointView `json:"months"`
}

func newTrendView(series []core.MonthTotal, anchoredAt time.Time) trendView {
	points := make([]trendPointView, 0, len(series))
	for _, mt := range series {
		points = append(points, trendPointView{
			Month:          newMonthView(mt.Month),
			Total:          mt.Total.StringFixed(2),
			TotalFormatted: core.FormatEuros(mt.Total),
		})
	}
	return trendView{AnchoredAt: anchoredAt, Months: points}
}

type dashboardView struct {
	Month          monthView      `json:"month"`
	Total          string         `json:"total"`
	TotalFormatted string         `json:"total_formatted"`
	Count          int            `json:"count"`
	Breakdown      breakdownView  `json:"breakdown"`
	Comparison     comparisonView `json:"comparison"`
	Trend          trendView      `json:"trend"`
}

func newDashboardView(d aggregate.Dashboard) dashboardView {
	return dashboardView{
		Month:          newMonthView(d.Month),
		Total:          d.Total.StringFixed(2),
		TotalFormatted: core.FormatEuros(d.Total),
		Count:          d.Count,
		Breakdown:      newBreakdownView(d.Month, d.Breakdown),
		Comparison:     newComparisonView(d.Comparison),
		Trend:          newTrendView(d.Trailing, d.AnchoredAt),
	}
}

type insightView struct {
	Month       monthView `json:"month"`
	Text        string    `json:"text"`
	Source      string    `json:"source"`
	Cached      bool      `json:"cached"`
	GeneratedAt time.Time `json:"generated_at"`
}

func newInsightView(sel core.MonthSelector, in insight.Insight) insightView {
	return insightView{
		Month:       newMonthView(sel),
		Text:        in.Text,
		Source:      string(in.Source),
		Cached:      in.Cached,
		GeneratedAt: in.GeneratedAt,
	}
}

func decimalNumber(d decimal.Decimal, places int32) json.Number {
	return json.Number(d.StringFixed(places))
}
