package aggregate

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"gastos/internal/core"
)

// Dashboard bundles every derived view of one month.
type Dashboard struct {
	Month      core.MonthSelector
	Total      decimal.Decimal
	Count      int
	Breakdown  Breakdown
	Comparison Comparison
	Trailing   []core.MonthTotal
	// AnchoredAt is the instant the trailing series was anchored on.
	AnchoredAt time.Time
}

type Option func(*Aggregator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLocation sets the location used to decide which calendar month "now"
// is in.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// Aggregator binds the pure functions of this package to a clock.
type Aggregator struct {
	now func() time.Time
	loc *time.Location
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Now returns the current instant in the aggregator's location.
func (a *Aggregator) Now() time.Time {
	return a.now().In(a.loc)
}

func (a *Aggregator) CurrentMonth() core.MonthSelector {
	return core.SelectorOf(a.Now())
}

func (a *Aggregator) Breakdown(expenses []core.Expense, sel core.MonthSelector) Breakdown {
	return CategoryBreakdown(expenses, sel)
}

func (a *Aggregator) Compare(expenses []core.Expense, sel core.MonthSelector) Comparison {
	return CompareMonths(expenses, sel)
}

func (a *Aggregator) Trailing(expenses []core.Expense) []core.MonthTotal {
	return TrailingSeries(expenses, a.Now())
}

// Dashboard computes all views of sel over the same snapshot. The views are
// independent and evaluated concurrently; the only possible error is the
// context being done or an invalid selector.
func (a *Aggregator) Dashboard(ctx context.Context, expenses []core.Expense, sel core.MonthSelector) (Dashboard, error) {
	if err := sel.Validate(); err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{Month: sel, AnchoredAt: a.Now()}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		month := FilterByMonth(expenses, sel)
		d.Total = Total(month)
		d.Count = len(month)
		d.Breakdown = CategoryBreakdown(month, sel)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.Comparison = CompareMonths(expenses, sel)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.Trailing = TrailingSeries(expenses, d.AnchoredAt)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
