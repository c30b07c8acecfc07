// Package worker consumes expense change events outside the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gastos/internal/core"
	"gastos/internal/insight"
	"gastos/internal/ports"
)

// Insighter produces the insight for one owner and month.
type Insighter interface {
	Insight(ctx context.Context, ownerID string, sel core.MonthSelector, refresh bool) (insight.Insight, error)
	InsightsEnabled() bool
}

// Consumer delivers expense change events until ctx is done.
type Consumer interface {
	ConsumeExpenseChanged(ctx context.Context, handler func(context.Context, ports.ExpenseChanged) error) error
}

// InsightWorker pre-computes insights after each ledger write so the next
// dashboard load finds them in the shared cache.
type InsightWorker struct {
	svc     Insighter
	timeout time.Duration
	logger  *slog.Logger
}

func NewInsightWorker(svc Insighter, timeout time.Duration, logger *slog.Logger) *InsightWorker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InsightWorker{svc: svc, timeout: timeout, logger: logger}
}

// HandleExpenseChanged warms the insight of the month the change touched.
// Months with no expenses left are skipped by the advisor itself.
func (w *InsightWorker) HandleExpenseChanged(ctx context.Context, ev ports.ExpenseChanged) error {
	if !w.svc.InsightsEnabled() {
		w.logger.DebugContext(ctx, "Insights disabled, skipping event",
			"owner_id", ev.OwnerID,
			"expense_id", ev.ExpenseID)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	got, err := w.svc.Insight(ctx, ev.OwnerID, ev.Month, false)
	if err != nil {
		if errors.Is(err, core.ErrInvalidMonth) {
			w.logger.WarnContext(ctx, "Dropping event with invalid month",
				"owner_id", ev.OwnerID,
				"month", ev.Month.String())
			return nil
		}
		return fmt.Errorf("warm insight for %s %s: %w", ev.OwnerID, ev.Month, err)
	}

	w.logger.InfoContext(ctx, "Insight warmed",
		"owner_id", ev.OwnerID,
		"month", ev.Month.String(),
		"op", ev.Op,
		"source", got.Source,
		"cached", got.Cached,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Run blocks consuming events until ctx is done.
func (w *InsightWorker) Run(ctx context.Context, c Consumer) error {
	err := c.ConsumeExpenseChanged(ctx, w.HandleExpenseChanged)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
