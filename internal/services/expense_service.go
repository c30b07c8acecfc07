package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/aggregate"
	"gastos/internal/cache"
	"gastos/internal/core"
	"gastos/internal/insight"
	"gastos/internal/log"
	"gastos/internal/ports"
)

// NewExpense is the user input for a new ledger entry.
type NewExpense struct {
	Amount      decimal.Decimal
	Category    core.Category
	Description string
	Date        core.Date
}

// ListFilter narrows ListExpenses. The zero value returns everything.
type ListFilter struct {
	// Query matches description or category label, case-insensitively.
	Query string
	// Month restricts results to one calendar month when set.
	Month *core.MonthSelector
}

// ExpenseService orchestrates the ledger, the dashboard views and the
// insight advisor over one expense store. Publisher and notifier are
// optional.
type ExpenseService struct {
	store     ports.ExpenseStore
	agg       *aggregate.Aggregator
	advisor   *insight.Advisor
	publisher ports.EventPublisher
	notifier  ports.Notifier
	memo      *cache.LRUCache[aggregate.Dashboard]
	logger    *log.Logger
	events    *log.StructuredLogger
}

type Option func(*ExpenseService)

func WithPublisher(p ports.EventPublisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *ExpenseService) { s.notifier = n }
}

// WithDashboardCache memoizes dashboards. Entries are keyed by ledger
// revision so they never need explicit invalidation for correctness.
func WithDashboardCache(c *cache.LRUCache[aggregate.Dashboard]) Option {
	return func(s *ExpenseService) { s.memo = c }
}

func WithLogger(l *log.Logger) Option {
	return func(s *ExpenseService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewExpenseService(store ports.ExpenseStore, agg *aggregate.Aggregator, advisor *insight.Advisor, opts ...Option) *ExpenseService {
	if agg == nil {
		agg = aggregate.New()
	}
	if advisor == nil {
		advisor = insight.NewAdvisor(nil, nil, nil)
	}
	s := &ExpenseService{
		store:   store,
		agg:     agg,
		advisor: advisor,
		logger:  log.New(log.Config{Component: log.ComponentExpense, Handler: slog.Default().Handler()}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// CreateExpense stores the expense, then publishes and pushes the change.
// Delivery failures are logged and never fail the request.
func (s *ExpenseService) CreateExpense(ctx context.Context, ownerID string, in NewExpense) (core.Expense, error) {
	e := core.Expense{
		OwnerID:     ownerID,
		Amount:      in.Amount,
		Category:    in.Category,
		Description: strings.TrimSpace(in.Description),
		Date:        in.Date,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.events.LogExpenseCreated(ctx, saved)

	s.announce(ctx, ports.OpCreated, saved)
	return saved, nil
}

// DeleteExpense removes one of the owner's expenses. Unknown IDs, or IDs of
// another owner, yield ports.ErrNotFound.
func (s *ExpenseService) DeleteExpense(ctx context.Context, ownerID, id string) error {
	deleted, err := s.store.DeleteExpense(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete expense: %w", err)
	}
	s.events.LogExpenseDeleted(ctx, deleted)

	s.announce(ctx, ports.OpDeleted, deleted)
	return nil
}

func (s *ExpenseService) announce(ctx context.Context, op ports.ChangeOp, e core.Expense) {
	if s.memo != nil {
		s.memo.DeletePrefix(e.OwnerID + "|")
	}

	ev := ports.ExpenseChanged{
		Op:        op,
		OwnerID:   e.OwnerID,
		ExpenseID: e.ID,
		Month:     e.Date.Selector(),
		At:        s.agg.Now(),
	}

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseChanged(ctx, ev); err != nil {
			s.events.LogError(ctx, "Failed to publish expense change", err, log.OpPublish,
				log.NewFields().WithExpense(e))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyOwner(e.OwnerID, ev); err != nil {
			s.logger.WarnContext(ctx, "Failed to notify live sessions",
				log.FieldOwnerID, e.OwnerID,
				log.FieldError, err)
		}
	}
}

// ListExpenses returns the owner's expenses, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, ownerID string, f ListFilter) ([]core.Expense, error) {
	all, err := s.store.ListExpenses(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if f.Month != nil {
		all = aggregate.FilterByMonth(all, *f.Month)
	}

	query := strings.ToLower(strings.TrimSpace(f.Query))
	if query == "" {
		return all, nil
	}

	out := make([]core.Expense, 0, len(all))
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Description), query) ||
			strings.Contains(strings.ToLower(e.Category.Label()), query) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Dashboard returns every view of sel for the owner's current snapshot.
func (s *ExpenseService) Dashboard(ctx context.Context, ownerID string, sel core.MonthSelector) (aggregate.Dashboard, error) {
	if err := sel.Validate(); err != nil {
		return aggregate.Dashboard{}, err
	}

	rev, err := s.store.Revision(ctx, ownerID)
	if err != nil {
		return aggregate.Dashboard{}, fmt.Errorf("read revision: %w", err)
	}

	// The trailing series depends on the current month, so it is part of
	// the key.
	key := dashboardKey(ownerID, rev, sel, s.agg.CurrentMonth())
	if s.memo != nil {
		if d, ok := s.memo.Get(key); ok {
			return d, nil
		}
	}

	expenses, err := s.store.ListExpenses(ctx, ownerID)
	if err != nil {
		return aggregate.Dashboard{}, fmt.Errorf("list expenses: %w", err)
	}

	d, err := s.agg.Dashboard(ctx, expenses, sel)
	if err != nil {
		return aggregate.Dashboard{}, err
	}

	if s.memo != nil {
		s.memo.Set(key, d)
	}
	s.logger.DebugContext(ctx, "Dashboard computed",
		log.FieldOwnerID, ownerID,
		log.FieldMonth, sel.String(),
		log.FieldRevision, rev,
		"expenses", len(expenses))
	return d, nil
}

func dashboardKey(ownerID string, rev int64, sel, anchor core.MonthSelector) string {
	return ownerID + "|" + strconv.FormatInt(rev, 10) + "|" + sel.String() + "|" + anchor.String()
}

// Insight returns the advice for the owner's month. With refresh set a
// cached answer is regenerated.
func (s *ExpenseService) Insight(ctx context.Context, ownerID string, sel core.MonthSelector, refresh bool) (insight.Insight, error) {
	if err := sel.Validate(); err != nil {
		return insight.Insight{}, err
	}

	rev, err := s.store.Revision(ctx, ownerID)
	if err != nil {
		return insight.Insight{}, fmt.Errorf("read revision: %w", err)
	}
	expenses, err := s.store.ListExpenses(ctx, ownerID)
	if err != nil {
		return insight.Insight{}, fmt.Errorf("list expenses: %w", err)
	}

	month := aggregate.FilterByMonth(expenses, sel)
	breakdown := aggregate.CategoryBreakdown(month, sel)
	req := ports.InsightRequest{
		Month:      sel,
		Total:      breakdown.Total(),
		ByCategory: breakdown.Amounts(),
	}

	out, err := s.advisor.Advise(ctx, ownerID, rev, req, refresh)
	if err != nil {
		return insight.Insight{}, err
	}
	fields := log.NewFields().WithMonth(sel).WithOperation(log.OpGenerate)
	fields[log.FieldOwnerID] = ownerID
	fields["source"] = out.Source
	fields["cached"] = out.Cached
	s.logger.InfoContext(ctx, "Insight served", fields.ToSlice()...)
	return out, nil
}

// CurrentMonth is the month the dashboard opens on.
func (s *ExpenseService) CurrentMonth() core.MonthSelector {
	return s.agg.CurrentMonth()
}

// DashboardCacheStats reports the dashboard memo counters. ok is false when
// the service runs without a memo.
func (s *ExpenseService) DashboardCacheStats() (stats cache.Stats, ok bool) {
	if s.memo == nil {
		return cache.Stats{}, false
	}
	return s.memo.Stats(), true
}

func (s *ExpenseService) InsightsEnabled() bool {
	return s.advisor.Enabled()
}

// Ping checks the store.
func (s *ExpenseService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close releases the store and, when it can be closed, the publisher.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close expense service: %w", err)
	}
	return nil
}
