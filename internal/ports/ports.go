// Package ports declares the boundaries between the dashboard logic and its
// collaborators: expense storage, the insight generator, the event bus and
// live-update delivery.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

// ErrNotFound is returned when an owner has no expense with the given ID.
var ErrNotFound = errors.New("not found")

type (
	// ExpenseReader returns every expense of one owner. Implementations must
	// never return rows of another owner.
	ExpenseReader interface {
		ListExpenses(ctx context.Context, ownerID string) ([]core.Expense, error)
	}

	// ExpenseWriter validates and stores a new expense, filling in ID and
	// CreatedAt when empty.
	ExpenseWriter interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	}

	// ExpenseDeleter removes an owner's expense and returns it.
	ExpenseDeleter interface {
		DeleteExpense(ctx context.Context, ownerID, id string) (core.Expense, error)
	}

	// RevisionReader exposes a per-owner counter that changes on every
	// write. It identifies an expense snapshot.
	RevisionReader interface {
		Revision(ctx context.Context, ownerID string) (int64, error)
	}

	ExpenseStore interface {
		ExpenseReader
		ExpenseWriter
		ExpenseDeleter
		RevisionReader
		Ping(ctx context.Context) error
		Close() error
	}

	InsightGenerator interface {
		GenerateInsight(ctx context.Context, req InsightRequest) (string, error)
	}

	EventPublisher interface {
		PublishExpenseChanged(ctx context.Context, ev ExpenseChanged) error
	}

	// Notifier pushes change notifications to an owner's live sessions.
	Notifier interface {
		NotifyOwner(ownerID string, ev ExpenseChanged) error
	}
)

// InsightRequest is the input of an insight generator: a month's total and
// its per-category amounts keyed by category code.
type InsightRequest struct {
	Month      core.MonthSelector
	Total      decimal.Decimal
	ByCategory map[string]decimal.Decimal
}

type ChangeOp string

const (
	OpCreated ChangeOp = "created"
	OpDeleted ChangeOp = "deleted"
)

// ExpenseChanged describes a write to an owner's ledger.
type ExpenseChanged struct {
	Op        ChangeOp
	OwnerID   string
	ExpenseID string
	// Month is the calendar month of the affected expense.
	Month core.MonthSelector
	At    time.Time
}
