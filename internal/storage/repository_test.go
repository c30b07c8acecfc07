package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
	"gastos/internal/ports"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "gastos.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func expense(owner, amount string, c core.Category, date string) core.Expense {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Expense{
		OwnerID:     owner,
		Amount:      decimal.RequireFromString(amount),
		Category:    c,
		Description: "test " + date,
		Date:        d,
	}
}

func TestSQLiteCreateAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inputs := []core.Expense{
		expense("alice", "12.50", core.Food, "2024-03-05"),
		expense("alice", "80", core.Mortgage, "2024-03-20"),
		expense("bob", "7.10", core.Leisure, "2024-03-06"),
	}
	for _, e := range inputs {
		created, err := repo.CreateExpense(ctx, e)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if created.ID == "" || created.CreatedAt.IsZero() {
			t.Fatalf("expected generated id and timestamp, got %+v", created)
		}
	}

	got, err := repo.ListExpenses(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 expenses for alice, got %d", len(got))
	}
	for _, e := range got {
		if e.OwnerID != "alice" {
			t.Fatalf("leaked expense of %s", e.OwnerID)
		}
	}
	if got[0].Date.String() != "2024-03-20" {
		t.Errorf("expected newest first, got %s", got[0].Date)
	}
	if !got[1].Amount.Equal(decimal.RequireFromString("12.5")) || got[1].Category != core.Food {
		t.Errorf("round trip mismatch: %+v", got[1])
	}
}

func TestSQLiteCreateRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	bad := expense("alice", "0", core.Food, "2024-03-05")
	if _, err := repo.CreateExpense(context.Background(), bad); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestSQLiteDeleteIsOwnerScoped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateExpense(ctx, expense("alice", "10", core.Bills, "2024-01-01"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.DeleteExpense(ctx, "bob", created.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another owner, got %v", err)
	}

	deleted, err := repo.DeleteExpense(ctx, "alice", created.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != created.ID || deleted.Date.Month() != time.January {
		t.Fatalf("unexpected deleted expense %+v", deleted)
	}

	if _, err := repo.DeleteExpense(ctx, "alice", created.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSQLiteRevision(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rev, err := repo.Revision(ctx, "alice")
	if err != nil || rev != 0 {
		t.Fatalf("expected revision 0, got %d (%v)", rev, err)
	}

	created, err := repo.CreateExpense(ctx, expense("alice", "10", core.Bills, "2024-01-01"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.DeleteExpense(ctx, "alice", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rev, err = repo.Revision(ctx, "alice")
	if err != nil || rev != 2 {
		t.Fatalf("expected revision 2, got %d (%v)", rev, err)
	}
	if rev, _ := repo.Revision(ctx, "bob"); rev != 0 {
		t.Fatalf("bob's revision must be untouched, got %d", rev)
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	if got := DialectPostgres.rebind(q); got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Fatalf("postgres rebind: %s", got)
	}
	if got := DialectSQLite.rebind(q); got != q {
		t.Fatalf("sqlite must keep placeholders: %s", got)
	}
}
