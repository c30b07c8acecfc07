package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
	"gastos/internal/ports"
)

func TestStoreCreateListDelete(t *testing.T) {
	st := New()
	ctx := context.Background()

	e1, err := st.CreateExpense(ctx, core.Expense{
		OwnerID: "u1", Amount: decimal.NewFromInt(10), Category: core.Food,
		Date: core.NewDate(2024, time.March, 1),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.CreateExpense(ctx, core.Expense{
		OwnerID: "u1", Amount: decimal.NewFromInt(20), Category: core.Bills,
		Date: core.NewDate(2024, time.March, 9),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.CreateExpense(ctx, core.Expense{
		OwnerID: "u2", Amount: decimal.NewFromInt(5), Category: core.Bills,
		Date: core.NewDate(2024, time.March, 9),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, _ := st.ListExpenses(ctx, "u1")
	if len(list) != 2 || list[0].Date.Day() != 9 {
		t.Fatalf("expected two expenses newest first, got %+v", list)
	}

	if _, err := st.DeleteExpense(ctx, "u2", e1.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("cross-owner delete must fail with ErrNotFound, got %v", err)
	}
	if _, err := st.DeleteExpense(ctx, "u1", e1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if list, _ := st.ListExpenses(ctx, "u1"); len(list) != 1 {
		t.Fatalf("expected one expense left, got %d", len(list))
	}
	// The earlier snapshot is unaffected by the delete.
	if len(list) != 2 {
		t.Fatalf("snapshot changed after delete")
	}

	if rev, _ := st.Revision(ctx, "u1"); rev != 3 {
		t.Fatalf("expected revision 3, got %d", rev)
	}
}

func TestStoreRejectsInvalid(t *testing.T) {
	st := New()
	_, err := st.CreateExpense(context.Background(), core.Expense{OwnerID: "u1", Amount: decimal.NewFromInt(1)})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if rev, _ := st.Revision(context.Background(), "u1"); rev != 0 {
		t.Fatalf("rejected write must not bump revision")
	}
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.txt")
	content := "# comment\n\nu1;2024-03-05;COMIDA;100;Compra\nu1;2024-03-20;ocio;50,5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	list, _ := st.ListExpenses(context.Background(), "u1")
	if len(list) != 2 {
		t.Fatalf("expected 2 seeded expenses, got %d", len(list))
	}
	if list[0].Category != core.Leisure || !list[0].Amount.Equal(decimal.RequireFromString("50.5")) {
		t.Fatalf("unexpected first expense %+v", list[0])
	}

	bad := filepath.Join(t.TempDir(), "bad.txt")
	_ = os.WriteFile(bad, []byte("u1;2024-03-05;VIAJES;10\n"), 0o600)
	if _, err := NewFromFile(bad); !errors.Is(err, core.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}
