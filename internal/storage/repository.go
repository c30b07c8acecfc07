package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gastos/internal/core"
	"gastos/internal/ports"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// timestampLayout sorts lexicographically in the same order as time.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// SQLRepository stores expenses in SQLite or Postgres. Every query is
// scoped by owner.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ ports.ExpenseStore = (*SQLRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectSQLite, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLRepository{db: db, dialect: DialectSQLite, now: time.Now}, nil
}

// NewPostgresRepository connects to a Postgres database such as the one
// behind a Supabase project.
func NewPostgresRepository(dsn string) (*SQLRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectPostgres, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLRepository{db: db, dialect: DialectPostgres, now: time.Now}, nil
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListExpenses implements ports.ExpenseReader. Rows come newest first.
func (r *SQLRepository) ListExpenses(ctx context.Context, ownerID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
		SELECT id, user_id, amount, category, description, date, created_at
		FROM expenses
		WHERE user_id = ?
		ORDER BY date DESC, created_at DESC`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// CreateExpense implements ports.ExpenseWriter.
func (r *SQLRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, r.dialect.rebind(`
			INSERT INTO expenses (id, user_id, amount, category, description, date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			e.ID, e.OwnerID, e.Amount.StringFixed(2), e.Category.Code(), e.Description,
			e.Date.String(), e.CreatedAt.Format(timestampLayout))
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		return r.bumpRevision(ctx, tx, e.OwnerID)
	})
	if err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense saved",
		"backend", string(r.dialect),
		"id", e.ID,
		"category", e.Category.Code(),
		"amount", e.Amount.StringFixed(2),
		"date", e.Date.String())

	return e, nil
}

// DeleteExpense implements ports.ExpenseDeleter.
func (r *SQLRepository) DeleteExpense(ctx context.Context, ownerID, id string) (core.Expense, error) {
	var deleted core.Expense
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, r.dialect.rebind(`
			DELETE FROM expenses
			WHERE id = ? AND user_id = ?
			RETURNING id, user_id, amount, category, description, date, created_at`), id, ownerID)
		e, err := scanExpense(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ports.ErrNotFound
		}
		if err != nil {
			return err
		}
		deleted = e
		return r.bumpRevision(ctx, tx, ownerID)
	})
	if err != nil {
		return core.Expense{}, err
	}
	return deleted, nil
}

// Revision implements ports.RevisionReader. Owners without writes are at 0.
func (r *SQLRepository) Revision(ctx context.Context, ownerID string) (int64, error) {
	var rev int64
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(
		`SELECT revision FROM ledger_revisions WHERE user_id = ?`), ownerID).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return rev, nil
}

func (r *SQLRepository) bumpRevision(ctx context.Context, tx *sql.Tx, ownerID string) error {
	_, err := tx.ExecContext(ctx, r.dialect.rebind(`
		INSERT INTO ledger_revisions (user_id, revision) VALUES (?, 1)
		ON CONFLICT (user_id) DO UPDATE SET revision = ledger_revisions.revision + 1`), ownerID)
	if err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}
	return nil
}

func (r *SQLRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e         core.Expense
		amount    decimal.Decimal
		category  string
		date      timeValue
		createdAt timeValue
	)
	if err := row.Scan(&e.ID, &e.OwnerID, &amount, &category, &e.Description, &date, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	c, err := core.ParseCategory(category)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %s: %w", e.ID, err)
	}
	e.Amount = amount
	e.Category = c
	e.Date = core.DateOf(date.Time)
	e.CreatedAt = createdAt.Time
	return e, nil
}

// timeValue scans dates and timestamps stored as text (SQLite) or native
// types (Postgres).
type timeValue struct {
	time.Time
}

func (t *timeValue) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("unsupported time value %T", src)
}

func (t *timeValue) parse(s string) error {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano, core.DateLayout} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}
