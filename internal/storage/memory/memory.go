package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gastos/internal/core"
	"gastos/internal/ports"
)

// Store keeps expenses in process memory, grouped by owner.
type Store struct {
	mu        sync.Mutex
	items     map[string][]core.Expense
	revisions map[string]int64
	now       func() time.Time
}

var _ ports.ExpenseStore = (*Store)(nil)

func New() *Store {
	return &Store{
		items:     make(map[string][]core.Expense),
		revisions: make(map[string]int64),
		now:       time.Now,
	}
}

// NewFromFile seeds a store from a semicolon separated file with lines of
// owner;date;category;amount;description. Blank lines and lines starting
// with # are skipped.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	for i, line := range lines {
		e, err := parseSeedLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", path, i+1, err)
		}
		if _, err := s.CreateExpense(context.Background(), e); err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", path, i+1, err)
		}
	}
	return s, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[e.OwnerID] = append(s.items[e.OwnerID], e)
	s.revisions[e.OwnerID]++
	return e, nil
}

// ListExpenses returns a copy of the owner's expenses, newest first.
func (s *Store) ListExpenses(_ context.Context, ownerID string) ([]core.Expense, error) {
	s.mu.Lock()
	out := append([]core.Expense(nil), s.items[ownerID]...)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteExpense(_ context.Context, ownerID, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.items[ownerID]
	for i, e := range items {
		if e.ID != id {
			continue
		}
		s.items[ownerID] = append(items[:i:i], items[i+1:]...)
		s.revisions[ownerID]++
		return e, nil
	}
	return core.Expense{}, ports.ErrNotFound
}

func (s *Store) Revision(_ context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revisions[ownerID], nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func parseSeedLine(line string) (core.Expense, error) {
	fields := strings.SplitN(line, ";", 5)
	if len(fields) < 4 {
		return core.Expense{}, fmt.Errorf("expected at least 4 fields, got %d", len(fields))
	}
	date, err := core.ParseDate(fields[1])
	if err != nil {
		return core.Expense{}, err
	}
	cat, err := core.ParseCategory(fields[2])
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseAmount(fields[3])
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		OwnerID:  strings.TrimSpace(fields[0]),
		Date:     date,
		Category: cat,
		Amount:   amount,
	}
	if len(fields) == 5 {
		e.Description = strings.TrimSpace(fields[4])
	}
	return e, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
