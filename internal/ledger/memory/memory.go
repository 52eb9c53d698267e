package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// Store keeps the ledger in process memory. One RWMutex guards every map;
// mutations hold the write lock across the row write and the budget
// adjustment, so readers never observe one without the other.
type Store struct {
	mu     sync.RWMutex
	strict bool

	categories   map[int64]core.Category
	transactions map[int64]core.Transaction
	budgets      map[int64]core.Budget

	lastCategoryID    int64
	lastTransactionID int64
	lastBudgetID      int64
}

var _ ledger.Store = (*Store)(nil)

func New(opts ledger.Options) *Store {
	return &Store{
		strict:       opts.StrictCategoryRefs,
		categories:   make(map[int64]core.Category),
		transactions: make(map[int64]core.Transaction),
		budgets:      make(map[int64]core.Budget),
	}
}

// NewFromFiles seeds categories from base/seed_categories.txt. Each line is
// "name:type"; lines without a type default to expense.
func NewFromFiles(base string, opts ledger.Options) (*Store, error) {
	s := New(opts)
	for _, line := range readLines(filepath.Join(base, "seed_categories.txt")) {
		name, kind, found := strings.Cut(line, ":")
		nc := core.NewCategory{Name: strings.TrimSpace(name), Type: core.Expense}
		if found {
			nc.Type = core.Kind(strings.TrimSpace(kind))
		}
		if _, err := s.CreateCategory(context.Background(), nc); err != nil {
			return nil, fmt.Errorf("seed category %q: %w", line, err)
		}
	}
	return s, nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(sortedValues(s.categories, func(c core.Category) int64 { return c.ID }), cloneCategory), nil
}

func (s *Store) CreateCategory(_ context.Context, nc core.NewCategory) (core.Category, error) {
	if err := nc.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCategoryID++
	c := core.Category{
		ID:          s.lastCategoryID,
		Name:        strings.TrimSpace(nc.Name),
		Type:        nc.Type,
		Description: clonePtr(nc.Description),
	}
	s.categories[c.ID] = c
	return cloneCategory(c), nil
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(sortedValues(s.transactions, func(t core.Transaction) int64 { return t.ID }), cloneTransaction), nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return cloneTransaction(t), nil
}

func (s *Store) CreateTransaction(_ context.Context, nt core.NewTransaction) (core.Transaction, error) {
	if err := nt.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.strict && nt.CategoryID != nil {
		if _, ok := s.categories[*nt.CategoryID]; !ok {
			return core.Transaction{}, ledger.ErrUnknownCategory(*nt.CategoryID)
		}
	}

	t := core.Transaction{
		ID:          s.lastTransactionID + 1,
		Amount:      nt.Amount,
		Description: strings.TrimSpace(nt.Description),
		Date:        core.Date{Time: nt.Date.UTC()},
		CategoryID:  clonePtr(nt.CategoryID),
		Type:        nt.Type,
	}
	if t.AffectsBudget() {
		if b, ok := core.MatchBudget(s.budgetList(), *t.CategoryID, t.Date.Time); ok {
			if _, err := s.updateBudgetLocked(b.ID, b.Spent.Add(t.Amount)); err != nil {
				return core.Transaction{}, err
			}
			id := b.ID
			t.BudgetID = &id
		}
	}
	s.lastTransactionID = t.ID
	s.transactions[t.ID] = t
	return cloneTransaction(t), nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if t.BudgetID != nil {
		// The budget may have been removed out of band; the row still goes.
		if b, ok := s.budgets[*t.BudgetID]; ok {
			if _, err := s.updateBudgetLocked(b.ID, b.Spent.Sub(t.Amount)); err != nil {
				return err
			}
		}
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) ListBudgets(_ context.Context) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.budgetList(), cloneBudget), nil
}

func (s *Store) GetBudget(_ context.Context, id int64) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
	}
	return cloneBudget(b), nil
}

func (s *Store) CreateBudget(_ context.Context, nb core.NewBudget) (core.Budget, error) {
	if err := nb.Validate(); err != nil {
		return core.Budget{}, err
	}
	nb = nb.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[*nb.CategoryID]; !ok {
		return core.Budget{}, ledger.ErrUnknownCategory(*nb.CategoryID)
	}
	s.lastBudgetID++
	b := core.Budget{
		ID:         s.lastBudgetID,
		CategoryID: *nb.CategoryID,
		Amount:     nb.Amount,
		Month:      clonePtr(nb.Month),
	}
	s.budgets[b.ID] = b
	return cloneBudget(b), nil
}

func (s *Store) UpdateBudget(_ context.Context, id int64, spent core.Money) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.updateBudgetLocked(id, spent)
	return cloneBudget(b), err
}

func (s *Store) RecomputeBudget(_ context.Context, id int64, repair bool) (ledger.BudgetCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return ledger.BudgetCheck{}, fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
	}
	check := ledger.BudgetCheck{
		Budget:   cloneBudget(b),
		Expected: core.ExpectedSpent(b, sortedValues(s.transactions, func(t core.Transaction) int64 { return t.ID })),
	}
	if repair && check.Drifted() {
		if _, err := s.updateBudgetLocked(id, check.Expected); err != nil {
			return ledger.BudgetCheck{}, err
		}
		check.Repaired = true
	}
	return check, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// updateBudgetLocked requires s.mu held for writing.
func (s *Store) updateBudgetLocked(id int64, spent core.Money) (core.Budget, error) {
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
	}
	b.Spent = spent
	s.budgets[id] = b
	return b, nil
}

// budgetList requires s.mu held.
func (s *Store) budgetList() []core.Budget {
	return sortedValues(s.budgets, func(b core.Budget) int64 { return b.ID })
}

// Rows never share pointer fields with callers, so neither side can edit
// the other's copy.
func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneCategory(c core.Category) core.Category {
	c.Description = clonePtr(c.Description)
	return c
}

func cloneTransaction(t core.Transaction) core.Transaction {
	t.CategoryID = clonePtr(t.CategoryID)
	t.BudgetID = clonePtr(t.BudgetID)
	return t
}

func cloneBudget(b core.Budget) core.Budget {
	b.Month = clonePtr(b.Month)
	return b
}

func cloneAll[T any](in []T, clone func(T) T) []T {
	for i := range in {
		in[i] = clone(in[i])
	}
	return in
}

func sortedValues[T any](m map[int64]T, id func(T) int64) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
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
	return out
}
