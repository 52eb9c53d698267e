package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

const recentTransactionsLimit = 5

// EventPublisher receives ledger events after the mutation committed.
type EventPublisher interface {
	Publish(ctx context.Context, ev core.LedgerEvent) error
}

// LedgerService orchestrates ledger mutations across the store and the
// event publishers (message queue, live feed).
type LedgerService struct {
	store      ledger.Store
	publishers []EventPublisher
	now        func() time.Time
}

func NewLedgerService(store ledger.Store, publishers ...EventPublisher) *LedgerService {
	return &LedgerService{
		store:      store,
		publishers: publishers,
		now:        time.Now,
	}
}

// SummaryReport is the summary plus derived savings rate.
type SummaryReport struct {
	core.Summary
	SavingsRate float64 `json:"savingsRate"`
}

// Dashboard is everything the overview page renders, computed from one
// consistent read of each collection.
type Dashboard struct {
	Summary            SummaryReport        `json:"summary"`
	Breakdown          []core.CategoryShare `json:"breakdown"`
	Monthly            []core.MonthlyTotals `json:"monthly"`
	Budgets            []core.BudgetStatus  `json:"budgets"`
	RecentTransactions []core.Transaction   `json:"recentTransactions"`
	Categories         []core.Category      `json:"categories"`
}

func (s *LedgerService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *LedgerService) CreateCategory(ctx context.Context, nc core.NewCategory) (core.Category, error) {
	c, err := s.store.CreateCategory(ctx, nc)
	if err != nil {
		return core.Category{}, err
	}
	s.publish(ctx, core.CategoryEvent(c, s.now()))
	return c, nil
}

// ListTransactions returns the transactions matching f, ordered by id.
func (s *LedgerService) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	if f.IsEmpty() {
		return txs, nil
	}
	return core.Filter(txs, f), nil
}

// CreateTransaction stores the transaction, adjusting its budget, then
// publishes the event. A publish failure does not fail the request.
func (s *LedgerService) CreateTransaction(ctx context.Context, nt core.NewTransaction) (core.Transaction, error) {
	t, err := s.store.CreateTransaction(ctx, nt)
	if err != nil {
		return core.Transaction{}, err
	}
	s.publish(ctx, core.TransactionEvent(core.EventTransactionCreated, t, s.now()))
	return t, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, core.TransactionEvent(core.EventTransactionDeleted, t, s.now()))
	return nil
}

func (s *LedgerService) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx)
}

func (s *LedgerService) CreateBudget(ctx context.Context, nb core.NewBudget) (core.Budget, error) {
	b, err := s.store.CreateBudget(ctx, nb)
	if err != nil {
		return core.Budget{}, err
	}
	s.publish(ctx, core.BudgetEvent(b, s.now()))
	return b, nil
}

func (s *LedgerService) Summary(ctx context.Context, f core.TransactionFilter) (SummaryReport, error) {
	txs, err := s.ListTransactions(ctx, f)
	if err != nil {
		return SummaryReport{}, err
	}
	return newSummaryReport(txs), nil
}

func (s *LedgerService) Breakdown(ctx context.Context, f core.TransactionFilter) ([]core.CategoryShare, error) {
	var (
		txs  []core.Transaction
		cats []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		txs, err = s.ListTransactions(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		cats, err = s.store.ListCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return core.BreakdownByCategory(txs, cats), nil
}

func (s *LedgerService) Monthly(ctx context.Context, f core.TransactionFilter) ([]core.MonthlyTotals, error) {
	txs, err := s.ListTransactions(ctx, f)
	if err != nil {
		return nil, err
	}
	return core.MonthlyComparison(txs), nil
}

func (s *LedgerService) BudgetProgress(ctx context.Context) ([]core.BudgetStatus, error) {
	var (
		budgets []core.Budget
		cats    []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		budgets, err = s.store.ListBudgets(gctx)
		return err
	})
	g.Go(func() (err error) {
		cats, err = s.store.ListCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return core.BudgetProgress(budgets, cats), nil
}

// Dashboard reads the three collections concurrently and derives every
// aggregate from that single read.
func (s *LedgerService) Dashboard(ctx context.Context, f core.TransactionFilter) (Dashboard, error) {
	var (
		txs     []core.Transaction
		cats    []core.Category
		budgets []core.Budget
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		txs, err = s.ListTransactions(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		cats, err = s.store.ListCategories(gctx)
		return err
	})
	g.Go(func() (err error) {
		budgets, err = s.store.ListBudgets(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}

	return Dashboard{
		Summary:            newSummaryReport(txs),
		Breakdown:          core.BreakdownByCategory(txs, cats),
		Monthly:            core.MonthlyComparison(txs),
		Budgets:            core.BudgetProgress(budgets, cats),
		RecentTransactions: recent(txs, recentTransactionsLimit),
		Categories:         cats,
	}, nil
}

func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close closes the store and every publisher that can be closed.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	for _, p := range s.publishers {
		if c, ok := p.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("publisher: %w", err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}

func (s *LedgerService) publish(ctx context.Context, ev core.LedgerEvent) {
	for _, p := range s.publishers {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "Failed to publish ledger event",
				"kind", ev.Kind,
				"transaction_id", ev.TransactionID,
				"error", err)
		}
	}
}

func newSummaryReport(txs []core.Transaction) SummaryReport {
	sum := core.Summarize(txs)
	return SummaryReport{Summary: sum, SavingsRate: core.SavingsRate(sum)}
}

// recent returns the n latest transactions by date, newest first.
func recent(txs []core.Transaction, n int) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
