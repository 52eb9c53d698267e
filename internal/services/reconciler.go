package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// ReconcilerConfig holds configuration for the budget reconciler
type ReconcilerConfig struct {
	// Interval between full reconciliation passes (default: 1h)
	Interval time.Duration

	// Repair overwrites a drifted spent total with the recomputed value.
	// When false, drift is only reported.
	Repair bool
}

// DefaultReconcilerConfig returns sensible defaults
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval: time.Hour,
		Repair:   false,
	}
}

// Drift is a budget whose stored spent total disagrees with a full
// recompute over the transactions charged to it.
type Drift struct {
	BudgetID int64      `json:"budgetId"`
	Recorded core.Money `json:"recorded"`
	Expected core.Money `json:"expected"`
	Repaired bool       `json:"repaired"`
}

// Reconciler audits the incrementally maintained budget totals. The store
// keeps them exact on its own; the audit catches rows edited out of band.
type Reconciler struct {
	store  ledger.Store
	config ReconcilerConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReconciler(store ledger.Store, config ReconcilerConfig) *Reconciler {
	return &Reconciler{store: store, config: config}
}

// AuditBudget checks a single budget. It returns nil when the budget is
// consistent.
func (r *Reconciler) AuditBudget(ctx context.Context, id int64) (*Drift, error) {
	return r.check(ctx, id)
}

// ReconcileAll audits every budget and returns the drifted ones.
func (r *Reconciler) ReconcileAll(ctx context.Context) ([]Drift, error) {
	budgets, err := r.store.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	var drifts []Drift
	for _, b := range budgets {
		d, err := r.check(ctx, b.ID)
		if err != nil {
			return drifts, err
		}
		if d != nil {
			drifts = append(drifts, *d)
		}
	}

	slog.InfoContext(ctx, "Budget reconciliation completed",
		"budgets", len(budgets),
		"drifted", len(drifts),
		"repair", r.config.Repair)
	return drifts, nil
}

// check recomputes and, in repair mode, rewrites inside one store
// operation so an expense committed meanwhile is never overwritten.
func (r *Reconciler) check(ctx context.Context, id int64) (*Drift, error) {
	c, err := r.store.RecomputeBudget(ctx, id, r.config.Repair)
	if err != nil {
		return nil, fmt.Errorf("audit budget %d: %w", id, err)
	}
	if !c.Drifted() {
		return nil, nil
	}

	slog.WarnContext(ctx, "Budget spent total drifted",
		"budget_id", id,
		"recorded", c.Budget.Spent.String(),
		"expected", c.Expected.String())
	if c.Repaired {
		slog.InfoContext(ctx, "Budget spent total repaired", "budget_id", id, "spent", c.Expected.String())
	}
	return &Drift{BudgetID: id, Recorded: c.Budget.Spent, Expected: c.Expected, Repaired: c.Repaired}, nil
}

// Start begins the periodic reconciliation loop. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)

	slog.InfoContext(ctx, "Reconciler started", "interval", r.config.Interval, "repair", r.config.Repair)
	return nil
}

// Stop gracefully stops the loop and waits for completion.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	close(r.stopCh)

	select {
	case <-r.doneCh:
		slog.InfoContext(ctx, "Reconciler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reconciler stop timed out")
		return ctx.Err()
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

// IsRunning returns whether the loop is currently running
func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reconciler) runLoop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.runOnce(ctx)

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) {
	if _, err := r.ReconcileAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Budget reconciliation failed", "error", err)
	}
}
