package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/services"
	"bilancio/internal/sheets"
)

// BudgetAuditor checks one budget's spent total against its transactions.
type BudgetAuditor interface {
	AuditBudget(ctx context.Context, id int64) (*services.Drift, error)
}

// EventWorker consumes ledger events: it mirrors transactions into the
// spreadsheet and audits every budget an event touches.
type EventWorker struct {
	store   ledger.Store
	mirror  sheets.TransactionMirror
	auditor BudgetAuditor
}

// NewEventWorker wires the worker. mirror and auditor may be nil to skip
// that part of the processing.
func NewEventWorker(store ledger.Store, mirror sheets.TransactionMirror, auditor BudgetAuditor) *EventWorker {
	return &EventWorker{store: store, mirror: mirror, auditor: auditor}
}

// HandleMessage processes a single event delivered over AMQP. A returned
// error makes the consumer requeue the delivery once.
func (w *EventWorker) HandleMessage(ctx context.Context, msg *amqp.EventMessage) error {
	ev := msg.Event
	slog.InfoContext(ctx, "Processing ledger event",
		"message_id", msg.ID,
		"kind", ev.Kind,
		"transaction_id", ev.TransactionID)

	switch ev.Kind {
	case core.EventTransactionCreated:
		if err := w.mirrorCreated(ctx, ev); err != nil {
			return err
		}
	case core.EventTransactionDeleted:
		if err := w.mirrorDeleted(ctx, ev); err != nil {
			return err
		}
	case core.EventBudgetCreated, core.EventCategoryCreated:
	default:
		slog.WarnContext(ctx, "Ignoring unknown event kind", "kind", ev.Kind, "message_id", msg.ID)
		return nil
	}

	if ev.BudgetID != nil {
		return w.audit(ctx, *ev.BudgetID)
	}
	return nil
}

func (w *EventWorker) mirrorCreated(ctx context.Context, ev core.LedgerEvent) error {
	if w.mirror == nil {
		return nil
	}
	t, err := w.transactionFor(ctx, ev)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before the event arrived; the delete event cleans up.
		slog.InfoContext(ctx, "Transaction gone before mirroring", "transaction_id", ev.TransactionID)
		return nil
	}
	if err != nil {
		return err
	}
	names, err := w.categoryNames(ctx)
	if err != nil {
		return err
	}
	ref, err := w.mirror.Append(ctx, sheets.NewRow(t, sheets.CategoryLabel(names, t.CategoryID)))
	if err != nil {
		return fmt.Errorf("mirror transaction %d: %w", t.ID, err)
	}
	slog.InfoContext(ctx, "Mirrored transaction", "transaction_id", t.ID, "row", ref)
	return nil
}

func (w *EventWorker) mirrorDeleted(ctx context.Context, ev core.LedgerEvent) error {
	if w.mirror == nil {
		return nil
	}
	if err := w.mirror.Remove(ctx, ev.TransactionID); err != nil {
		return fmt.Errorf("remove mirrored transaction %d: %w", ev.TransactionID, err)
	}
	slog.InfoContext(ctx, "Removed mirrored transaction", "transaction_id", ev.TransactionID)
	return nil
}

func (w *EventWorker) audit(ctx context.Context, budgetID int64) error {
	if w.auditor == nil {
		return nil
	}
	drift, err := w.auditor.AuditBudget(ctx, budgetID)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("audit budget %d: %w", budgetID, err)
	}
	if drift != nil {
		slog.WarnContext(ctx, "Budget drift detected by worker",
			"budget_id", drift.BudgetID,
			"recorded", drift.Recorded.String(),
			"expected", drift.Expected.String(),
			"repaired", drift.Repaired)
	}
	return nil
}

// transactionFor prefers the copy carried by the event and falls back to the
// store for events published without it.
func (w *EventWorker) transactionFor(ctx context.Context, ev core.LedgerEvent) (core.Transaction, error) {
	if ev.Transaction != nil {
		return *ev.Transaction, nil
	}
	t, err := w.store.GetTransaction(ctx, ev.TransactionID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", ev.TransactionID, err)
	}
	return t, nil
}

func (w *EventWorker) categoryNames(ctx context.Context) (map[int64]string, error) {
	cats, err := w.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return sheets.CategoryNames(cats), nil
}

// StartupSync reconciles the mirror with the store, recovering from
// deliveries lost while the worker was down: missing rows are appended,
// stale ones rewritten and rows of deleted transactions removed.
func (w *EventWorker) StartupSync(ctx context.Context) error {
	if w.mirror == nil {
		return nil
	}
	d, err := services.NewMirrorSync(w.store, w.mirror).Sync(ctx)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"appended", len(d.Missing),
		"rewritten", len(d.Stale),
		"removed", len(d.Orphaned))
	return nil
}
