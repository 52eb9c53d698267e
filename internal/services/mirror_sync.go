package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/ledger"
	"bilancio/internal/sheets"
)

// ErrMirrorNotListable is returned by Compare for mirrors that cannot read
// their rows back.
var ErrMirrorNotListable = errors.New("mirror cannot list its rows")

// MirrorSync brings a transaction mirror back in line with the ledger after
// missed events or edits made directly in the sheet.
type MirrorSync struct {
	store  ledger.Store
	mirror sheets.TransactionMirror
}

func NewMirrorSync(store ledger.Store, mirror sheets.TransactionMirror) *MirrorSync {
	return &MirrorSync{store: store, mirror: mirror}
}

// Compare reads the ledger and the mirror and returns what differs.
func (s *MirrorSync) Compare(ctx context.Context) (sheets.Diff, error) {
	lister, ok := s.mirror.(sheets.MirrorLister)
	if !ok {
		return sheets.Diff{}, ErrMirrorNotListable
	}
	want, err := s.ledgerRows(ctx)
	if err != nil {
		return sheets.Diff{}, err
	}
	have, err := lister.ListRows(ctx)
	if err != nil {
		return sheets.Diff{}, fmt.Errorf("list mirror rows: %w", err)
	}
	return sheets.Compare(want, have), nil
}

// Apply writes missing and stale rows and removes orphaned ones. It keeps
// going past individual failures and reports how many there were.
func (s *MirrorSync) Apply(ctx context.Context, d sheets.Diff) error {
	var failed, total int
	for _, batch := range [][]sheets.Row{d.Missing, d.Stale} {
		for _, r := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			total++
			if _, err := s.mirror.Append(ctx, r); err != nil {
				slog.ErrorContext(ctx, "Failed to mirror transaction", "transaction_id", r.TransactionID, "error", err)
				failed++
			}
		}
	}
	for _, r := range d.Orphaned {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++
		if err := s.mirror.Remove(ctx, r.TransactionID); err != nil {
			slog.ErrorContext(ctx, "Failed to remove orphaned mirror row", "transaction_id", r.TransactionID, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("mirror sync: %d of %d changes failed", failed, total)
	}
	return nil
}

// Sync compares and applies. A mirror that cannot list its rows gets every
// ledger row appended, which Append makes safe to repeat.
func (s *MirrorSync) Sync(ctx context.Context) (sheets.Diff, error) {
	d, err := s.Compare(ctx)
	if errors.Is(err, ErrMirrorNotListable) {
		var rows []sheets.Row
		rows, err = s.ledgerRows(ctx)
		d = sheets.Diff{Missing: rows}
	}
	if err != nil {
		return sheets.Diff{}, err
	}
	return d, s.Apply(ctx, d)
}

func (s *MirrorSync) ledgerRows(ctx context.Context) ([]sheets.Row, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return sheets.LedgerRows(txs, cats), nil
}
