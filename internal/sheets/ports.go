package sheets

import (
	"context"
	"time"

	"bilancio/internal/core"
)

// Row is one transaction as mirrored into a spreadsheet.
type Row struct {
	TransactionID int64
	Date          time.Time
	Description   string
	Category      string
	Type          core.Kind
	Amount        core.Money
}

// NewRow flattens t for the mirror; categoryName is resolved by the caller.
func NewRow(t core.Transaction, categoryName string) Row {
	return Row{
		TransactionID: t.ID,
		Date:          t.Date.UTC(),
		Description:   t.Description,
		Category:      categoryName,
		Type:          t.Type,
		Amount:        t.Amount,
	}
}

// Ports for outbound adapters.
type (
	// TransactionMirror keeps a human-readable copy of the ledger in sync.
	// Both operations must be safe to repeat for the same transaction.
	TransactionMirror interface {
		Append(ctx context.Context, r Row) (rowRef string, err error)
		Remove(ctx context.Context, transactionID int64) error
	}

	// MirrorLister reads the mirrored rows back.
	MirrorLister interface {
		ListRows(ctx context.Context) ([]Row, error)
	}
)
