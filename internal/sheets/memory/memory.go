package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bilancio/internal/sheets"
)

// Mirror is an in-process TransactionMirror used when no spreadsheet is
// configured and in tests.
type Mirror struct {
	mu   sync.Mutex
	rows map[int64]sheets.Row
	seq  int
}

var (
	_ sheets.TransactionMirror = (*Mirror)(nil)
	_ sheets.MirrorLister      = (*Mirror)(nil)
)

func New() *Mirror {
	return &Mirror{rows: make(map[int64]sheets.Row)}
}

// Append stores the row and returns a synthetic row reference. Appending a
// transaction twice keeps one row.
func (m *Mirror) Append(_ context.Context, r sheets.Row) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[r.TransactionID]; !ok {
		m.seq++
	}
	m.rows[r.TransactionID] = r
	return fmt.Sprintf("mem:%d", m.seq), nil
}

func (m *Mirror) Remove(_ context.Context, transactionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, transactionID)
	return nil
}

// ListRows returns the rows ordered by transaction id.
func (m *Mirror) ListRows(_ context.Context) ([]sheets.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sheets.Row, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out, nil
}
