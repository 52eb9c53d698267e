package sheets

import (
	"sort"

	"bilancio/internal/core"
)

// CategoryLabel is the text written in a row's category column.
func CategoryLabel(names map[int64]string, id *int64) string {
	if id == nil {
		return core.UncategorizedName
	}
	if n, ok := names[*id]; ok {
		return n
	}
	return core.UnknownCategoryName
}

// CategoryNames indexes category names by id for CategoryLabel.
func CategoryNames(cats []core.Category) map[int64]string {
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names
}

// LedgerRows flattens every transaction into the row the mirror should hold.
func LedgerRows(txs []core.Transaction, cats []core.Category) []Row {
	names := CategoryNames(cats)
	out := make([]Row, 0, len(txs))
	for _, t := range txs {
		out = append(out, NewRow(t, CategoryLabel(names, t.CategoryID)))
	}
	return out
}

// Diff is what a mirror lacks compared with the ledger. Missing and Stale
// hold the ledger's version of each row; Orphaned holds the mirror's.
type Diff struct {
	Missing  []Row
	Stale    []Row
	Orphaned []Row
}

func (d Diff) Empty() bool {
	return len(d.Missing) == 0 && len(d.Stale) == 0 && len(d.Orphaned) == 0
}

// Compare diffs the rows the ledger implies against the rows a mirror
// holds. Dates are compared by calendar day, the precision the sheet keeps.
func Compare(want, have []Row) Diff {
	mirrored := make(map[int64]Row, len(have))
	for _, r := range have {
		mirrored[r.TransactionID] = r
	}

	var d Diff
	for _, w := range want {
		h, ok := mirrored[w.TransactionID]
		switch {
		case !ok:
			d.Missing = append(d.Missing, w)
		case !sameRow(w, h):
			d.Stale = append(d.Stale, w)
		}
		delete(mirrored, w.TransactionID)
	}
	for _, h := range mirrored {
		d.Orphaned = append(d.Orphaned, h)
	}
	sort.Slice(d.Orphaned, func(i, j int) bool { return d.Orphaned[i].TransactionID < d.Orphaned[j].TransactionID })
	return d
}

func sameRow(a, b Row) bool {
	return a.Date.UTC().Format("2006-01-02") == b.Date.UTC().Format("2006-01-02") &&
		a.Description == b.Description &&
		a.Category == b.Category &&
		a.Type == b.Type &&
		a.Amount.Equal(b.Amount)
}
