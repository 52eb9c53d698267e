package google

import (
	"fmt"
	"strconv"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/sheets"
)

var header = []string{"ID", "Date", "Description", "Category", "Type", "Amount"}

func headerValues() []any {
	out := make([]any, len(header))
	for i, h := range header {
		out[i] = h
	}
	return out
}

func isHeader(cells []string) bool {
	return strings.EqualFold(strings.TrimSpace(safeGet(cells, 0)), header[0])
}

func rowValues(r sheets.Row) []any {
	return []any{
		strconv.FormatInt(r.TransactionID, 10),
		r.Date.Format("2006-01-02"),
		r.Description,
		r.Category,
		string(r.Type),
		r.Amount.String(),
	}
}

func parseRow(cells []string) (sheets.Row, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(safeGet(cells, 0)), 10, 64)
	if err != nil {
		return sheets.Row{}, fmt.Errorf("invalid id %q", safeGet(cells, 0))
	}
	date, err := core.ParseDate(safeGet(cells, 1))
	if err != nil {
		return sheets.Row{}, fmt.Errorf("invalid date %q", safeGet(cells, 1))
	}
	amount, err := core.ParseMoney(safeGet(cells, 5))
	if err != nil {
		return sheets.Row{}, fmt.Errorf("invalid amount %q", safeGet(cells, 5))
	}
	return sheets.Row{
		TransactionID: id,
		Date:          date.Time,
		Description:   safeGet(cells, 2),
		Category:      safeGet(cells, 3),
		Type:          core.Kind(strings.ToLower(strings.TrimSpace(safeGet(cells, 4)))),
		Amount:        amount,
	}, nil
}

// findRowByID returns the 1-based sheet row whose first cell is id, or 0.
func findRowByID(col [][]any, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, raw := range col {
		if strings.TrimSpace(safeGet(toStrings(raw), 0)) == want {
			return i + 1
		}
	}
	return 0
}

func toStrings(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func safeGet(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// indexRows maps every id in column A to its 1-based row. The header and
// cleared rows are skipped; a duplicated id keeps its first row.
func indexRows(col [][]any) map[int64]int {
	out := make(map[int64]int, len(col))
	for i, raw := range col {
		id, err := strconv.ParseInt(strings.TrimSpace(safeGet(toStrings(raw), 0)), 10, 64)
		if err != nil {
			continue
		}
		if _, seen := out[id]; !seen {
			out[id] = i + 1
		}
	}
	return out
}

// rowFromRange extracts the first row number of an A1 range such as
// "Transactions!A7:F7", or 0.
func rowFromRange(rng string) int {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[i+1:]
	}
	rng = strings.TrimLeft(rng, "ABCDEFGHIJKLMNOPQRSTUVWXYZ$")
	end := strings.IndexFunc(rng, func(r rune) bool { return r < '0' || r > '9' })
	if end >= 0 {
		rng = rng[:end]
	}
	n, err := strconv.Atoi(rng)
	if err != nil {
		return 0
	}
	return n
}
