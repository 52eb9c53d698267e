package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheet serves the subset of the Sheets values API the client uses.
type fakeSheet struct {
	mu          sync.Mutex
	rows        [][]any
	columnReads int
}

var (
	rowInRange = regexp.MustCompile(`!A(\d+)`)
	singleCell = regexp.MustCompile(`!A(\d+)$`)
)

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const prefix = "/v4/spreadsheets/sheet-id/values/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	rng := strings.TrimPrefix(r.URL.Path, prefix)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":append"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(f.rows, vr.Values...)
		n := len(f.rows)
		fmt.Fprintf(w, `{"updates":{"updatedRange":"Transactions!A%d:F%d"}}`, n, n)
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":clear"):
		if n := f.rowOf(rng); n > 0 && n <= len(f.rows) {
			f.rows[n-1] = []any{}
		}
		fmt.Fprint(w, `{}`)
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		n := f.rowOf(rng)
		for len(f.rows) < n {
			f.rows = append(f.rows, []any{})
		}
		f.rows[n-1] = vr.Values[0]
		fmt.Fprint(w, `{}`)
	case r.Method == http.MethodGet:
		var out [][]any
		switch {
		case singleCell.MatchString(rng):
			if n := f.rowOf(rng); n > 0 && n <= len(f.rows) && len(f.rows[n-1]) > 0 {
				out = append(out, f.rows[n-1][:1])
			}
		case strings.HasSuffix(rng, "!A:A"):
			f.columnReads++
			for _, row := range f.rows {
				if len(row) == 0 {
					out = append(out, []any{})
					continue
				}
				out = append(out, row[:1])
			}
		case strings.HasSuffix(rng, "!A1:F1"):
			if len(f.rows) > 0 && len(f.rows[0]) > 0 {
				out = append(out, f.rows[0])
			}
		default:
			out = f.rows
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": out})
	default:
		http.Error(w, "unsupported", http.StatusBadRequest)
	}
}

func (f *fakeSheet) rowOf(rng string) int {
	m := rowInRange.FindStringSubmatch(rng)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func newTestClient(t *testing.T) (*Client, *fakeSheet) {
	t.Helper()
	fake := &fakeSheet{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), "sheet-id", "",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, fake
}

func testRow(id int64, amount string) sheets.Row {
	return sheets.Row{
		TransactionID: id,
		Date:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Description:   "row " + strconv.FormatInt(id, 10),
		Category:      "Food",
		Type:          core.Expense,
		Amount:        core.MustParseMoney(amount),
	}
}

func TestClientMirrorsTransactions(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t)

	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("header: %v", err)
	}
	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("second header: %v", err)
	}
	if len(fake.rows) != 1 {
		t.Fatalf("header should be written once, rows=%v", fake.rows)
	}

	ref, err := c.Append(ctx, testRow(1, "10"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "Transactions!A2:F2" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if _, err := c.Append(ctx, testRow(2, "5")); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Appending an existing id rewrites its row in place.
	ref, err = c.Append(ctx, testRow(1, "11"))
	if err != nil {
		t.Fatalf("re-append: %v", err)
	}
	if ref != "Transactions!A2:F2" {
		t.Fatalf("expected row 2 to be rewritten, got %q", ref)
	}

	rows, err := c.ListRows(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 || rows[0].Amount.String() != "11.00" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	if err := c.Remove(ctx, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := c.Remove(ctx, 1); err != nil {
		t.Fatalf("remove missing row: %v", err)
	}
	rows, _ = c.ListRows(ctx)
	if len(rows) != 1 || rows[0].TransactionID != 2 {
		t.Fatalf("expected only transaction 2, got %+v", rows)
	}
}

func TestClientReusesRowIndex(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t)
	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatalf("header: %v", err)
	}
	if _, err := c.Append(ctx, testRow(4, "10")); err != nil {
		t.Fatalf("append: %v", err)
	}
	reads := fake.columnReads

	// The appended row is indexed, so rewriting it needs no column scan.
	if _, err := c.Append(ctx, testRow(4, "12")); err != nil {
		t.Fatalf("re-append: %v", err)
	}
	if fake.columnReads != reads {
		t.Errorf("column scanned %d extra times", fake.columnReads-reads)
	}

	// A stale index entry falls back to a scan.
	fake.mu.Lock()
	moved := fake.rows[1]
	fake.rows = append(fake.rows, moved)
	fake.rows[1] = []any{}
	fake.mu.Unlock()
	if err := c.Remove(ctx, 4); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if fake.columnReads != reads+1 {
		t.Errorf("expected one column scan after the row moved, got %d", fake.columnReads-reads)
	}
	rows, err := c.ListRows(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %+v", rows)
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), "  ", "x", goption.WithoutAuthentication()); err == nil {
		t.Fatal("expected error for empty spreadsheet id")
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestNewFromEnv_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", t.TempDir()+string(os.PathSeparator)+"missing.json")

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}
