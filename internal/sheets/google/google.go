package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	defaultSheetName = "Transactions"
	rowIndexSize     = 4096
	rowIndexTTL      = 10 * time.Minute
)

// Client mirrors ledger transactions into one sheet of a spreadsheet,
// one row per transaction keyed by the id in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	// rows remembers which sheet row holds a transaction id. Entries are
	// verified against column A before use.
	rows *cache.LRU[int64, int]
}

var (
	_ sheets.TransactionMirror = (*Client)(nil)
	_ sheets.MirrorLister      = (*Client)(nil)
)

// New creates a client for spreadsheetID. opts are passed to the Sheets
// service as-is, so callers choose credentials and endpoint.
func New(ctx context.Context, spreadsheetID, sheet string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheet) == "" {
		sheet = defaultSheetName
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		rows:          cache.NewLRU[int64, int](rowIndexSize, rowIndexTTL),
	}, nil
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID and service account credentials.
// Optional: GOOGLE_SHEET_NAME (default "Transactions").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	return NewWithServiceAccount(ctx, spreadsheetID, os.Getenv("GOOGLE_SHEET_NAME"))
}

// NewWithServiceAccount creates a client authenticated with the service
// account found in the environment.
func NewWithServiceAccount(ctx context.Context, spreadsheetID, sheet string) (*Client, error) {
	creds, err := serviceAccountCredentials(ctx)
	if err != nil {
		return nil, err
	}
	return New(ctx, spreadsheetID, sheet,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	)
}

// serviceAccountCredentials reads GOOGLE_SERVICE_ACCOUNT_JSON, then
// GOOGLE_SERVICE_ACCOUNT_FILE, then GOOGLE_APPLICATION_CREDENTIALS.
func serviceAccountCredentials(ctx context.Context) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account credentials", "path", file, "size", len(b))
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// EnsureHeader writes the column header into row 1 when the sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:F1", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) > 0 && len(toStrings(resp.Values[0])) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{headerValues()}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Append writes r as a new row, or overwrites the row already holding the
// same transaction id. It returns the A1 range of the written row.
func (c *Client) Append(ctx context.Context, r sheets.Row) (string, error) {
	rowNum, err := c.findRow(ctx, r.TransactionID)
	if err != nil {
		return "", err
	}
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(r)}}

	if rowNum > 0 {
		rng := c.rowRange(rowNum)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
			return "", fmt.Errorf("update row %d: %w", rowNum, err)
		}
		return rng, nil
	}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.sheet+"!A:F", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append row: %w", err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		if n := rowFromRange(resp.Updates.UpdatedRange); n > 0 {
			c.rows.Set(r.TransactionID, n)
		}
		return resp.Updates.UpdatedRange, nil
	}
	return c.sheet, nil
}

// Remove clears the row holding transactionID. A missing row is not an error.
func (c *Client) Remove(ctx context.Context, transactionID int64) error {
	rowNum, err := c.findRow(ctx, transactionID)
	if err != nil {
		return err
	}
	if rowNum == 0 {
		slog.DebugContext(ctx, "Mirror row already absent", "transaction_id", transactionID)
		return nil
	}
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.rowRange(rowNum), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear row %d: %w", rowNum, err)
	}
	c.rows.Delete(transactionID)
	return nil
}

// ListRows reads every mirrored row, skipping the header and cleared rows.
func (c *Client) ListRows(ctx context.Context) ([]sheets.Row, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheet+"!A:F").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	out := []sheets.Row{}
	for i, raw := range resp.Values {
		cells := toStrings(raw)
		if isHeader(cells) || strings.TrimSpace(safeGet(cells, 0)) == "" {
			continue
		}
		r, err := parseRow(cells)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// findRow returns the 1-based row holding transactionID, or 0. A cached
// row is confirmed with a single-cell read; otherwise column A is scanned
// and every id found is indexed.
func (c *Client) findRow(ctx context.Context, transactionID int64) (int, error) {
	if n, ok := c.rows.Get(transactionID); ok {
		cell, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, fmt.Sprintf("%s!A%d", c.sheet, n)).Context(ctx).Do()
		if err != nil {
			return 0, fmt.Errorf("read id cell: %w", err)
		}
		if findRowByID(cell.Values, transactionID) == 1 {
			return n, nil
		}
		c.rows.Delete(transactionID)
	}

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read id column: %w", err)
	}
	for id, n := range indexRows(resp.Values) {
		c.rows.Set(id, n)
	}
	return findRowByID(resp.Values, transactionID), nil
}

func (c *Client) rowRange(rowNum int) string {
	return fmt.Sprintf("%s!A%d:F%d", c.sheet, rowNum, rowNum)
}
