package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const maxDescriptionLen = 200

type (
	// Kind is the flow direction shared by categories and transactions.
	Kind string

	// Date is an instant. It decodes from RFC 3339 or plain YYYY-MM-DD and
	// is always encoded and stored in UTC.
	Date struct {
		time.Time
	}

	Category struct {
		ID          int64   `json:"id"`
		Name        string  `json:"name"`
		Type        Kind    `json:"type"`
		Description *string `json:"description"`
	}

	Transaction struct {
		ID          int64  `json:"id"`
		Amount      Money  `json:"amount"`
		Description string `json:"description"`
		Date        Date   `json:"date"`
		CategoryID  *int64 `json:"categoryId"`
		Type        Kind   `json:"type"`
		// BudgetID is the budget whose spent total this transaction adjusted
		// on creation. Deletion reverses exactly that budget.
		BudgetID *int64 `json:"-"`
	}

	Budget struct {
		ID         int64 `json:"id"`
		CategoryID int64 `json:"categoryId"`
		Amount     Money `json:"amount"`
		Spent      Money `json:"spent"`
		Month      *Date `json:"month"`
	}

	NewCategory struct {
		Name        string  `json:"name"`
		Type        Kind    `json:"type"`
		Description *string `json:"description"`
	}

	NewTransaction struct {
		Amount      Money  `json:"amount"`
		Description string `json:"description"`
		Date        Date   `json:"date"`
		CategoryID  *int64 `json:"categoryId"`
		Type        Kind   `json:"type"`
	}

	// NewBudget has no Spent field: the store always starts it at zero.
	NewBudget struct {
		CategoryID *int64 `json:"categoryId"`
		Amount     Money  `json:"amount"`
		Month      *Date  `json:"month"`
	}
)

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// NewDate creates a new Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts RFC 3339 timestamps and YYYY-MM-DD dates and returns
// the instant in UTC.
func ParseDate(s string) (Date, error) {
	t, err := parseInstant(s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t.UTC()}, nil
}

// ParseMonth returns midnight UTC on the first day of the calendar month s
// falls in, read in the offset s was written with.
func ParseMonth(s string) (Date, error) {
	t, err := parseInstant(s)
	if err != nil {
		return Date{}, err
	}
	return monthOf(t), nil
}

func parseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func monthOf(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.UTC().Format(time.RFC3339))
}

// UnmarshalJSON keeps the offset the value was written with, so a budget
// month can be resolved in the writer's calendar. Stores convert to UTC.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := parseInstant(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// dbTimeLayouts covers what the supported SQL drivers hand back for
// DATETIME/TIMESTAMP columns when they return text instead of time.Time.
var dbTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = v.UTC()
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	case nil:
		d.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d *Date) scanText(s string) error {
	for _, layout := range dbTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("scan date: unrecognized format %q", s)
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.UTC(), nil
}

func (c NewCategory) Validate() error {
	var v ValidationError
	if strings.TrimSpace(c.Name) == "" {
		v.Add("name", "must not be empty")
	}
	if !c.Type.Valid() {
		v.Add("type", "must be income or expense")
	}
	return v.OrNil()
}

func (t NewTransaction) Validate() error {
	var v ValidationError
	checkAmount(&v, t.Amount)
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		v.Add("description", "must not be empty")
	} else if len(t.Description) > maxDescriptionLen {
		v.Add("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLen))
	}
	if t.Date.IsZero() {
		v.Add("date", "is required")
	}
	if !t.Type.Valid() {
		v.Add("type", "must be income or expense")
	}
	return v.OrNil()
}

func (b NewBudget) Validate() error {
	var v ValidationError
	if b.CategoryID == nil {
		v.Add("categoryId", "is required")
	}
	checkAmount(&v, b.Amount)
	return v.OrNil()
}

func checkAmount(v *ValidationError, m Money) {
	switch {
	case !m.IsPositive():
		v.Add("amount", "must be greater than zero")
	case m.ExceedsMax():
		v.Add("amount", "must be at most "+MaxAmount.String())
	}
}

// Normalize returns a copy with the month truncated to midnight UTC on the
// first of the calendar month the value names in its own offset.
func (b NewBudget) Normalize() NewBudget {
	if b.Month != nil {
		m := monthOf(b.Month.Time)
		b.Month = &m
	}
	return b
}

// AffectsBudget reports whether creating or deleting t moves a budget.
func (t Transaction) AffectsBudget() bool {
	return t.Type == Expense && t.CategoryID != nil
}

// Remaining is the amount left before the limit is reached; negative when over.
func (b Budget) Remaining() Money {
	return b.Amount.Sub(b.Spent)
}
