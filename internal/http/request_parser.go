// Package http serves the ledger JSON API.
//
// This file holds the request decoding shared by the handlers: query
// filters, path ids and JSON bodies.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"bilancio/internal/core"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ParseFilter reads startDate, endDate and categoryId from the query. Each
// is optional; malformed values are reported as field errors together.
func ParseFilter(query url.Values) (core.TransactionFilter, error) {
	var (
		f    core.TransactionFilter
		verr core.ValidationError
	)

	if v := strings.TrimSpace(query.Get("startDate")); v != "" {
		if d, err := core.ParseDate(v); err != nil {
			verr.Add("startDate", "must be RFC3339 or YYYY-MM-DD")
		} else {
			f.StartDate = &d.Time
		}
	}
	if v := strings.TrimSpace(query.Get("endDate")); v != "" {
		if d, err := core.ParseDate(v); err != nil {
			verr.Add("endDate", "must be RFC3339 or YYYY-MM-DD")
		} else {
			f.EndDate = &d.Time
		}
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		verr.Add("endDate", "must not be before startDate")
	}
	if v := strings.TrimSpace(query.Get("categoryId")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err != nil || id < 1 {
			verr.Add("categoryId", "must be a positive integer")
		} else {
			f.CategoryID = &id
		}
	}

	if err := verr.OrNil(); err != nil {
		return core.TransactionFilter{}, err
	}
	return f, nil
}

// ParseID parses a path id. Non-numeric or non-positive ids are validation
// errors.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, core.Invalid("id", "must be a positive integer")
	}
	return id, nil
}

// DecodeJSON decodes a single JSON value from body into dst. Syntax and
// type errors become a ValidationError on "body" or on the offending field.
func DecodeJSON(body io.Reader, dst any) error {
	if body == nil {
		return core.Invalid("body", "is required")
	}
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return core.Invalid("body", "must contain a single JSON object")
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return core.Invalid("body", "is required")
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return core.Invalid(typeErr.Field, fmt.Sprintf("must be %s", typeErr.Type))
	default:
		return core.Invalid("body", "is not valid JSON: "+err.Error())
	}
}

// DecodeCategory reads a category body, reporting every bad field at once.
func DecodeCategory(body io.Reader) (core.NewCategory, error) {
	f, err := decodeFields(body)
	if err != nil {
		return core.NewCategory{}, err
	}
	nc := core.NewCategory{
		Name:        f.text("name"),
		Type:        f.kind("type"),
		Description: f.optionalText("description"),
	}
	return nc, f.merge(nc.Validate())
}

// DecodeTransaction reads a transaction body, reporting every bad field at
// once.
func DecodeTransaction(body io.Reader) (core.NewTransaction, error) {
	f, err := decodeFields(body)
	if err != nil {
		return core.NewTransaction{}, err
	}
	nt := core.NewTransaction{
		Amount:      f.money("amount"),
		Description: f.text("description"),
		Date:        f.date("date"),
		CategoryID:  f.id("categoryId"),
		Type:        f.kind("type"),
	}
	return nt, f.merge(nt.Validate())
}

// DecodeBudget reads a budget body, reporting every bad field at once. A
// spent member is ignored; the month is resolved in the offset it was
// written with.
func DecodeBudget(body io.Reader) (core.NewBudget, error) {
	f, err := decodeFields(body)
	if err != nil {
		return core.NewBudget{}, err
	}
	nb := core.NewBudget{
		CategoryID: f.id("categoryId"),
		Amount:     f.money("amount"),
		Month:      f.month("month"),
	}
	return nb, f.merge(nb.Validate())
}

// bodyFields holds the members of a JSON object, each parsed on its own so
// one bad value does not hide the others.
type bodyFields struct {
	raw  map[string]json.RawMessage
	verr core.ValidationError
}

func decodeFields(body io.Reader) (*bodyFields, error) {
	var raw map[string]json.RawMessage
	if err := DecodeJSON(body, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, core.Invalid("body", "must be a JSON object")
	}
	return &bodyFields{raw: raw}, nil
}

// value returns the raw member, treating null like an absent one.
func (f *bodyFields) value(name string) (json.RawMessage, bool) {
	v, ok := f.raw[name]
	if !ok || string(v) == "null" {
		return nil, false
	}
	return v, true
}

func (f *bodyFields) flagged(name string) bool {
	for _, fe := range f.verr.Fields {
		if fe.Field == name {
			return true
		}
	}
	return false
}

// merge adds the validation failures of fields that decoded cleanly.
func (f *bodyFields) merge(err error) error {
	var v *core.ValidationError
	if err != nil && !errors.As(err, &v) {
		return err
	}
	if v != nil {
		for _, fe := range v.Fields {
			if !f.flagged(fe.Field) {
				f.verr.Add(fe.Field, fe.Message)
			}
		}
	}
	return f.verr.OrNil()
}

// stringValue decodes a JSON string member; ok is false when it is absent
// or was reported.
func (f *bodyFields) stringValue(name string) (string, bool) {
	raw, present := f.value(name)
	if !present {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		f.verr.Add(name, "must be a string")
		return "", false
	}
	return s, true
}

func (f *bodyFields) text(name string) string {
	s, _ := f.stringValue(name)
	return s
}

func (f *bodyFields) optionalText(name string) *string {
	if s, ok := f.stringValue(name); ok {
		return &s
	}
	return nil
}

func (f *bodyFields) kind(name string) core.Kind {
	return core.Kind(f.text(name))
}

func (f *bodyFields) id(name string) *int64 {
	raw, present := f.value(name)
	if !present {
		return nil
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil || id < 1 {
		f.verr.Add(name, "must be a positive integer")
		return nil
	}
	return &id
}

// money accepts a decimal string or a JSON number.
func (f *bodyFields) money(name string) core.Money {
	raw, present := f.value(name)
	if !present {
		return core.Money{}
	}
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			f.verr.Add(name, "must be a decimal number")
			return core.Money{}
		}
	}
	m, err := core.ParseMoney(s)
	switch {
	case errors.Is(err, core.ErrAmountPrecision):
		f.verr.Add(name, "must have at most two decimal places")
	case err != nil:
		f.verr.Add(name, "must be a decimal number")
	}
	return m
}

func (f *bodyFields) date(name string) core.Date {
	s, ok := f.stringValue(name)
	if !ok {
		return core.Date{}
	}
	d, err := core.ParseDate(s)
	if err != nil {
		f.verr.Add(name, "must be RFC3339 or YYYY-MM-DD")
	}
	return d
}

func (f *bodyFields) month(name string) *core.Date {
	s, ok := f.stringValue(name)
	if !ok {
		return nil
	}
	d, err := core.ParseMonth(s)
	if err != nil {
		f.verr.Add(name, "must be RFC3339 or YYYY-MM-DD")
		return nil
	}
	return &d
}
