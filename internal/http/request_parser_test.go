package http

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
)

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(url.Values{
		"startDate":  {"2024-01-01"},
		"endDate":    {"2024-01-31T23:59:59Z"},
		"categoryId": {"3"},
	})
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	if !f.StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartDate = %v", f.StartDate)
	}
	if f.EndDate.Day() != 31 {
		t.Errorf("EndDate = %v", f.EndDate)
	}
	if f.CategoryID == nil || *f.CategoryID != 3 {
		t.Errorf("CategoryID = %v", f.CategoryID)
	}

	empty, err := ParseFilter(url.Values{})
	if err != nil || !empty.IsEmpty() {
		t.Errorf("empty query: filter=%+v err=%v", empty, err)
	}
}

func TestParseFilter_CollectsEveryBadField(t *testing.T) {
	_, err := ParseFilter(url.Values{
		"startDate":  {"soon"},
		"categoryId": {"-1"},
	})
	if !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "startDate") || !strings.Contains(err.Error(), "categoryId") {
		t.Errorf("error %q should name both fields", err)
	}
}

func TestParseFilter_RejectsInvertedRange(t *testing.T) {
	_, err := ParseFilter(url.Values{"startDate": {"2024-02-01"}, "endDate": {"2024-01-01"}})
	if !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseID(t *testing.T) {
	for _, raw := range []string{"", "abc", "0", "-4", "1.5"} {
		if _, err := ParseID(raw); !core.IsValidation(err) {
			t.Errorf("ParseID(%q) err = %v, want validation error", raw, err)
		}
	}
	if id, err := ParseID("17"); err != nil || id != 17 {
		t.Errorf("ParseID(17) = %d, %v", id, err)
	}
}

func TestDecodeJSON(t *testing.T) {
	var nc core.NewCategory
	if err := DecodeJSON(strings.NewReader(`{"name":"Food","type":"expense"}`), &nc); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if nc.Name != "Food" || nc.Type != core.Expense {
		t.Errorf("decoded %+v", nc)
	}

	cases := map[string]string{
		"empty":    ``,
		"trailing": `{"name":"a"} {"name":"b"}`,
		"syntax":   `{"name":`,
		"type":     `{"name":5}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var v core.NewCategory
			if err := DecodeJSON(strings.NewReader(body), &v); !core.IsValidation(err) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var v *core.ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected validation error, got %v", err)
	}
	names := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestDecodeTransaction_ReportsEveryBadField(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"bad date", `{"amount":"5","description":"x","date":"yesterday","type":"expense"}`, []string{"date"}},
		{"bad amount hides nothing", `{"amount":"abc","description":"","type":"bogus"}`, []string{"amount", "description", "date", "type"}},
		{"extra precision", `{"amount":"30.005","description":"x","date":"2024-01-01","type":"expense"}`, []string{"amount"}},
		{"too large", `{"amount":"123456789012345678901234567890.12","description":"x","date":"2024-01-01","type":"expense"}`, []string{"amount"}},
		{"wrong member types", `{"amount":true,"description":5,"date":"2024-01-01","categoryId":"x","type":"expense"}`, []string{"amount", "description", "categoryId"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTransaction(strings.NewReader(tt.body))
			assert.ElementsMatch(t, tt.want, fieldNames(t, err))
		})
	}
}

func TestDecodeTransaction(t *testing.T) {
	nt, err := DecodeTransaction(strings.NewReader(`{"amount":12.5,"description":" bread ","date":"2024-03-10","categoryId":3,"type":"expense"}`))
	require.NoError(t, err)
	assert.Equal(t, "12.50", nt.Amount.String())
	assert.Equal(t, " bread ", nt.Description)
	assert.True(t, nt.Date.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, nt.CategoryID)
	assert.Equal(t, int64(3), *nt.CategoryID)

	nt, err = DecodeTransaction(strings.NewReader(`{"amount":"1","description":"x","date":"2024-03-10","categoryId":null,"type":"income"}`))
	require.NoError(t, err)
	assert.Nil(t, nt.CategoryID)

	for _, body := range []string{``, `null`, `[]`, `{"amount":`} {
		_, err := DecodeTransaction(strings.NewReader(body))
		assert.Equal(t, []string{"body"}, fieldNames(t, err), body)
	}
}

func TestDecodeBudget(t *testing.T) {
	nb, err := DecodeBudget(strings.NewReader(`{"categoryId":1,"amount":"100","spent":"55","month":"2024-03-01T00:00:00+02:00"}`))
	require.NoError(t, err)
	require.NotNil(t, nb.Month)
	assert.True(t, nb.Month.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), nb.Month.Time)

	_, err = DecodeBudget(strings.NewReader(`{"categoryId":0,"amount":"x","month":"March"}`))
	assert.ElementsMatch(t, []string{"categoryId", "amount", "month"}, fieldNames(t, err))
}

func TestDecodeCategory(t *testing.T) {
	nc, err := DecodeCategory(strings.NewReader(`{"name":"Food","type":"expense","description":"weekly"}`))
	require.NoError(t, err)
	require.NotNil(t, nc.Description)
	assert.Equal(t, "weekly", *nc.Description)

	_, err = DecodeCategory(strings.NewReader(`{"name":7,"type":"savings"}`))
	assert.ElementsMatch(t, []string{"name", "type"}, fieldNames(t, err))
}
