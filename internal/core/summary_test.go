package core

import (
	"reflect"
	"testing"
	"time"
)

func tx(id int64, amount string, kind Kind, cat *int64, date Date) Transaction {
	return Transaction{ID: id, Amount: MustParseMoney(amount), Description: "t", Date: date, CategoryID: cat, Type: kind}
}

func TestSummarize(t *testing.T) {
	if s := Summarize(nil); !s.Income.IsZero() || !s.Expenses.IsZero() || !s.Balance.IsZero() {
		t.Fatalf("empty set must summarize to zeros, got %+v", s)
	}

	txs := []Transaction{
		tx(1, "1000", Income, nil, NewDate(2024, 3, 1)),
		tx(2, "250.25", Expense, nil, NewDate(2024, 3, 2)),
		tx(3, "49.75", Expense, nil, NewDate(2024, 3, 3)),
	}
	s := Summarize(txs)
	if s.Income.String() != "1000.00" || s.Expenses.String() != "300.00" || s.Balance.String() != "700.00" {
		t.Fatalf("unexpected summary %+v", s)
	}
	if rate := SavingsRate(s); rate != 70 {
		t.Fatalf("expected savings rate 70, got %v", rate)
	}
	if rate := SavingsRate(Summary{}); rate != 0 {
		t.Fatalf("expected 0 without income, got %v", rate)
	}
}

func TestBreakdownByCategory(t *testing.T) {
	a, b := int64(1), int64(2)
	cats := []Category{{ID: a, Name: "A", Type: Expense}, {ID: b, Name: "B", Type: Expense}}
	txs := []Transaction{
		tx(1, "20", Expense, &a, NewDate(2024, 3, 1)),
		tx(2, "30", Expense, &b, NewDate(2024, 3, 2)),
		tx(3, "1000", Income, &a, NewDate(2024, 3, 3)),
	}

	got := BreakdownByCategory(txs, cats)
	if len(got) != 2 {
		t.Fatalf("expected 2 shares, got %+v", got)
	}
	if got[0].Name != "B" || got[0].Amount.String() != "30.00" || got[0].Percentage != 60 {
		t.Fatalf("unexpected first share %+v", got[0])
	}
	if got[1].Name != "A" || got[1].Amount.String() != "20.00" || got[1].Percentage != 40 {
		t.Fatalf("unexpected second share %+v", got[1])
	}
}

func TestBreakdownUncategorized(t *testing.T) {
	unknown := int64(999)
	txs := []Transaction{
		tx(1, "5", Expense, &unknown, NewDate(2024, 3, 1)),
		tx(2, "5", Expense, nil, NewDate(2024, 3, 1)),
	}
	got := BreakdownByCategory(txs, nil)
	if len(got) != 1 || got[0].Name != UncategorizedName || got[0].Amount.String() != "10.00" || got[0].Percentage != 100 {
		t.Fatalf("unexpected breakdown %+v", got)
	}
}

func TestBreakdownEmpty(t *testing.T) {
	income := []Transaction{tx(1, "5", Income, nil, NewDate(2024, 3, 1))}
	if got := BreakdownByCategory(income, nil); len(got) != 0 {
		t.Fatalf("expected no shares, got %+v", got)
	}
}

func TestMonthlyComparison(t *testing.T) {
	txs := []Transaction{
		tx(1, "100", Income, nil, NewDate(2024, 4, 2)),
		tx(2, "40", Expense, nil, NewDate(2024, 3, 31)),
		tx(3, "10", Expense, nil, NewDate(2024, 4, 30)),
		tx(4, "500", Income, nil, NewDate(2023, 12, 1)),
	}
	got := MonthlyComparison(txs)

	var months []string
	for _, m := range got {
		months = append(months, m.Month)
	}
	if !reflect.DeepEqual(months, []string{"2023-12", "2024-03", "2024-04"}) {
		t.Fatalf("unexpected months %v", months)
	}
	if got[1].Balance.String() != "-40.00" || got[2].Balance.String() != "90.00" {
		t.Fatalf("unexpected balances %+v", got)
	}
}

func TestFilter(t *testing.T) {
	a, b := int64(1), int64(2)
	txs := []Transaction{
		tx(1, "1", Expense, &a, NewDate(2024, 3, 1)),
		tx(2, "1", Expense, &b, NewDate(2024, 3, 15)),
		tx(3, "1", Expense, nil, NewDate(2024, 3, 31)),
		tx(4, "1", Expense, &a, NewDate(2024, 4, 1)),
	}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	ids := func(in []Transaction) []int64 {
		out := []int64{}
		for _, t := range in {
			out = append(out, t.ID)
		}
		return out
	}

	cases := []struct {
		name string
		f    TransactionFilter
		want []int64
	}{
		{"no constraints", TransactionFilter{}, []int64{1, 2, 3, 4}},
		{"inclusive bounds", TransactionFilter{StartDate: &start, EndDate: &end}, []int64{1, 2, 3}},
		{"category", TransactionFilter{CategoryID: &a}, []int64{1, 4}},
		{"all anded", TransactionFilter{StartDate: &start, EndDate: &end, CategoryID: &a}, []int64{1}},
	}
	for _, tc := range cases {
		if got := ids(Filter(txs, tc.f)); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestBudgetProgress(t *testing.T) {
	cats := []Category{{ID: 1, Name: "Food", Type: Expense}}
	budgets := []Budget{
		{ID: 1, CategoryID: 1, Amount: MustParseMoney("100"), Spent: MustParseMoney("150")},
		{ID: 2, CategoryID: 42, Amount: MustParseMoney("50"), Spent: MustParseMoney("12.5")},
	}
	got := BudgetProgress(budgets, cats)
	if got[0].Percentage != 150 || !got[0].OverLimit || got[0].Remaining.String() != "-50.00" || got[0].CategoryName != "Food" {
		t.Fatalf("unexpected first status %+v", got[0])
	}
	if got[1].Percentage != 25 || got[1].OverLimit || got[1].CategoryName != UnknownCategoryName {
		t.Fatalf("unexpected second status %+v", got[1])
	}
}

func TestPercentageChange(t *testing.T) {
	cases := []struct {
		cur, prev string
		want      float64
	}{
		{"150", "100", 50},
		{"50", "100", -50},
		{"10", "0", 0},
		{"1", "3", -66.67},
	}
	for _, tc := range cases {
		if got := PercentageChange(MustParseMoney(tc.cur), MustParseMoney(tc.prev)); got != tc.want {
			t.Fatalf("%s vs %s: expected %v, got %v", tc.cur, tc.prev, tc.want, got)
		}
	}
}
