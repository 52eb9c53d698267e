package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	UncategorizedName   = "Uncategorized"
	UnknownCategoryName = "Unknown Category"
	monthKeyLayout      = "2006-01"
)

var hundred = decimal.NewFromInt(100)

// Summary is the income/expense total of a transaction set.
type Summary struct {
	Income   Money `json:"income"`
	Expenses Money `json:"expenses"`
	Balance  Money `json:"balance"`
}

// CategoryShare is one slice of the expense breakdown.
type CategoryShare struct {
	Name       string  `json:"name"`
	Amount     Money   `json:"amount"`
	Percentage float64 `json:"percentage"`
}

// MonthlyTotals groups a Summary under a "YYYY-MM" key.
type MonthlyTotals struct {
	Month    string `json:"month"`
	Income   Money  `json:"income"`
	Expenses Money  `json:"expenses"`
	Balance  Money  `json:"balance"`
}

// BudgetStatus reports how far a budget's spent total has progressed.
type BudgetStatus struct {
	BudgetID     int64   `json:"budgetId"`
	CategoryID   int64   `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	Month        *Date   `json:"month"`
	Limit        Money   `json:"limit"`
	Spent        Money   `json:"spent"`
	Remaining    Money   `json:"remaining"`
	Percentage   float64 `json:"percentage"`
	OverLimit    bool    `json:"overLimit"`
}

// TransactionFilter holds optional constraints; nil fields are ignored.
type TransactionFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	CategoryID *int64
}

func (f TransactionFilter) IsEmpty() bool {
	return f.StartDate == nil && f.EndDate == nil && f.CategoryID == nil
}

// Summarize totals income and expenses; balance is income minus expenses.
func Summarize(txs []Transaction) Summary {
	var s Summary
	for _, t := range txs {
		switch t.Type {
		case Income:
			s.Income = s.Income.Add(t.Amount)
		case Expense:
			s.Expenses = s.Expenses.Add(t.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expenses)
	return s
}

// BreakdownByCategory groups expenses by category name. Transactions whose
// category cannot be resolved are grouped under "Uncategorized". The
// result is ordered by amount descending, then name.
func BreakdownByCategory(txs []Transaction, cats []Category) []CategoryShare {
	names := categoryNames(cats)

	byName := make(map[string]Money)
	var total Money
	for _, t := range txs {
		if t.Type != Expense {
			continue
		}
		name := UncategorizedName
		if t.CategoryID != nil {
			if n, ok := names[*t.CategoryID]; ok {
				name = n
			}
		}
		byName[name] = byName[name].Add(t.Amount)
		total = total.Add(t.Amount)
	}

	out := make([]CategoryShare, 0, len(byName))
	for name, amount := range byName {
		out = append(out, CategoryShare{
			Name:       name,
			Amount:     amount,
			Percentage: percentOf(amount, total),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MonthlyComparison buckets transactions by UTC calendar month, ascending.
func MonthlyComparison(txs []Transaction) []MonthlyTotals {
	byMonth := make(map[string]*MonthlyTotals)
	for _, t := range txs {
		key := t.Date.UTC().Format(monthKeyLayout)
		m, ok := byMonth[key]
		if !ok {
			m = &MonthlyTotals{Month: key}
			byMonth[key] = m
		}
		switch t.Type {
		case Income:
			m.Income = m.Income.Add(t.Amount)
		case Expense:
			m.Expenses = m.Expenses.Add(t.Amount)
		}
	}

	out := make([]MonthlyTotals, 0, len(byMonth))
	for _, m := range byMonth {
		m.Balance = m.Income.Sub(m.Expenses)
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Filter keeps the transactions satisfying every present constraint.
// Date bounds are inclusive.
func Filter(txs []Transaction, f TransactionFilter) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if f.StartDate != nil && t.Date.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && t.Date.After(*f.EndDate) {
			continue
		}
		if f.CategoryID != nil && (t.CategoryID == nil || *t.CategoryID != *f.CategoryID) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// BudgetProgress reports each budget against its limit, in input order.
func BudgetProgress(budgets []Budget, cats []Category) []BudgetStatus {
	names := categoryNames(cats)

	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		name, ok := names[b.CategoryID]
		if !ok {
			name = UnknownCategoryName
		}
		out = append(out, BudgetStatus{
			BudgetID:     b.ID,
			CategoryID:   b.CategoryID,
			CategoryName: name,
			Month:        b.Month,
			Limit:        b.Amount,
			Spent:        b.Spent,
			Remaining:    b.Remaining(),
			Percentage:   percentOf(b.Spent, b.Amount),
			OverLimit:    b.Spent.Cmp(b.Amount) > 0,
		})
	}
	return out
}

// SavingsRate is balance as a percentage of income; 0 without income.
func SavingsRate(s Summary) float64 {
	return percentOf(s.Balance, s.Income)
}

// PercentageChange is the relative change from previous to current;
// 0 when previous is zero.
func PercentageChange(current, previous Money) float64 {
	if previous.IsZero() {
		return 0
	}
	delta := current.Decimal().Sub(previous.Decimal())
	f, _ := delta.Div(previous.Decimal().Abs()).Mul(hundred).Round(2).Float64()
	return f
}

func percentOf(part, whole Money) float64 {
	if whole.IsZero() {
		return 0
	}
	f, _ := part.Decimal().Div(whole.Decimal()).Mul(hundred).Round(2).Float64()
	return f
}

func categoryNames(cats []Category) map[int64]string {
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names
}
