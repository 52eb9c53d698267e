package core

import "time"

// MonthStart returns the first instant of t's calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MatchBudget picks the budget an expense in categoryID dated at is
// charged to.
//
// A budget scoped to the same calendar month wins over an unscoped one.
// Budgets scoped to another month never match. Within the same rank the
// lowest id wins, so the result does not depend on slice order.
func MatchBudget(budgets []Budget, categoryID int64, at time.Time) (Budget, bool) {
	month := MonthStart(at)

	var (
		best     Budget
		bestRank int
	)
	for _, b := range budgets {
		if b.CategoryID != categoryID {
			continue
		}
		rank := 0
		switch {
		case b.Month == nil:
			rank = 1
		case MonthStart(b.Month.Time).Equal(month):
			rank = 2
		default:
			continue
		}
		if rank > bestRank || (rank == bestRank && b.ID < best.ID) {
			best, bestRank = b, rank
		}
	}
	return best, bestRank > 0
}

// ExpectedSpent recomputes from scratch what b.Spent should be given the
// transactions that currently exist. Only transactions recorded against b
// count.
func ExpectedSpent(b Budget, txs []Transaction) Money {
	var total Money
	for _, t := range txs {
		if t.Type != Expense || t.BudgetID == nil || *t.BudgetID != b.ID {
			continue
		}
		total = total.Add(t.Amount)
	}
	return total
}
