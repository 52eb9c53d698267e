package storage

import (
	"database/sql"

	"bilancio/internal/core"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t        core.Transaction
		category sql.NullInt64
		budget   sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.Amount, &t.Description, &t.Date, &category, &t.Type, &budget); err != nil {
		return core.Transaction{}, err
	}
	if category.Valid {
		t.CategoryID = &category.Int64
	}
	if budget.Valid {
		t.BudgetID = &budget.Int64
	}
	return t, nil
}

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b     core.Budget
		month sql.Null[core.Date]
	)
	if err := s.Scan(&b.ID, &b.CategoryID, &b.Amount, &b.Spent, &month); err != nil {
		return core.Budget{}, err
	}
	if month.Valid {
		m := month.V
		b.Month = &m
	}
	return b, nil
}

func scanBudgets(rows *sql.Rows) ([]core.Budget, error) {
	out := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
