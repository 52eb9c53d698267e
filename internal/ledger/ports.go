// Package ledger defines the store boundary for categories, transactions
// and budgets.
//
// Every implementation keeps each budget's spent total in step with the
// expense transactions charged to it: creating an expense adds its amount
// to the matched budget, deleting it subtracts the amount again, and both
// happen in the same atomic unit as the row write.
package ledger

import (
	"context"
	"fmt"

	"bilancio/internal/core"
)

// Ports implemented by the memory store and the SQL repository.
type (
	CategoryStore interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		CreateCategory(ctx context.Context, c core.NewCategory) (core.Category, error)
	}

	TransactionStore interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		// CreateTransaction inserts the row and, for an expense with a
		// category, adds its amount to the matched budget.
		CreateTransaction(ctx context.Context, t core.NewTransaction) (core.Transaction, error)
		// DeleteTransaction removes the row and reverses the budget
		// adjustment recorded at creation. Unknown ids yield core.ErrNotFound.
		DeleteTransaction(ctx context.Context, id int64) error
	}

	BudgetStore interface {
		ListBudgets(ctx context.Context) ([]core.Budget, error)
		GetBudget(ctx context.Context, id int64) (core.Budget, error)
		CreateBudget(ctx context.Context, b core.NewBudget) (core.Budget, error)
		// UpdateBudget overwrites the spent total. It is the only way spent
		// changes after creation.
		UpdateBudget(ctx context.Context, id int64, spent core.Money) (core.Budget, error)
		// RecomputeBudget sums the expenses charged to budget id and, when
		// repair is set and the sum differs from spent, stores the sum. The
		// read and the write form one atomic unit with respect to
		// CreateTransaction and DeleteTransaction.
		RecomputeBudget(ctx context.Context, id int64, repair bool) (BudgetCheck, error)
	}

	// Store is the full ledger.
	Store interface {
		CategoryStore
		TransactionStore
		BudgetStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// BudgetCheck is the outcome of RecomputeBudget. Budget is the row as it
// was before any repair.
type BudgetCheck struct {
	Budget   core.Budget
	Expected core.Money
	Repaired bool
}

// Drifted reports whether the stored spent total disagreed with the sum.
func (c BudgetCheck) Drifted() bool { return !c.Expected.Equal(c.Budget.Spent) }

// Options tune validation shared by every Store implementation.
type Options struct {
	// StrictCategoryRefs rejects transactions whose categoryId does not
	// reference an existing category. Off by default: such transactions
	// are stored and reported as uncategorized.
	StrictCategoryRefs bool
}

// ErrUnknownCategory is the field error reported for a categoryId that
// references nothing.
func ErrUnknownCategory(id int64) *core.ValidationError {
	return core.Invalid("categoryId", fmt.Sprintf("category %d does not exist", id))
}
