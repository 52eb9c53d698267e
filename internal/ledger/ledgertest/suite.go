// Package ledgertest runs the same behavioural checks against every
// ledger.Store implementation.
package ledgertest

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// Factory returns a fresh, empty store. It is responsible for cleanup.
type Factory func(t *testing.T, opts ledger.Options) ledger.Store

// Run executes the suite as subtests of t.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, newStore Factory)
	}{
		{"ExpenseIncreasesBudget", testExpenseIncreasesBudget},
		{"DeleteRestoresBudget", testDeleteRestoresBudget},
		{"OverspendIsRecorded", testOverspendIsRecorded},
		{"IncomeDoesNotTouchBudget", testIncomeDoesNotTouchBudget},
		{"UnknownCategoryAccepted", testUnknownCategoryAccepted},
		{"StrictCategoryRefs", testStrictCategoryRefs},
		{"MonthScopedBudgetWins", testMonthScopedBudgetWins},
		{"DeleteReversesRecordedBudget", testDeleteReversesRecordedBudget},
		{"RoundTripRestoresState", testRoundTripRestoresState},
		{"InvariantUnderRandomSequence", testInvariantUnderRandomSequence},
		{"NotFound", testNotFound},
		{"ValidationLeavesNoTrace", testValidationLeavesNoTrace},
		{"CreateBudgetRequiresCategory", testCreateBudgetRequiresCategory},
		{"UpdateBudgetOverwritesSpent", testUpdateBudgetOverwritesSpent},
		{"ReadsAreStable", testReadsAreStable},
		{"RecomputeBudget", testRecomputeBudget},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) { tc.fn(t, newStore) })
	}
}

var march = core.NewDate(2024, 3, 10)

func money(s string) core.Money { return core.MustParseMoney(s) }

func mustCategory(t *testing.T, s ledger.Store, name string, kind core.Kind) core.Category {
	t.Helper()
	c, err := s.CreateCategory(context.Background(), core.NewCategory{Name: name, Type: kind})
	require.NoError(t, err)
	return c
}

func mustBudget(t *testing.T, s ledger.Store, categoryID int64, limit string, month *core.Date) core.Budget {
	t.Helper()
	b, err := s.CreateBudget(context.Background(), core.NewBudget{CategoryID: &categoryID, Amount: money(limit), Month: month})
	require.NoError(t, err)
	require.Equal(t, "0.00", b.Spent.String())
	return b
}

func mustExpense(t *testing.T, s ledger.Store, categoryID *int64, amount string, date core.Date) core.Transaction {
	t.Helper()
	tx, err := s.CreateTransaction(context.Background(), core.NewTransaction{
		Amount:      money(amount),
		Description: "expense " + amount,
		Date:        date,
		CategoryID:  categoryID,
		Type:        core.Expense,
	})
	require.NoError(t, err)
	return tx
}

func spentOf(t *testing.T, s ledger.Store, id int64) string {
	t.Helper()
	b, err := s.GetBudget(context.Background(), id)
	require.NoError(t, err)
	return b.Spent.String()
}

func snapshot(t *testing.T, s ledger.Store) string {
	t.Helper()
	ctx := context.Background()
	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	budgets, err := s.ListBudgets(ctx)
	require.NoError(t, err)
	b, err := json.Marshal(map[string]any{"categories": cats, "transactions": txs, "budgets": budgets})
	require.NoError(t, err)
	return string(b)
}

func testExpenseIncreasesBudget(t *testing.T, newStore Factory) {
	s := newStore(t, ledger.Options{})
	food := mustCategory(t, s, "Food", core.Expense)
	b := mustBudget(t, s, food.ID, "100", nil)

	tx := mustExpense(t, s, &food.ID, "30", march)
	require.Equal(t, "30.00", spentOf(t, s, b.ID))
	require.NotNil(t, tx.BudgetID)
	require.Equal(t, b.ID, *tx.BudgetID)
}

func testDeleteRestoresBudget(t *testing.T, newStore Factory) {
	s := newStore(t, ledger.Options{})
	food := mustCategory(t, s, "Food", core.Expense)
	b := mustBudget(t, s, food.ID, "100", nil)
	tx := mustExpense(t, s, &food.ID, "30", march)

	require.NoError(t, s.DeleteTransaction(context.Background(), tx.ID))
	require.Equal(t, "0.00", spentOf(t, s, b.ID))

	txs, err := s.ListTransactions(context.Background())
	require.NoError(t, err)
	require.Empty(t, txs)
}

func testOverspendIsRecorded(t *testing.T, newStore Factory) {
	s := newStore(t, ledger.Options{})
	food := mustCategory(t, s, "Food", core.Expense)
	b := mustBudget(t, s, food.ID, "100", nil)
	mustExpense(t, s, &food.ID, "100", march)
	mustExpense(t, s, &food.ID, "50", march)

	require.Equal(t, "150.00", spentOf(t, s, b.ID))

	budgets, err := s.ListBudgets(context.Background())
	require.NoError(t, err)
	progress := core.BudgetProgress(budgets, []core.Category{food})
	require.Equal(t, 150.0, progress[0].Percentage)
	require.True(t, progress[0].OverLimit)
}

func testIncomeDoesNotTouchBudget(t *testing.T, newStore Factory) {
	s := newStore(t, ledger.Options{})
	food := mustCategory(t, s, "Food", core.Expense)
	b := mustBudget(t, s, food.ID, "100", nil)

	tx, err := s.CreateTransaction(context.Background(), core.NewTransaction{
		Amount: money("500"), Description: "refund", Date: march, CategoryID: &food.ID, Type: core.Income,
	})
	require.NoError(t, err)
	require.Nil(t, tx.BudgetID)
	require.Equal(t, "0.00", spentOf(t, s, b.ID))

	mustExpense(t, s, nil, "12", march)
	require.Equal(t, "0.00", spentOf(t, s, b.ID))
}

func testUnknownCategoryAccepted(t *testing.T, newStore Factory) {
	s := newStore(t, ledger.Options{})
	unknown := int64(999)
	tx := mustExpense(t, s, &unknown, "5", march)
	require.Nil(t, tx.BudgetID)

	txs, err := s.ListTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, unknown, *txs[0].CategoryID)

	cats, err := s.ListCategories(context.Background())
	require.NoError(t, err)
	shares := core.BreakdownByCategory(txs, cats)
	require.Len(t, shares, 1)
	require.Equal(t, core.UncategorizedName, shares[0].Name)
	require.Equal(t, "5.00", shares[0].Amount.String())
}

func testStrictCategoryRefs(t *testing.T, newStore Factory) {
	s := newStore(t, ledger.Options{StrictCategoryRefs: true})
	unknown := int64(999)
	_, err := s.CreateTransaction(context.Background(), core.NewTransaction{
		Amount: money("5"), Description: "x", Date: march, CategoryID: &unknown, Type: core.Expense,
	})
	require.True(t, core.IsValidation(err), "got %v", err)

	food := mustCategory(t, s, "Food", core.Expense)
	mustExpense(t, s, &food.ID, "5", march)
	mustExpense(t, s, nil, "5", march)
}

func testMonthScopedBudgetWins(t *testing.T, newStore Factory) {
	s := newStore(t, ledger.Options{})
	food := mustCategory(t, s, "Food", core.Expense)
	general := mustBudget(t, s, food.ID, "1000", nil)
	mar := core.NewDate(2024, 3, 17)
	scoped := mustBudget(t, s, food.ID, "100", &mar)
	require.True(t, scoped.Month.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	mustExpense(t, s, &food.ID, "10", march)
	mustExpense(t, s, &food.ID, "7", core.NewDate(2024, 4, 2))

	require.Equal(t, "10.00", spentOf(t, s, scoped.ID))
	require.Equal(t, "7.00", spentOf(t, s, general.ID))
}

func testDeleteReversesRecordedBudget(t *testing.T, newStore Factory) {
	s := newStore(t, ledger.Options{})
	food := mustCategory(t, s, "Food", core.Expense)
	general := mustBudget(t, s, food.ID, "1000", nil)
	tx := mustExpense(t, s, &food.ID, "40", march)

	// A budget created later would now win the match, but the transaction
	// was charged to the general one.
	mar := core.NewDate(2024, 3, 1)
	scoped := mustBudget(t, s, food.ID, "100", &mar)

	require.NoError(t, s.DeleteTransaction(context.Background(), tx.ID))
	require.Equal(t, "0.00", spentOf(t, s, general.ID))
	require.Equal(t, "0.00", spentOf(t, s, scoped.ID))
}

func testRoundTripRestoresState(t *testing.T, newStore Factory) {
	s := newStore(t, ledger.Options{})
	food := mustCategory(t, s, "Food", core.Expense)
	mustBudget(t, s, food.ID, "100", nil)
	mustExpense(t, s, &food.ID, "12.34", march)

	before := snapshot(t, s)
	tx := mustExpense(t, s, &food.ID, "30", march)
	require.NotEqual(t, before, snapshot(t, s))
	require.NoError(t, s.DeleteTransaction(context.Background(), tx.ID))
	require.JSONEq(t, before, snapshot(t, s))
}

func testInvariantUnderRandomSequence(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, ledger.Options{})
	food := mustCategory(t, s, "Food", core.Expense)
	rent := mustCategory(t, s, "Rent", core.Expense)
	mustBudget(t, s, food.ID, "300", nil)
	feb := core.NewDate(2024, 2, 1)
	mustBudget(t, s, food.ID, "100", &feb)
	mustBudget(t, s, rent.ID, "900", nil)

	rng := rand.New(rand.NewSource(7))
	categories := []*int64{&food.ID, &rent.ID, nil}
	var live []int64
	for i := 0; i < 60; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			idx := rng.Intn(len(live))
			require.NoError(t, s.DeleteTransaction(ctx, live[idx]))
			live = append(live[:idx], live[idx+1:]...)
			continue
		}
		kind := core.Expense
		if rng.Intn(5) == 0 {
			kind = core.Income
		}
		tx, err := s.CreateTransaction(ctx, core.NewTransaction{
			Amount:      core.MoneyFromCents(int64(1 + rng.Intn(10000))),
			Description: "random",
			Date:        core.NewDate(2024, 1+rng.Intn(3), 1+rng.Intn(28)),
			CategoryID:  categories[rng.Intn(len(categories))],
			Type:        kind,
		})
		require.NoError(t, err)
		live = append(live, tx.ID)
	}

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, len(live))
	budgets, err := s.ListBudgets(ctx)
	require.NoError(t, err)
	for _, b := range budgets {
		require.Equal(t, core.ExpectedSpent(b, txs).String(), b.Spent.String(), "budget %d", b.ID)
	}
}

func testNotFound(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, ledger.Options{})

	require.True(t, errors.Is(s.DeleteTransaction(ctx, 42), core.ErrNotFound))
	_, err := s.GetTransaction(ctx, 42)
	require.True(t, errors.Is(err, core.ErrNotFound))
	_, err = s.GetBudget(ctx, 42)
	require.True(t, errors.Is(err, core.ErrNotFound))
	_, err = s.UpdateBudget(ctx, 42, money("1"))
	require.True(t, errors.Is(err, core.ErrNotFound))
}

func testValidationLeavesNoTrace(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, ledger.Options{})
	food := mustCategory(t, s, "Food", core.Expense)
	b := mustBudget(t, s, food.ID, "100", nil)
	before := snapshot(t, s)

	_, err := s.CreateTransaction(ctx, core.NewTransaction{Amount: money("0"), Description: "x", Date: march, CategoryID: &food.ID, Type: core.Expense})
	require.True(t, core.IsValidation(err))
	_, err = s.CreateTransaction(ctx, core.NewTransaction{Amount: money("5"), Description: "", Date: march, CategoryID: &food.ID, Type: core.Expense})
	require.True(t, core.IsValidation(err))
	_, err = s.CreateCategory(ctx, core.NewCategory{Name: "", Type: core.Expense})
	require.True(t, core.IsValidation(err))

	require.JSONEq(t, before, snapshot(t, s))
	require.Equal(t, "0.00", spentOf(t, s, b.ID))
}

func testCreateBudgetRequiresCategory(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, ledger.Options{})
	unknown := int64(5)
	_, err := s.CreateBudget(ctx, core.NewBudget{CategoryID: &unknown, Amount: money("10")})
	require.True(t, core.IsValidation(err), "got %v", err)
	_, err = s.CreateBudget(ctx, core.NewBudget{Amount: money("10")})
	require.True(t, core.IsValidation(err), "got %v", err)

	budgets, err := s.ListBudgets(ctx)
	require.NoError(t, err)
	require.Empty(t, budgets)
}

func testUpdateBudgetOverwritesSpent(t *testing.T, newStore Factory) {
	s := newStore(t, ledger.Options{})
	food := mustCategory(t, s, "Food", core.Expense)
	b := mustBudget(t, s, food.ID, "100", nil)

	got, err := s.UpdateBudget(context.Background(), b.ID, money("-12.5"))
	require.NoError(t, err)
	require.Equal(t, "-12.50", got.Spent.String())
	require.Equal(t, "-12.50", spentOf(t, s, b.ID))
}

func testReadsAreStable(t *testing.T, newStore Factory) {
	s := newStore(t, ledger.Options{})
	food := mustCategory(t, s, "Food", core.Expense)
	mustCategory(t, s, "Salary", core.Income)
	mustBudget(t, s, food.ID, "100", nil)
	for _, amount := range []string{"3", "1", "2"} {
		mustExpense(t, s, &food.ID, amount, march)
	}

	first := snapshot(t, s)
	require.Equal(t, first, snapshot(t, s))

	txs, err := s.ListTransactions(context.Background())
	require.NoError(t, err)
	for i := 1; i < len(txs); i++ {
		require.Less(t, txs[i-1].ID, txs[i].ID)
	}
}

func testRecomputeBudget(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, ledger.Options{})
	food := mustCategory(t, s, "Food", core.Expense)
	b := mustBudget(t, s, food.ID, "100", nil)
	mustExpense(t, s, &food.ID, "12.50", march)
	mustExpense(t, s, &food.ID, "7.25", march)

	c, err := s.RecomputeBudget(ctx, b.ID, true)
	require.NoError(t, err)
	require.False(t, c.Drifted())
	require.False(t, c.Repaired)

	_, err = s.UpdateBudget(ctx, b.ID, money("3"))
	require.NoError(t, err)

	c, err = s.RecomputeBudget(ctx, b.ID, false)
	require.NoError(t, err)
	require.True(t, c.Drifted())
	require.Equal(t, "3.00", c.Budget.Spent.String())
	require.Equal(t, "19.75", c.Expected.String())
	require.False(t, c.Repaired)
	require.Equal(t, "3.00", spentOf(t, s, b.ID))

	c, err = s.RecomputeBudget(ctx, b.ID, true)
	require.NoError(t, err)
	require.True(t, c.Repaired)
	require.Equal(t, "19.75", spentOf(t, s, b.ID))

	_, err = s.RecomputeBudget(ctx, 42, true)
	require.True(t, errors.Is(err, core.ErrNotFound))
}
