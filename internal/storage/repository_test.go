package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/ledger/ledgertest"
)

func newTestRepository(t *testing.T, opts ledger.Options) *Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "bilancio.db")
	repo, err := NewSQLiteRepository(context.Background(), path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepositorySuite(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T, opts ledger.Options) ledger.Store {
		return newTestRepository(t, opts)
	})
}

func TestRepositoryPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bilancio.db")

	repo, err := NewSQLiteRepository(ctx, path, ledger.Options{})
	require.NoError(t, err)
	desc := "weekly shop"
	food, err := repo.CreateCategory(ctx, core.NewCategory{Name: "Food", Type: core.Expense, Description: &desc})
	require.NoError(t, err)
	mar := core.NewDate(2024, 3, 1)
	b, err := repo.CreateBudget(ctx, core.NewBudget{CategoryID: &food.ID, Amount: core.MustParseMoney("250.5"), Month: &mar})
	require.NoError(t, err)
	tx, err := repo.CreateTransaction(ctx, core.NewTransaction{
		Amount: core.MustParseMoney("19.99"), Description: "market", Date: core.NewDate(2024, 3, 9), CategoryID: &food.ID, Type: core.Expense,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(ctx, path, ledger.Options{})
	require.NoError(t, err)
	defer repo.Close()

	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	require.Equal(t, desc, *cats[0].Description)

	got, err := repo.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, "19.99", got.Amount.String())
	require.True(t, got.Date.Equal(tx.Date.Time))
	require.Equal(t, b.ID, *got.BudgetID)

	budget, err := repo.GetBudget(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, "250.50", budget.Amount.String())
	require.Equal(t, "19.99", budget.Spent.String())
	require.True(t, budget.Month.Equal(mar.Time))
}

func TestRepositoryMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bilancio.db")
	repo := func() *Repository {
		r, err := NewSQLiteRepository(context.Background(), path, ledger.Options{})
		require.NoError(t, err)
		return r
	}
	require.NoError(t, repo().Close())
	require.NoError(t, RunMigrations(SQLite, path))

	v, dirty, err := MigrationVersion(SQLite, path)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(4), v)
}

func TestRepositoryWrapsStorageFailures(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ledger.Options{})
	require.NoError(t, repo.Close())

	_, err := repo.ListTransactions(ctx)
	require.True(t, core.IsStorage(err), "got %v", err)

	_, err = repo.CreateCategory(ctx, core.NewCategory{Name: "Food", Type: core.Expense})
	var se *core.StorageError
	require.True(t, errors.As(err, &se), "got %v", err)
	require.Equal(t, "create category", se.Op)

	require.True(t, core.IsStorage(repo.Ping(ctx)))
}

func TestRepositoryRollsBackBudgetWhenRowWriteFails(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ledger.Options{})
	food, err := repo.CreateCategory(ctx, core.NewCategory{Name: "Food", Type: core.Expense})
	require.NoError(t, err)
	b, err := repo.CreateBudget(ctx, core.NewBudget{CategoryID: &food.ID, Amount: core.MustParseMoney("100")})
	require.NoError(t, err)
	kept, err := repo.CreateTransaction(ctx, core.NewTransaction{
		Amount: core.MustParseMoney("20"), Description: "market", Date: core.NewDate(2024, 3, 1), CategoryID: &food.ID, Type: core.Expense,
	})
	require.NoError(t, err)

	_, err = repo.db.ExecContext(ctx, `
		CREATE TRIGGER reject_insert BEFORE INSERT ON transactions
		BEGIN SELECT RAISE(ABORT, 'insert rejected'); END`)
	require.NoError(t, err)
	_, err = repo.db.ExecContext(ctx, `
		CREATE TRIGGER reject_delete BEFORE DELETE ON transactions
		BEGIN SELECT RAISE(ABORT, 'delete rejected'); END`)
	require.NoError(t, err)

	_, err = repo.CreateTransaction(ctx, core.NewTransaction{
		Amount: core.MustParseMoney("30"), Description: "groceries", Date: core.NewDate(2024, 3, 2), CategoryID: &food.ID, Type: core.Expense,
	})
	var se *core.StorageError
	require.True(t, errors.As(err, &se), "got %v", err)
	require.Equal(t, "create transaction", se.Op)

	err = repo.DeleteTransaction(ctx, kept.ID)
	require.True(t, errors.As(err, &se), "got %v", err)
	require.Equal(t, "delete transaction", se.Op)

	budget, err := repo.GetBudget(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, "20.00", budget.Spent.String())
	txs, err := repo.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, kept.ID, txs[0].ID)
}

func TestRepositoryRejectsOutOfRangeAmounts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ledger.Options{})
	food, err := repo.CreateCategory(ctx, core.NewCategory{Name: "Food", Type: core.Expense})
	require.NoError(t, err)
	b, err := repo.CreateBudget(ctx, core.NewBudget{CategoryID: &food.ID, Amount: core.MustParseMoney("100")})
	require.NoError(t, err)

	_, err = repo.CreateTransaction(ctx, core.NewTransaction{
		Amount:      core.MustParseMoney("123456789012345678901234567890.12"),
		Description: "typo",
		Date:        core.NewDate(2024, 3, 2),
		CategoryID:  &food.ID,
		Type:        core.Expense,
	})
	require.True(t, core.IsValidation(err), "got %v", err)
	_, err = repo.CreateBudget(ctx, core.NewBudget{CategoryID: &food.ID, Amount: core.MustParseMoney("10000000000")})
	require.True(t, core.IsValidation(err), "got %v", err)

	budget, err := repo.GetBudget(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, "0.00", budget.Spent.String())
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ?"
	require.Equal(t, q, SQLite.rebind(q))
	require.Equal(t, q, MySQL.rebind(q))
	require.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", Postgres.rebind(q))
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"sqlite": SQLite, " Postgres ": Postgres, "MYSQL": MySQL} {
		got, err := ParseDialect(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseDialect("oracle")
	require.Error(t, err)
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := MySQL.normalizeDSN("user:pw@tcp(localhost:3306)/bilancio")
	require.NoError(t, err)
	require.Contains(t, dsn, "parseTime=true")

	dsn, err = SQLite.normalizeDSN("/tmp/x.db")
	require.NoError(t, err)
	require.Contains(t, dsn, "_pragma=foreign_keys(on)")

	dsn, err = SQLite.normalizeDSN("/tmp/x.db?mode=ro")
	require.NoError(t, err)
	require.Equal(t, "/tmp/x.db?mode=ro", dsn)

	_, err = MySQL.normalizeDSN("::not a dsn")
	require.Error(t, err)
}
