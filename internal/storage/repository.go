package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	categoryColumns    = "id, name, type, description"
	transactionColumns = "id, amount, description, date, category_id, type, budget_id"
	budgetColumns      = "id, category_id, amount, spent, month"
)

// Repository is the SQL implementation of ledger.Store. Every mutation runs
// in a single database transaction.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	strict  bool
}

var _ ledger.Store = (*Repository)(nil)

// Open connects, runs migrations and returns a ready repository.
func Open(ctx context.Context, dialect Dialect, dsn string, opts ledger.Options) (*Repository, error) {
	normalized, err := dialect.normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.driverName(), normalized)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: dialect, strict: opts.StrictCategoryRefs}, nil
}

// NewSQLiteRepository opens the sqlite database at dbPath, creating its
// directory when needed.
func NewSQLiteRepository(ctx context.Context, dbPath string, opts ledger.Options) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return Open(ctx, SQLite, dbPath, opts)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &core.StorageError{Op: "ping", Err: err}
	}
	return nil
}

func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY id")
	if err != nil {
		return nil, &core.StorageError{Op: "list categories", Err: err}
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		var (
			c    core.Category
			desc sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &desc); err != nil {
			return nil, &core.StorageError{Op: "list categories", Err: err}
		}
		if desc.Valid {
			c.Description = &desc.String
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "list categories", Err: err}
	}
	return out, nil
}

func (r *Repository) CreateCategory(ctx context.Context, nc core.NewCategory) (core.Category, error) {
	if err := nc.Validate(); err != nil {
		return core.Category{}, err
	}
	c := core.Category{Name: strings.TrimSpace(nc.Name), Type: nc.Type, Description: nc.Description}
	err := r.withTx(ctx, "create category", func(tx *sql.Tx) error {
		id, err := r.insert(ctx, tx,
			"INSERT INTO categories (name, type, description) VALUES (?, ?, ?)",
			c.Name, c.Type, c.Description)
		c.ID = id
		return err
	})
	if err != nil {
		return core.Category{}, err
	}
	return c, nil
}

func (r *Repository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+transactionColumns+" FROM transactions ORDER BY id")
	if err != nil {
		return nil, &core.StorageError{Op: "list transactions", Err: err}
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, &core.StorageError{Op: "list transactions", Err: err}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "list transactions", Err: err}
	}
	return out, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind("SELECT "+transactionColumns+" FROM transactions WHERE id = ?"), id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, classify("get transaction", notFound(err, "transaction", id))
	}
	return t, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, nt core.NewTransaction) (core.Transaction, error) {
	if err := nt.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t := core.Transaction{
		Amount:      nt.Amount,
		Description: strings.TrimSpace(nt.Description),
		Date:        core.Date{Time: nt.Date.UTC()},
		CategoryID:  nt.CategoryID,
		Type:        nt.Type,
	}

	err := r.withTx(ctx, "create transaction", func(tx *sql.Tx) error {
		if r.strict && t.CategoryID != nil {
			ok, err := r.categoryExists(ctx, tx, *t.CategoryID)
			if err != nil {
				return err
			}
			if !ok {
				return ledger.ErrUnknownCategory(*t.CategoryID)
			}
		}

		if t.AffectsBudget() {
			candidates, err := r.lockBudgetsForCategory(ctx, tx, *t.CategoryID)
			if err != nil {
				return err
			}
			if b, ok := core.MatchBudget(candidates, *t.CategoryID, t.Date.Time); ok {
				if _, err := r.updateBudgetTx(ctx, tx, b.ID, b.Spent.Add(t.Amount)); err != nil {
					return err
				}
				id := b.ID
				t.BudgetID = &id
			}
		}

		id, err := r.insert(ctx, tx,
			"INSERT INTO transactions (amount, description, date, category_id, type, budget_id) VALUES (?, ?, ?, ?, ?, ?)",
			t.Amount, t.Description, t.Date, t.CategoryID, t.Type, t.BudgetID)
		t.ID = id
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, id int64) error {
	return r.withTx(ctx, "delete transaction", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, r.dialect.rebind("SELECT "+transactionColumns+" FROM transactions WHERE id = ?"+r.dialect.forUpdate()), id)
		t, err := scanTransaction(row)
		if err != nil {
			return notFound(err, "transaction", id)
		}

		if t.BudgetID != nil {
			b, err := r.lockBudget(ctx, tx, *t.BudgetID)
			switch {
			case errors.Is(err, core.ErrNotFound):
				// budget removed out of band; nothing to reverse
			case err != nil:
				return err
			default:
				if _, err := r.updateBudgetTx(ctx, tx, b.ID, b.Spent.Sub(t.Amount)); err != nil {
					return err
				}
			}
		}

		if _, err := tx.ExecContext(ctx, r.dialect.rebind("DELETE FROM transactions WHERE id = ?"), id); err != nil {
			return err
		}
		return nil
	})
}

func (r *Repository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+budgetColumns+" FROM budgets ORDER BY id")
	if err != nil {
		return nil, &core.StorageError{Op: "list budgets", Err: err}
	}
	defer rows.Close()
	out, err := scanBudgets(rows)
	if err != nil {
		return nil, &core.StorageError{Op: "list budgets", Err: err}
	}
	return out, nil
}

func (r *Repository) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind("SELECT "+budgetColumns+" FROM budgets WHERE id = ?"), id)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, classify("get budget", notFound(err, "budget", id))
	}
	return b, nil
}

func (r *Repository) CreateBudget(ctx context.Context, nb core.NewBudget) (core.Budget, error) {
	if err := nb.Validate(); err != nil {
		return core.Budget{}, err
	}
	nb = nb.Normalize()
	b := core.Budget{CategoryID: *nb.CategoryID, Amount: nb.Amount, Month: nb.Month}

	err := r.withTx(ctx, "create budget", func(tx *sql.Tx) error {
		ok, err := r.categoryExists(ctx, tx, b.CategoryID)
		if err != nil {
			return err
		}
		if !ok {
			return ledger.ErrUnknownCategory(b.CategoryID)
		}
		id, err := r.insert(ctx, tx,
			"INSERT INTO budgets (category_id, amount, spent, month) VALUES (?, ?, ?, ?)",
			b.CategoryID, b.Amount, b.Spent, b.Month)
		b.ID = id
		return err
	})
	if err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (r *Repository) UpdateBudget(ctx context.Context, id int64, spent core.Money) (core.Budget, error) {
	var b core.Budget
	err := r.withTx(ctx, "update budget", func(tx *sql.Tx) error {
		var err error
		b, err = r.updateBudgetTx(ctx, tx, id, spent)
		return err
	})
	return b, err
}

// RecomputeBudget locks the budget row before summing, so a concurrent
// CreateTransaction or DeleteTransaction charged to it waits for this
// transaction to finish.
func (r *Repository) RecomputeBudget(ctx context.Context, id int64, repair bool) (ledger.BudgetCheck, error) {
	var check ledger.BudgetCheck
	err := r.withTx(ctx, "recompute budget", func(tx *sql.Tx) error {
		b, err := r.lockBudget(ctx, tx, id)
		if err != nil {
			return err
		}
		expected, err := r.sumCharged(ctx, tx, id)
		if err != nil {
			return err
		}
		check = ledger.BudgetCheck{Budget: b, Expected: expected}
		if !repair || !check.Drifted() {
			return nil
		}
		if _, err := tx.ExecContext(ctx, r.dialect.rebind("UPDATE budgets SET spent = ? WHERE id = ?"), expected, id); err != nil {
			return err
		}
		check.Repaired = true
		return nil
	})
	if err != nil {
		return ledger.BudgetCheck{}, err
	}
	return check, nil
}

// sumCharged adds up in Go rather than with SUM: sqlite stores amounts as
// text and would sum them as floats.
func (r *Repository) sumCharged(ctx context.Context, tx *sql.Tx, budgetID int64) (core.Money, error) {
	rows, err := tx.QueryContext(ctx, r.dialect.rebind("SELECT amount FROM transactions WHERE budget_id = ? AND type = ?"), budgetID, core.Expense)
	if err != nil {
		return core.Money{}, err
	}
	defer rows.Close()

	var total core.Money
	for rows.Next() {
		var amount core.Money
		if err := rows.Scan(&amount); err != nil {
			return core.Money{}, err
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

// updateBudgetTx is the single write path for budgets.spent. The row is
// read first so a missing budget is reported even on drivers whose
// RowsAffected ignores unchanged rows.
func (r *Repository) updateBudgetTx(ctx context.Context, tx *sql.Tx, id int64, spent core.Money) (core.Budget, error) {
	b, err := r.lockBudget(ctx, tx, id)
	if err != nil {
		return core.Budget{}, err
	}
	if _, err := tx.ExecContext(ctx, r.dialect.rebind("UPDATE budgets SET spent = ? WHERE id = ?"), spent, id); err != nil {
		return core.Budget{}, err
	}
	b.Spent = spent
	return b, nil
}

func (r *Repository) lockBudget(ctx context.Context, tx *sql.Tx, id int64) (core.Budget, error) {
	row := tx.QueryRowContext(ctx, r.dialect.rebind("SELECT "+budgetColumns+" FROM budgets WHERE id = ?"+r.dialect.forUpdate()), id)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, notFound(err, "budget", id)
	}
	return b, nil
}

func (r *Repository) lockBudgetsForCategory(ctx context.Context, tx *sql.Tx, categoryID int64) ([]core.Budget, error) {
	rows, err := tx.QueryContext(ctx, r.dialect.rebind("SELECT "+budgetColumns+" FROM budgets WHERE category_id = ? ORDER BY id"+r.dialect.forUpdate()), categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBudgets(rows)
}

func (r *Repository) categoryExists(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, r.dialect.rebind("SELECT 1 FROM categories WHERE id = ?"), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// insert runs an INSERT and returns the generated id.
func (r *Repository) insert(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	if r.dialect.supportsReturning() {
		var id int64
		err := tx.QueryRowContext(ctx, r.dialect.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// withTx runs fn in a database transaction. Validation and not-found
// errors pass through untouched; anything else becomes a StorageError.
func (r *Repository) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StorageError{Op: op, Err: fmt.Errorf("begin: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return &core.StorageError{Op: op, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func classify(op string, err error) error {
	if err == nil || errors.Is(err, core.ErrNotFound) || core.IsValidation(err) || core.IsStorage(err) {
		return err
	}
	return &core.StorageError{Op: op, Err: err}
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, core.ErrNotFound)
	}
	return err
}
