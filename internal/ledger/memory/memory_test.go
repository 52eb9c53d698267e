package memory

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/ledger/ledgertest"
)

func TestStoreSuite(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T, opts ledger.Options) ledger.Store {
		return New(opts)
	})
}

func TestNewFromFilesSeedsCategories(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFiles(dir, ledger.Options{})
	if err != nil {
		t.Fatalf("missing seed file should not fail: %v", err)
	}
	if cats, _ := s.ListCategories(context.Background()); len(cats) != 0 {
		t.Fatalf("expected no categories, got %v", cats)
	}

	content := "# header\nFood\nSalary:income\n\nRent: expense\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFiles(dir, ledger.Options{})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	cats, _ := s.ListCategories(context.Background())
	if len(cats) != 3 {
		t.Fatalf("expected 3 categories, got %v", cats)
	}
	if cats[0].Name != "Food" || cats[0].Type != core.Expense || cats[1].Type != core.Income || cats[2].Name != "Rent" {
		t.Fatalf("unexpected categories: %+v", cats)
	}

	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte("Gifts:other\n"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFiles(dir, ledger.Options{}); err == nil {
		t.Fatalf("expected error for invalid type")
	}
}

func TestConcurrentExpensesKeepBudgetExact(t *testing.T) {
	ctx := context.Background()
	s := New(ledger.Options{})
	food, _ := s.CreateCategory(ctx, core.NewCategory{Name: "Food", Type: core.Expense})
	b, _ := s.CreateBudget(ctx, core.NewBudget{CategoryID: &food.ID, Amount: core.MustParseMoney("100")})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateTransaction(ctx, core.NewTransaction{
				Amount:      core.MustParseMoney("0.10"),
				Description: "coffee",
				Date:        core.NewDate(2024, 3, 1),
				CategoryID:  &food.ID,
				Type:        core.Expense,
			})
			if err != nil {
				t.Errorf("create: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.GetBudget(ctx, b.ID)
	if got.Spent.String() != "5.00" {
		t.Fatalf("expected 5.00, got %s", got.Spent)
	}
}

func TestStoredRowsDoNotAliasCallerPointers(t *testing.T) {
	ctx := context.Background()
	s := New(ledger.Options{})

	desc := "weekly shop"
	food, err := s.CreateCategory(ctx, core.NewCategory{Name: "Food", Type: core.Expense, Description: &desc})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	desc = "changed"
	*food.Description = "changed too"

	catID := food.ID
	tx, err := s.CreateTransaction(ctx, core.NewTransaction{
		Amount:      core.MustParseMoney("4"),
		Description: "bread",
		Date:        core.NewDate(2024, 3, 1),
		CategoryID:  &catID,
		Type:        core.Expense,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	catID = 99
	*tx.CategoryID = 98

	cats, _ := s.ListCategories(ctx)
	if *cats[0].Description != "weekly shop" {
		t.Fatalf("category description changed to %q", *cats[0].Description)
	}
	got, err := s.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got.CategoryID != food.ID {
		t.Fatalf("transaction category changed to %d", *got.CategoryID)
	}
	*got.CategoryID = 97
	txs, _ := s.ListTransactions(ctx)
	if *txs[0].CategoryID != food.ID {
		t.Fatalf("read copy leaked into the store: %d", *txs[0].CategoryID)
	}
}
