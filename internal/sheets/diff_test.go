package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
)

func TestLedgerRowsLabelsCategories(t *testing.T) {
	food := int64(1)
	gone := int64(9)
	txs := []core.Transaction{
		{ID: 1, Amount: core.MustParseMoney("3"), Description: "bread", Date: core.NewDate(2024, 3, 1), CategoryID: &food, Type: core.Expense},
		{ID: 2, Amount: core.MustParseMoney("4"), Description: "bus", Date: core.NewDate(2024, 3, 2), Type: core.Expense},
		{ID: 3, Amount: core.MustParseMoney("5"), Description: "gift", Date: core.NewDate(2024, 3, 3), CategoryID: &gone, Type: core.Income},
	}
	rows := LedgerRows(txs, []core.Category{{ID: food, Name: "Food", Type: core.Expense}})

	require.Len(t, rows, 3)
	assert.Equal(t, "Food", rows[0].Category)
	assert.Equal(t, core.UncategorizedName, rows[1].Category)
	assert.Equal(t, core.UnknownCategoryName, rows[2].Category)
}

func TestCompare(t *testing.T) {
	row := func(id int64, amount string) Row {
		return Row{TransactionID: id, Date: time.Date(2024, 3, 1, 15, 4, 0, 0, time.UTC), Description: "x", Category: "Food", Type: core.Expense, Amount: core.MustParseMoney(amount)}
	}
	want := []Row{row(1, "10"), row(2, "20"), row(3, "30")}

	sheetCopy := row(1, "10")
	sheetCopy.Date = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	have := []Row{row(5, "50"), sheetCopy, row(2, "25"), row(4, "40")}

	d := Compare(want, have)
	require.False(t, d.Empty())
	require.Len(t, d.Missing, 1)
	assert.Equal(t, int64(3), d.Missing[0].TransactionID)
	require.Len(t, d.Stale, 1)
	assert.Equal(t, "20.00", d.Stale[0].Amount.String())
	require.Len(t, d.Orphaned, 2)
	assert.Equal(t, int64(4), d.Orphaned[0].TransactionID)
	assert.Equal(t, int64(5), d.Orphaned[1].TransactionID)

	assert.True(t, Compare(want, want).Empty())
}
