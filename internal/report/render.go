// Package report renders ledger aggregates as terminal tables for the admin
// CLI.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/sheets"
)

var (
	colorBorder = lipgloss.Color("#575653")
	colorText   = lipgloss.Color("#FFFCF0")
	colorAccent = lipgloss.Color("#3AA99F")
	colorGreen  = lipgloss.Color("#879A39")
	colorRed    = lipgloss.Color("#D14D41")
	colorMuted  = lipgloss.Color("#6F6E69")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	goodStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	badStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

// Table is a titled grid of already formatted cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTitle renders a centered title in a rounded box.
func RenderTitle(title string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Width(48).
		Align(lipgloss.Center).
		Render(titleStyle.Render(title))
}

// RenderTable pads every column to its widest cell. Widths are measured on
// the rendered text so styled cells line up.
func RenderTable(t Table) string {
	cols := len(t.Headers)
	widths := make([]int, cols)
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < cols && i < len(row); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}
	b.WriteString(renderRow(t.Headers, widths, headerStyle))
	b.WriteString(mutedStyle.Render(separator(widths)))
	b.WriteString("\n")
	if len(t.Rows) == 0 {
		b.WriteString(mutedStyle.Render("(none)"))
		b.WriteString("\n")
	}
	for _, row := range t.Rows {
		b.WriteString(renderRow(row, widths, lipgloss.NewStyle()))
	}
	return b.String()
}

func renderRow(cells []string, widths []int, style lipgloss.Style) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = style.Render(cell) + strings.Repeat(" ", w-lipgloss.Width(cell))
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ") + "\n"
}

func separator(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w)
	}
	return strings.Join(parts, "  ")
}

func RenderSummary(r services.SummaryReport) string {
	balance := r.Balance.String()
	if r.Balance.IsNegative() {
		balance = badStyle.Render(balance)
	} else {
		balance = goodStyle.Render(balance)
	}
	return RenderTable(Table{
		Title:   "Summary",
		Headers: []string{"Income", "Expenses", "Balance", "Savings"},
		Rows: [][]string{{
			r.Income.String(),
			r.Expenses.String(),
			balance,
			fmt.Sprintf("%.1f%%", r.SavingsRate),
		}},
	})
}

func RenderBreakdown(shares []core.CategoryShare) string {
	rows := make([][]string, 0, len(shares))
	for _, s := range shares {
		rows = append(rows, []string{s.Name, s.Amount.String(), fmt.Sprintf("%.1f%%", s.Percentage)})
	}
	return RenderTable(Table{Title: "Expenses by category", Headers: []string{"Category", "Amount", "Share"}, Rows: rows})
}

func RenderMonthly(months []core.MonthlyTotals) string {
	rows := make([][]string, 0, len(months))
	for _, m := range months {
		rows = append(rows, []string{m.Month, m.Income.String(), m.Expenses.String(), m.Balance.String()})
	}
	return RenderTable(Table{Title: "Monthly", Headers: []string{"Month", "Income", "Expenses", "Balance"}, Rows: rows})
}

// RenderBudgets highlights budgets whose spent total passed the limit.
func RenderBudgets(statuses []core.BudgetStatus) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		month := "every month"
		if s.Month != nil {
			month = s.Month.Format("2006-01")
		}
		progress := fmt.Sprintf("%.1f%%", s.Percentage)
		if s.OverLimit {
			progress = badStyle.Render(progress + " over")
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.BudgetID),
			s.CategoryName,
			month,
			s.Limit.String(),
			s.Spent.String(),
			progress,
		})
	}
	return RenderTable(Table{
		Title:   "Budgets",
		Headers: []string{"ID", "Category", "Month", "Limit", "Spent", "Progress"},
		Rows:    rows,
	})
}

func RenderDrifts(drifts []services.Drift) string {
	rows := make([][]string, 0, len(drifts))
	for _, d := range drifts {
		state := badStyle.Render("drifted")
		if d.Repaired {
			state = goodStyle.Render("repaired")
		}
		rows = append(rows, []string{fmt.Sprintf("%d", d.BudgetID), d.Recorded.String(), d.Expected.String(), state})
	}
	return RenderTable(Table{
		Title:   "Budget reconciliation",
		Headers: []string{"Budget", "Recorded", "Expected", "State"},
		Rows:    rows,
	})
}

// RenderMirrorDiff lists the rows a mirror lacks, holds with other values,
// or holds for transactions that no longer exist.
func RenderMirrorDiff(d sheets.Diff, applied bool) string {
	var rows [][]string
	add := func(state string, batch []sheets.Row) {
		for _, r := range batch {
			rows = append(rows, []string{
				fmt.Sprintf("%d", r.TransactionID),
				r.Date.UTC().Format("2006-01-02"),
				r.Description,
				r.Amount.String(),
				state,
			})
		}
	}
	missing, stale, orphaned := "missing", "stale", "orphaned"
	if applied {
		missing, stale, orphaned = "appended", "rewritten", "removed"
	}
	add(badStyle.Render(missing), d.Missing)
	add(badStyle.Render(stale), d.Stale)
	add(mutedStyle.Render(orphaned), d.Orphaned)
	return RenderTable(Table{
		Title:   "Mirror reconciliation",
		Headers: []string{"Transaction", "Date", "Description", "Amount", "State"},
		Rows:    rows,
	})
}
