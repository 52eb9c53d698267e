package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bilancio/internal/core"
	"bilancio/internal/report"
	"bilancio/internal/services"
)

var (
	flagFrom     string
	flagTo       string
	flagCategory int64
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the summary, category breakdown and budget progress",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&flagFrom, "from", "", "Start date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&flagTo, "to", "", "End date (YYYY-MM-DD)")
	reportCmd.Flags().Int64Var(&flagCategory, "category", 0, "Only include this category id")
	rootCmd.AddCommand(reportCmd)
}

func reportFilter() (core.TransactionFilter, error) {
	var f core.TransactionFilter
	if flagFrom != "" {
		d, err := core.ParseDate(flagFrom)
		if err != nil {
			return f, fmt.Errorf("--from: %w", err)
		}
		f.StartDate = &d.Time
	}
	if flagTo != "" {
		d, err := core.ParseDate(flagTo)
		if err != nil {
			return f, fmt.Errorf("--to: %w", err)
		}
		f.EndDate = &d.Time
	}
	if flagCategory > 0 {
		id := flagCategory
		f.CategoryID = &id
	}
	return f, nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	f, err := reportFilter()
	if err != nil {
		return err
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	result, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer result.Cleanup()

	// The store is handed over without publishers: reports never mutate.
	d, err := services.NewLedgerService(result.Store).Dashboard(ctx, f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report.RenderTitle("BILANCIO  "+time.Now().Format("2006-01-02")))
	fmt.Fprintln(out)
	fmt.Fprintln(out, report.RenderSummary(d.Summary))
	fmt.Fprintln(out, report.RenderBreakdown(d.Breakdown))
	fmt.Fprintln(out, report.RenderMonthly(d.Monthly))
	fmt.Fprint(out, report.RenderBudgets(d.Budgets))
	return nil
}
