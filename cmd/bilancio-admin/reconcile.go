package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bilancio/internal/backend"
	"bilancio/internal/config"
	"bilancio/internal/ledger"
	applog "bilancio/internal/log"
	"bilancio/internal/report"
	"bilancio/internal/services"
)

var (
	flagRepair bool
	flagMirror bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare every budget's spent total with its transactions",
	Long: "Recomputes each budget's spent total from the transactions charged to it " +
		"and reports the budgets that disagree. With --repair the stored totals are overwritten.\n\n" +
		"--mirror also compares the transaction mirror with the ledger; with --repair the mirror " +
		"is brought back in line.",
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&flagRepair, "repair", false, "Overwrite drifted totals with the recomputed value")
	reconcileCmd.Flags().BoolVar(&flagMirror, "mirror", false, "Also compare the spreadsheet mirror with the ledger")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
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

	reconciler := services.NewReconciler(result.Store, services.ReconcilerConfig{Repair: flagRepair || cfg.ReconcileRepair})
	drifts, err := reconciler.ReconcileAll(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(drifts) == 0 {
		fmt.Fprintln(out, "All budgets are consistent.")
	} else {
		fmt.Fprint(out, report.RenderDrifts(drifts))
	}

	if !flagMirror {
		return nil
	}
	return reconcileMirror(cmd, cfg, logger, result.Store)
}

func reconcileMirror(cmd *cobra.Command, cfg *config.Config, logger *applog.Logger, store ledger.Store) error {
	ctx := cmd.Context()
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	mirror, err := backend.NewFactory(logger).CreateMirror(ctx, backendCfg)
	if err != nil {
		return err
	}
	if mirror == nil {
		return errors.New("no mirror configured: set GOOGLE_SPREADSHEET_ID")
	}

	ms := services.NewMirrorSync(store, mirror)
	d, err := ms.Compare(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if d.Empty() {
		fmt.Fprintln(out, "Mirror matches the ledger.")
		return nil
	}
	repair := flagRepair || cfg.ReconcileRepair
	if repair {
		if err := ms.Apply(ctx, d); err != nil {
			return err
		}
	}
	fmt.Fprint(out, report.RenderMirrorDiff(d, repair))
	return nil
}
