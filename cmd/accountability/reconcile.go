package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/reconcile"
)

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.AddCommand(reconcileDailyCmd)
	reconcileCmd.AddCommand(reconcileWeeklyCmd)

	reconcileDailyCmd.Flags().String("date", "", "Date to reconcile, YYYY-MM-DD (default: today)")
	reconcileDailyCmd.Flags().Bool("force", false, "Run even if the date was already reconciled")
	reconcileWeeklyCmd.Flags().String("week-start", "", "Any day of the week to reconcile, YYYY-MM-DD (default: last full week)")
	reconcileWeeklyCmd.Flags().Bool("force", false, "Run even if the week was already reconciled")
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run daily or weekly reconciliation once",
}

// =============================================================================
// RECONCILE DAILY
// =============================================================================

var reconcileDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Reconcile one day",
	Long: `Ingest workouts, apply interest, sweep overdue punishments, check new
violations, process earnings and award bonuses for one day.`,
	Args: cobra.NoArgs,
	RunE: runReconcileDaily,
}

func runReconcileDaily(cmd *cobra.Command, args []string) error {
	date, err := dateFlag(cmd, "date")
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")

	a, closeDB, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	res, err := a.Orchestrator.RunDaily(cmd.Context(), reconcile.DailyRequest{Date: date, Force: force})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Daily reconciliation %s (run %s)\n", res.Date, res.RunID)
	fmt.Fprintf(out, "  %s\n", res.Summary)
	fmt.Fprintf(out, "  Active debt: %s\n", domain.FormatMoney(res.ActiveDebt))
	printSteps(out, res.Steps)
	return nil
}

// =============================================================================
// RECONCILE WEEKLY
// =============================================================================

var reconcileWeeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Reconcile one week",
	Long: `Count the week's habits, check the weekly minimums, assign the
escalation routes and award weekly bonuses.`,
	Args: cobra.NoArgs,
	RunE: runReconcileWeekly,
}

func runReconcileWeekly(cmd *cobra.Command, args []string) error {
	start, err := dateFlag(cmd, "week-start")
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")

	a, closeDB, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	res, err := a.Orchestrator.RunWeekly(cmd.Context(), reconcile.WeeklyRequest{WeekStart: start, Force: force})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Weekly reconciliation %s (run %s)\n", res.Week, res.RunID)
	fmt.Fprintf(out, "  %s\n", res.Summary)
	for _, p := range res.Punishments {
		fmt.Fprintf(out, "  Route %d: %s\n", p.Route, p.Name)
	}
	printSteps(out, res.Steps)
	return nil
}

func dateFlag(cmd *cobra.Command, name string) (domain.Date, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return domain.Date{}, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return domain.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func printSteps(w io.Writer, steps []reconcile.StepOutcome) {
	for _, s := range steps {
		if s.Error != "" {
			fmt.Fprintf(w, "  ! %s: %s\n", s.Step, s.Error)
		}
	}
}
