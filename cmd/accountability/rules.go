package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/accountability-engine/domain"
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesStatusCmd)
	rulesCmd.AddCommand(rulesModifyCmd)
	rulesCmd.AddCommand(rulesResetCmd)

	rulesModifyCmd.Flags().StringP("reason", "r", "manual", "Reason recorded in the change log")
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and adjust the rules table",
}

// =============================================================================
// RULES STATUS
// =============================================================================

var rulesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List rules grouped by frequency",
	Args:  cobra.NoArgs,
	RunE:  runRulesStatus,
}

func runRulesStatus(cmd *cobra.Command, args []string) error {
	a, closeDB, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	st, err := a.Rules.Status(cmd.Context())
	if err != nil {
		return err
	}

	freqs := make([]domain.Frequency, 0, len(st.ByFrequency))
	for f := range st.ByFrequency {
		freqs = append(freqs, f)
	}
	sort.Slice(freqs, func(i, j int) bool { return freqs[i] < freqs[j] })

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, st)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, f := range freqs {
		fmt.Fprintf(tw, "\n[%s]\n", f)
		for _, r := range st.ByFrequency[f] {
			modifier := ""
			if !r.ModifierPercent.IsZero() {
				modifier = r.ModifierPercent.String() + "%"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", r.Name, r.BaseValue, modifier, r.EffectiveValue())
		}
	}
	return tw.Flush()
}

// =============================================================================
// RULES MODIFY / RESET
// =============================================================================

var rulesModifyCmd = &cobra.Command{
	Use:   "modify RULE_NAME PERCENT",
	Short: "Set a rule's modifier percent",
	Long: `Set a rule's modifier. The calculated value is always recomputed from
the base value, so "modify x 20" twice leaves x at +20%, not +44%.`,
	Args: cobra.ExactArgs(2),
	RunE: runRulesModify,
}

func runRulesModify(cmd *cobra.Command, args []string) error {
	percent, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("percent %q is not a number", args[1])
	}
	reason, _ := cmd.Flags().GetString("reason")

	a, closeDB, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	updated, err := a.Rules.UpdateModifier(cmd.Context(), args[0], percent, reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", updated.Rule.Name, updated.PreviousValue, updated.NewValue)
	return nil
}

var rulesResetCmd = &cobra.Command{
	Use:   "reset RULE_NAME",
	Short: "Clear a rule's modifier",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesReset,
}

func runRulesReset(cmd *cobra.Command, args []string) error {
	a, closeDB, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	updated, err := a.Rules.ResetModifier(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", updated.Rule.Name, updated.PreviousValue, updated.NewValue)
	return nil
}
