package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pmguard/internal/budget"
	"github.com/ppiankov/pmguard/internal/store"
)

var (
	budgetJSON bool

	usageModel     string
	usageOperation string
	usage          budget.Usage
)

func init() {
	rootCmd.AddCommand(budgetCmd)
	budgetCmd.AddCommand(budgetStatusCmd)
	budgetCmd.AddCommand(budgetRecordCmd)
	budgetCmd.AddCommand(budgetTiersCmd)

	budgetStatusCmd.Flags().BoolVar(&budgetJSON, "json", false, "output as JSON")

	budgetRecordCmd.Flags().Float64Var(&usage.CostUSD, "cost", 0, "cost of the LLM call in USD")
	budgetRecordCmd.Flags().StringVar(&usageModel, "model", "", "model identifier")
	budgetRecordCmd.Flags().StringVar(&usageOperation, "operation", "", "what the call was for")
	budgetRecordCmd.Flags().Int64Var(&usage.InputTokens, "input-tokens", 0, "input tokens")
	budgetRecordCmd.Flags().Int64Var(&usage.OutputTokens, "output-tokens", 0, "output tokens")
	budgetRecordCmd.Flags().Int64Var(&usage.CacheReadTokens, "cache-read-tokens", 0, "cache read tokens")
	budgetRecordCmd.Flags().Int64Var(&usage.CacheWriteTokens, "cache-write-tokens", 0, "cache write tokens")
	_ = budgetRecordCmd.MarkFlagRequired("cost")
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Inspect and record LLM spend",
	Long:  "Daily and monthly spend for the configured agent scope, and the degradation ladder it drives.",
}

var budgetStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current spend and degradation tier",
	RunE:  runBudgetStatus,
}

var budgetRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the cost of one LLM call",
	RunE:  runBudgetRecord,
}

var budgetTiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Show the degradation ladder for the configured daily limit",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(cmd.OutOrStdout(), budget.FormatTiers(loadedConfig.Budget.DailyUSD))
		return nil
	},
}

func runBudgetStatus(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	s, err := store.OpenSQLite(loadedConfig.StorePath)
	if err != nil {
		return err
	}
	defer s.Close()

	t := budget.NewTracker(s, loadedConfig.AgentScope, loadedConfig.Budget,
		budget.WithLogger(slog.Default()),
		budget.WithRetryPolicy(loadedConfig.Retry))
	t.Hydrate(ctx)
	return printBudget(cmd.OutOrStdout(), t.State(), budgetJSON)
}

func runBudgetRecord(cmd *cobra.Command, args []string) error {
	if usage.CostUSD < 0 {
		return fmt.Errorf("--cost must be >= 0, got %g", usage.CostUSD)
	}
	ctx := commandContext(cmd)
	rt, err := openRuntime(loadedConfig, loadedHash)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	c, err := rt.startCycle(ctx)
	if err != nil {
		return err
	}
	if err := c.RecordUsage(ctx, usage, usageOperation, usageModel); err != nil {
		return err
	}
	return printBudget(cmd.OutOrStdout(), c.Budget(), false)
}

func printBudget(out io.Writer, s budget.State, asJSON bool) error {
	deg := budget.ConfigForTier(s.DegradationTier)
	if asJSON {
		data, err := json.MarshalIndent(struct {
			budget.State
			Degradation budget.DegradationConfig `json:"degradation"`
		}{s, deg}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, budget.FormatState(s))
	switch {
	case !deg.LLMAllowed:
		fmt.Fprintln(out, "LLM calls suspended; deterministic processing only.")
	case deg.SkipLowPriority:
		fmt.Fprintf(out, "Low-priority work skipped; polling every %s.\n", deg.PollingInterval)
	case deg.BatchSignals:
		fmt.Fprintln(out, "Signals batched to conserve budget.")
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
