package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pmguard/internal/audit"
)

var (
	tailLines     int
	replayCycle   string
	replayOutcome string
	replaySince   time.Duration
	replayJSON    bool
)

var errChainBroken = errors.New("audit log hash chain broken")

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditReplayCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
	auditReplayCmd.Flags().StringVar(&replayCycle, "cycle", "", "only entries from this cycle ID")
	auditReplayCmd.Flags().StringVar(&replayOutcome, "outcome", "", "only entries with this outcome")
	auditReplayCmd.Flags().DurationVar(&replaySince, "since", 0, "only entries newer than this (e.g. 24h)")
	auditReplayCmd.Flags().BoolVar(&replayJSON, "json", false, "output as JSON")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Decision journal operations",
	Long:  "Commands for verifying and inspecting the hash-chained decision journal.\nThe path defaults to audit_log from the config.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of the decision journal",
	Long:  "Walks the JSONL journal and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail [path]",
	Short: "Show recent journal entries",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditTail,
}

var auditReplayCmd = &cobra.Command{
	Use:   "replay [path]",
	Short: "Show a filtered timeline of decisions",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditReplay,
}

func journalPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return loadedConfig.AuditLog
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(journalPath(args))
	if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	return errChainBroken
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	entries, err := audit.Tail(journalPath(args), tailLines)
	if err != nil {
		return err
	}
	out, err := audit.FormatJSON(&audit.ReplayResult{Entries: entries})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func runAuditReplay(cmd *cobra.Command, args []string) error {
	f := audit.Filter{CycleID: replayCycle, Outcome: replayOutcome}
	if replaySince > 0 {
		f.From = time.Now().UTC().Add(-replaySince)
	}
	result, err := audit.Replay(journalPath(args), f)
	if err != nil {
		return err
	}

	if replayJSON {
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), audit.FormatTimeline(result))
	return nil
}
