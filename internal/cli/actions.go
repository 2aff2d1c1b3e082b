package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pmguard/internal/autonomy"
	"github.com/ppiankov/pmguard/internal/cycle"
	"github.com/ppiankov/pmguard/internal/model"
	"github.com/ppiankov/pmguard/internal/orchestrator"
)

var (
	actionsFile        string
	actionsDescription string
	actionsJSON        bool
	actionsLLMDerived  bool
	previewLevel       string
)

var errBatchHalted = errors.New("batch halted on an unsuccessful action")

func init() {
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(executeCmd)

	for _, c := range []*cobra.Command{previewCmd, executeCmd} {
		c.Flags().StringVarP(&actionsFile, "file", "f", "", "JSON array of proposals (\"-\" for stdin)")
		c.Flags().StringVar(&actionsDescription, "description", "", "description applied to positional action types")
		c.Flags().BoolVar(&actionsLLMDerived, "llm-derived", false, "mark positional action types as LLM-derived")
		c.Flags().BoolVar(&actionsJSON, "json", false, "output as JSON")
	}
	previewCmd.Flags().StringVar(&previewLevel, "level", "", "autonomy level to preview at (default: configured level)")
}

var previewCmd = &cobra.Command{
	Use:   "preview [action_type...]",
	Short: "Show what a batch of actions would do without acting",
	Long: "Dry-run: every proposal is classified, nothing is journaled or alerted.\n" +
		"Proposals come from positional action types or --file.",
	RunE: runPreview,
}

var executeCmd = &cobra.Command{
	Use:   "execute [action_type...]",
	Short: "Classify and journal a batch of actions at the configured level",
	Long: "Runs a governed cycle. Decisions are appended to the audit log and the\n" +
		"batch stops at the first unsuccessful action.",
	RunE: runExecute,
}

func runPreview(cmd *cobra.Command, args []string) error {
	level, err := levelOrConfigured(previewLevel)
	if err != nil {
		return err
	}
	return runActions(cmd, args, level, true)
}

func runExecute(cmd *cobra.Command, args []string) error {
	return runActions(cmd, args, loadedConfig.AutonomyLevel, false)
}

func runActions(cmd *cobra.Command, args []string, level autonomy.Level, dryRun bool) error {
	proposals, err := readProposals(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if len(proposals) == 0 {
		return errors.New("no actions given: pass action types or --file")
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
	decisions, err := c.Execute(ctx, proposals, level, dryRun)
	if err != nil {
		return err
	}

	if err := printDecisions(cmd.OutOrStdout(), c.ID(), level, dryRun, decisions); err != nil {
		return err
	}
	if !dryRun {
		for _, d := range decisions {
			if !d.Success {
				return errBatchHalted
			}
		}
	}
	return nil
}

func readProposals(stdin io.Reader, args []string) ([]cycle.Proposal, error) {
	var proposals []cycle.Proposal
	if actionsFile != "" {
		var data []byte
		var err error
		if actionsFile == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(actionsFile)
		}
		if err != nil {
			return nil, fmt.Errorf("read proposals: %w", err)
		}
		if err := json.Unmarshal(data, &proposals); err != nil {
			return nil, fmt.Errorf("parse proposals: %w", err)
		}
		for i := range proposals {
			if c := proposals[i].Confidence; c != nil {
				in := *c
				in.Boundary = nil
				proposals[i].Confidence = &in
			}
		}
	}
	for _, a := range args {
		proposals = append(proposals, cycle.Proposal{
			Input: orchestrator.Input{
				ActionType:  model.ActionType(a),
				Description: actionsDescription,
			},
			LLMDerived: actionsLLMDerived,
		})
	}
	return proposals, nil
}

type decisionsReport struct {
	CycleID       string                       `json:"cycle_id"`
	AutonomyLevel autonomy.Level               `json:"autonomy_level"`
	DryRun        bool                         `json:"dry_run"`
	Decisions     []cycle.Decision             `json:"decisions"`
	Summary       map[orchestrator.Outcome]int `json:"summary"`
}

func printDecisions(out io.Writer, cycleID string, level autonomy.Level, dryRun bool, decisions []cycle.Decision) error {
	results := make([]orchestrator.Result, len(decisions))
	for i, d := range decisions {
		results[i] = d.Result
	}
	summary := orchestrator.Summary(results)

	if actionsJSON {
		data, err := json.MarshalIndent(decisionsReport{
			CycleID:       cycleID,
			AutonomyLevel: level,
			DryRun:        dryRun,
			Decisions:     decisions,
			Summary:       summary,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	mode := "execute"
	if dryRun {
		mode = "preview"
	}
	fmt.Fprintf(out, "Cycle %s (%s, level %s)\n\n", cycleID, mode, level)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, d := range decisions {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", d.Outcome, d.ActionType, decisionNote(d))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	var parts []string
	for _, o := range []orchestrator.Outcome{
		orchestrator.OutcomeAutoExecuted,
		orchestrator.OutcomeHeld,
		orchestrator.OutcomePreviewedOnly,
		orchestrator.OutcomeEscalated,
		orchestrator.OutcomeRejected,
		orchestrator.OutcomeProhibited,
	} {
		if n := summary[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", o, n))
		}
	}
	fmt.Fprintf(out, "\nSummary: %s\n", strings.Join(parts, " "))
	return nil
}

func decisionNote(d cycle.Decision) string {
	switch {
	case d.HeldUntil != nil:
		return "until " + d.HeldUntil.UTC().Format(time.RFC3339)
	case d.Preview != nil && d.Preview.WouldHold:
		return "would hold"
	case d.Preview != nil && d.Preview.WouldRequireApproval:
		return "would require approval: " + d.Reason
	case d.Reason != "":
		return d.Reason
	default:
		return ""
	}
}
