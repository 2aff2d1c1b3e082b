package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pmguard/internal/boundary"
	"github.com/ppiankov/pmguard/internal/confidence"
	"github.com/ppiankov/pmguard/internal/model"
)

var (
	confAction       string
	confSummary      string
	confSignals      []string
	confPrecedents   []string
	confSchemaOK     bool
	confSchemaErrors []string
	confJSON         bool
)

var errGateBlocked = errors.New("confidence gate blocked")

func init() {
	rootCmd.AddCommand(confidenceCmd)
	f := confidenceCmd.Flags()
	f.StringVar(&confAction, "action", "", "proposed external action type, checked at the configured level")
	f.StringVar(&confSummary, "summary", "", "one-line summary of the proposed output")
	f.StringArrayVar(&confSignals, "signal", nil, "normalised conclusion of one source (repeatable)")
	f.StringArrayVar(&confPrecedents, "precedent", nil, "summary of a previously accepted output (repeatable)")
	f.BoolVar(&confSchemaOK, "schema-checked", false, "the artefact was schema-validated")
	f.StringArrayVar(&confSchemaErrors, "schema-error", nil, "schema validation error (repeatable)")
	f.BoolVar(&confJSON, "json", false, "output as JSON")
}

var confidenceCmd = &cobra.Command{
	Use:   "confidence",
	Short: "Score a proposed output through the confidence gate",
	Long:  "All four dimensions must pass. Exits 1 when the gate blocks.",
	RunE:  runConfidence,
}

func runConfidence(cmd *cobra.Command, args []string) error {
	in := confidence.Input{
		Summary:       confSummary,
		SourceSignals: confSignals,
		Schema:        confidence.SchemaCheck{Checked: confSchemaOK || len(confSchemaErrors) > 0, Errors: confSchemaErrors},
		Precedents:    confPrecedents,
	}
	if confAction != "" {
		v := boundary.Validate(model.ActionType(confAction), loadedConfig.AutonomyLevel)
		in.Boundary = &v
	}
	score := confidence.Compute(in, loadedConfig.Confidence)

	out := cmd.OutOrStdout()
	if confJSON {
		data, err := json.MarshalIndent(score, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprint(out, confidence.Format(score))
	}

	if !confidence.Check(score) {
		return errGateBlocked
	}
	return nil
}
