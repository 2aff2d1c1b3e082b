package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pmguard/internal/autonomy"
	"github.com/ppiankov/pmguard/internal/boundary"
	"github.com/ppiankov/pmguard/internal/model"
)

var (
	validateLevel string
	validateJSON  bool
)

var errNotAllowed = errors.New("action not allowed")

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateLevel, "level", "", "autonomy level to check against (default: configured level)")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "output as JSON")
}

var validateCmd = &cobra.Command{
	Use:   "validate <action_type>",
	Short: "Check one action type against the boundary catalog",
	Long:  "Prints the boundary verdict. Exits 1 when the action is not allowed.",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

// levelOrConfigured parses an explicit --level, falling back to the config.
func levelOrConfigured(flag string) (autonomy.Level, error) {
	if flag == "" {
		return loadedConfig.AutonomyLevel, nil
	}
	return autonomy.ParseLevel(flag)
}

func runValidate(cmd *cobra.Command, args []string) error {
	level, err := levelOrConfigured(validateLevel)
	if err != nil {
		return err
	}
	action := model.ActionType(args[0])
	v := boundary.Validate(action, level)

	out := cmd.OutOrStdout()
	if validateJSON {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		switch {
		case v.Allowed && v.RequiresHoldQueue:
			fmt.Fprintf(out, "ALLOWED (hold queue): %s at %s\n", action, level)
		case v.Allowed:
			fmt.Fprintf(out, "ALLOWED: %s at %s\n", action, level)
		case v.RequiresApproval:
			fmt.Fprintf(out, "APPROVAL REQUIRED: %s\n", v.Reason)
		default:
			fmt.Fprintf(out, "BLOCKED [%s]: %s\n", v.Category, v.Reason)
		}
	}

	if !v.Allowed {
		return errNotAllowed
	}
	return nil
}
