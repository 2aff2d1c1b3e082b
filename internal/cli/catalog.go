package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pmguard/internal/autonomy"
	"github.com/ppiankov/pmguard/internal/boundary"
	"github.com/ppiankov/pmguard/internal/model"
)

var catalogJSON bool

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "output as JSON")
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List every action type with its boundary category",
	RunE:  runCatalog,
}

type catalogRow struct {
	ActionType   model.ActionType       `json:"action_type"`
	Category     model.BoundaryCategory `json:"category"`
	MinimumLevel string                 `json:"minimum_level,omitempty"`
	Allowed      bool                   `json:"allowed"`
}

func runCatalog(cmd *cobra.Command, args []string) error {
	level := loadedConfig.AutonomyLevel
	var rows []catalogRow
	for _, a := range model.KnownActionTypes {
		category, _ := boundary.Category(a)
		row := catalogRow{
			ActionType: a,
			Category:   category,
			Allowed:    boundary.Validate(a, level).Allowed,
		}
		if min, ok := autonomy.MinimumLevel(a); ok {
			row.MinimumLevel = min.String()
		}
		rows = append(rows, row)
	}
	// Least restrictive first; declaration order within a category.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Category.Rank() < rows[j].Category.Rank()
	})

	out := cmd.OutOrStdout()
	if catalogJSON {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Autonomy level: %s\n\n", level)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACTION\tCATEGORY\tMIN LEVEL\tALLOWED")
	for _, r := range rows {
		min := r.MinimumLevel
		if min == "" {
			min = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", r.ActionType, r.Category, min, r.Allowed)
	}
	return w.Flush()
}
