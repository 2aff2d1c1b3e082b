package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable timeline.
func FormatTimeline(r *ReplayResult) string {
	if len(r.Entries) == 0 {
		return "No journal entries found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Journal | %s – %s UTC\n", formatDateTime(r.Summary.FirstTimestamp), formatTimeOnly(r.Summary.LastTimestamp))
	b.WriteString(separator + "\n")
	for _, e := range r.Entries {
		cycle := e.CycleID
		if len(cycle) > 8 {
			cycle = cycle[:8]
		}
		fmt.Fprintf(&b, "%-10s %-8s B%d %-15s %-26s %s\n",
			formatTimeOnly(e.Timestamp), cycle, e.BudgetTier,
			strings.ToUpper(e.Outcome), truncate(e.Action.Type, 26), truncate(e.Reason, 60))
	}
	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(r.Summary))
	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(r *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatSummary(s Summary) string {
	keys := make([]string, 0, len(s.Outcomes))
	for k := range s.Outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d %s", s.Outcomes[k], k))
	}
	return fmt.Sprintf("Summary: %s | Max budget tier: %d\n", strings.Join(parts, ", "), s.MaxBudgetTier)
}

func formatDateTime(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
