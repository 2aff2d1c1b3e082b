package budget

import (
	"fmt"
	"strings"
)

// FormatState renders a one-line budget summary.
func FormatState(s State) string {
	return fmt.Sprintf("Budget %s: $%.4f / $%.2f daily (%.1f%%), $%.4f / $%.2f monthly, tier %d (%s)",
		s.CurrentDate,
		s.DailySpend, s.DailyLimit, percent(s.DailySpend, s.DailyLimit),
		s.MonthlySpend, s.MonthlyLimit,
		s.DegradationTier, TierLabel(s.DegradationTier))
}

// FormatTiers renders the degradation ladder for a daily limit.
func FormatTiers(dailyLimit float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %-10s %-9s %-5s %-9s %-6s %s\n", "TIER", "LABEL", "FROM", "LLM", "SKIP-LOW", "BATCH", "POLL")
	for tier := 0; tier <= MaxTier; tier++ {
		c := ConfigForTier(tier)
		fmt.Fprintf(&b, "%-4d %-10s $%-8.4f %-5t %-9t %-6t %s\n",
			tier, c.Label, DailyThresholdForTier(tier, dailyLimit),
			c.LLMAllowed, c.SkipLowPriority, c.BatchSignals, c.PollingInterval)
	}
	return b.String()
}

func percent(spend, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return spend / limit * 100
}
