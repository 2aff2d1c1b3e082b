package budget

import "time"

// Tier ratios of daily spend to daily limit.
const (
	Tier1Ratio = 0.70
	Tier2Ratio = 0.85
	Tier3Ratio = 0.95
)

// MaxTier is the most restrictive degradation tier.
const MaxTier = 3

// ModelMix is the percentage split of LLM calls across model classes.
type ModelMix struct {
	Light    int `json:"light"`
	Standard int `json:"standard"`
	Advanced int `json:"advanced"`
}

// DegradationConfig is the operating policy for one tier.
type DegradationConfig struct {
	Tier            int           `json:"tier"`
	Label           string        `json:"label"`
	ModelMix        ModelMix      `json:"model_mix"`
	LLMAllowed      bool          `json:"llm_allowed"`
	SkipLowPriority bool          `json:"skip_low_priority"`
	BatchSignals    bool          `json:"batch_signals"`
	PollingInterval time.Duration `json:"polling_interval"`
}

var tiers = [MaxTier + 1]DegradationConfig{
	{
		Tier:            0,
		Label:           "normal",
		ModelMix:        ModelMix{Light: 70, Standard: 25, Advanced: 5},
		LLMAllowed:      true,
		PollingInterval: 15 * time.Minute,
	},
	{
		Tier:            1,
		Label:           "conserve",
		ModelMix:        ModelMix{Light: 85, Standard: 15},
		LLMAllowed:      true,
		BatchSignals:    true,
		PollingInterval: 15 * time.Minute,
	},
	{
		Tier:            2,
		Label:           "reduced",
		ModelMix:        ModelMix{Light: 100},
		LLMAllowed:      true,
		SkipLowPriority: true,
		BatchSignals:    true,
		PollingInterval: 30 * time.Minute,
	},
	{
		Tier:            3,
		Label:           "suspended",
		LLMAllowed:      false,
		SkipLowPriority: true,
		BatchSignals:    true,
		PollingInterval: 60 * time.Minute,
	},
}

// TierFromSpend maps spend against a daily limit onto tiers 0..3.
// A non-positive limit leaves no headroom and yields the top tier.
func TierFromSpend(spend, limit float64) int {
	if limit <= 0 {
		return MaxTier
	}
	// Compare against the published thresholds so a spend of exactly
	// DailyThresholdForTier(n) always lands on tier n.
	for tier := MaxTier; tier > 0; tier-- {
		if spend >= DailyThresholdForTier(tier, limit) {
			return tier
		}
	}
	return 0
}

// DailyThresholdForTier returns the daily spend at which tier begins.
func DailyThresholdForTier(tier int, dailyLimit float64) float64 {
	switch {
	case tier <= 0:
		return 0
	case tier == 1:
		return dailyLimit * Tier1Ratio
	case tier == 2:
		return dailyLimit * Tier2Ratio
	default:
		return dailyLimit * Tier3Ratio
	}
}

// ConfigForTier returns the policy bundle for tier, clamped to 0..3.
func ConfigForTier(tier int) DegradationConfig {
	return tiers[clampTier(tier)]
}

// TierLabel names a tier for display.
func TierLabel(tier int) string {
	return tiers[clampTier(tier)].Label
}

func clampTier(tier int) int {
	if tier < 0 {
		return 0
	}
	if tier > MaxTier {
		return MaxTier
	}
	return tier
}
