package alert

// Event types a webhook can subscribe to.
const (
	EventProhibited        = "prohibited"
	EventEscalated         = "escalated"
	EventRejected          = "rejected"
	EventBudgetTierChanged = "budget_tier_changed"
	EventBudgetCeiling     = "budget_ceiling"
)

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["prohibited", "escalated", "budget_ceiling"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// AlertEvent is the payload sent to webhook endpoints.
type AlertEvent struct {
	Timestamp  string `json:"timestamp"`
	Type       string `json:"type"`
	CycleID    string `json:"cycle_id,omitempty"`
	Scope      string `json:"scope,omitempty"`
	ActionType string `json:"action_type,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	Reason     string `json:"reason"`
	Tier       int    `json:"tier"`
	DailySpend string `json:"daily_spend,omitempty"`
	ConfigHash string `json:"config_hash,omitempty"`
}
