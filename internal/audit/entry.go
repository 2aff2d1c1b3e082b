package audit

// Action is the proposal a decision was made about.
type Action struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Entry is one line in the hash-chained JSONL decision journal.
// All fields are structs (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp     string `json:"ts"`
	CycleID       string `json:"cycle_id"`
	Scope         string `json:"scope"`
	Action        Action `json:"action"`
	AutonomyLevel string `json:"autonomy_level"`
	Outcome       string `json:"outcome"`
	Category      string `json:"category,omitempty"`
	Reason        string `json:"reason,omitempty"`
	HeldUntil     string `json:"held_until,omitempty"`
	BudgetTier    int    `json:"budget_tier"`
	ConfigHash    string `json:"config_hash,omitempty"`
	PrevHash      string `json:"prev_hash"`
}
