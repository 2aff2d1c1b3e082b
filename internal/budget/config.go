package budget

// Limits are the USD ceilings for the two spend windows.
type Limits struct {
	DailyUSD     float64 `yaml:"daily_limit_usd" json:"daily_limit_usd"`
	MonthlyUSD   float64 `yaml:"monthly_limit_usd" json:"monthly_limit_usd"`
	HistoryLimit int     `yaml:"history_limit" json:"history_limit"`
}

// DefaultHistoryLimit caps the usage tail kept on the daily record.
const DefaultHistoryLimit = 100

// DefaultLimits returns the stock per-agent budget.
func DefaultLimits() Limits {
	return Limits{
		DailyUSD:     0.23,
		MonthlyUSD:   8.00,
		HistoryLimit: DefaultHistoryLimit,
	}
}

func (l Limits) historyLimit() int {
	if l.HistoryLimit <= 0 {
		return DefaultHistoryLimit
	}
	return l.HistoryLimit
}
