package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/pmguard/internal/store"
)

type dailyRecord struct {
	Date     string       `json:"date"`
	SpendUSD float64      `json:"spend_usd"`
	LimitUSD float64      `json:"limit_usd"`
	History  []UsageEntry `json:"history,omitempty"`
}

type monthlyRecord struct {
	Month    string  `json:"month"`
	SpendUSD float64 `json:"spend_usd"`
	LimitUSD float64 `json:"limit_usd"`
}

// DailyKey is the sort key of the daily spend record for date (YYYY-MM-DD).
func DailyKey(date string) string { return "daily_spend_" + date }

// MonthlyKey is the sort key of the monthly spend record for month (YYYY-MM).
func MonthlyKey(month string) string { return "monthly_spend_" + month }

func dateKey(t time.Time) string  { return t.UTC().Format("2006-01-02") }
func monthKey(t time.Time) string { return t.UTC().Format("2006-01") }

func readRecord(ctx context.Context, s store.Store, pk, sk string, v any) (bool, error) {
	rec, err := s.Get(ctx, pk, sk)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	if err := decode(rec.Data, v); err != nil {
		return false, err
	}
	return true, nil
}

func decode(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode budget record: %w", err)
	}
	return nil
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode budget record: %w", err)
	}
	return data, nil
}
