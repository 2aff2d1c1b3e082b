package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Filter selects journal entries. Zero fields match everything.
type Filter struct {
	CycleID string
	Outcome string
	From    time.Time
	To      time.Time
	Limit   int // keep only the newest Limit matches
}

// Summary counts entries by outcome.
type Summary struct {
	Total          int            `json:"total"`
	Outcomes       map[string]int `json:"outcomes"`
	MaxBudgetTier  int            `json:"max_budget_tier"`
	FirstTimestamp string         `json:"first_timestamp,omitempty"`
	LastTimestamp  string         `json:"last_timestamp,omitempty"`
}

// ReplayResult holds the matching entries and their summary.
type ReplayResult struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Replay reads the journal and returns entries matching f, oldest first.
// Malformed lines are skipped; use Verify to detect them.
func Replay(path string, f Filter) (*ReplayResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if f.matches(e) {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	if f.Limit > 0 && len(entries) > f.Limit {
		entries = entries[len(entries)-f.Limit:]
	}

	result := &ReplayResult{Entries: entries, Summary: Summary{Outcomes: map[string]int{}}}
	for _, e := range entries {
		result.Summary.add(e)
	}
	return result, nil
}

// Tail returns the last n entries.
func Tail(path string, n int) ([]Entry, error) {
	r, err := Replay(path, Filter{Limit: n})
	if err != nil {
		return nil, err
	}
	return r.Entries, nil
}

func (f Filter) matches(e Entry) bool {
	if f.CycleID != "" && e.CycleID != f.CycleID {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

func (s *Summary) add(e Entry) {
	s.Total++
	s.Outcomes[e.Outcome]++
	if e.BudgetTier > s.MaxBudgetTier {
		s.MaxBudgetTier = e.BudgetTier
	}
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}
