package budget

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/pmguard/internal/retry"
	"github.com/ppiankov/pmguard/internal/store"
)

// Usage is one LLM call as reported by the caller.
type Usage struct {
	InputTokens      int64   `json:"input_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	CacheReadTokens  int64   `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens int64   `json:"cache_write_tokens,omitempty"`
	CostUSD          float64 `json:"cost_usd"`
}

// UsageEntry is the audit form of a Usage kept in the daily history.
type UsageEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	Operation    string    `json:"operation"`
}

// State is a point-in-time view of the tracker.
type State struct {
	DailySpend      float64 `json:"daily_spend_usd"`
	DailyLimit      float64 `json:"daily_limit_usd"`
	MonthlySpend    float64 `json:"monthly_spend_usd"`
	MonthlyLimit    float64 `json:"monthly_limit_usd"`
	DegradationTier int     `json:"degradation_tier"`
	CurrentDate     string  `json:"current_date"`
	MonthStartDate  string  `json:"month_start_date"`
}

// Tracker accumulates spend for one agent scope over a processing cycle.
// It is safe for concurrent use.
type Tracker struct {
	store    store.Store
	scope    string
	limits   Limits
	now      func() time.Time
	logger   *slog.Logger
	policy   retry.Policy
	retryOps []retry.Option

	mu      sync.Mutex
	date    string
	month   string
	daily   float64
	monthly float64
	history []UsageEntry
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the wall clock. Dates are always taken in UTC.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets the logger used for swallowed store failures.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithRetryPolicy sets the optimistic-concurrency retry bounds.
func WithRetryPolicy(p retry.Policy) Option {
	return func(t *Tracker) { t.policy = p }
}

// WithRetryOptions passes options through to retry.Do.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(t *Tracker) { t.retryOps = append(t.retryOps, opts...) }
}

// NewTracker returns a tracker with zero spend. Call Hydrate to load the
// persisted windows.
func NewTracker(s store.Store, scope string, limits Limits, opts ...Option) *Tracker {
	t := &Tracker{
		store:  s,
		scope:  scope,
		limits: limits,
		now:    time.Now,
		logger: slog.Default(),
		policy: retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(t)
	}
	now := t.now().UTC()
	t.date, t.month = dateKey(now), monthKey(now)
	return t
}

// Hydrate loads today's and this month's spend from the store. Read
// failures are logged and leave the affected window at zero.
func (t *Tracker) Hydrate(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	t.date, t.month = dateKey(now), monthKey(now)
	t.daily, t.monthly, t.history = 0, 0, nil
	t.loadLocked(ctx)
}

// RecordUsage adds one usage event to both windows and persists them.
// Only exhausted version-conflict retries are returned; other store
// failures are logged and the in-memory totals still advance.
func (t *Tracker) RecordUsage(ctx context.Context, u Usage, operation, model string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	t.rolloverLocked(ctx, now)

	cost := u.CostUSD
	if cost < 0 {
		t.logger.Warn("negative usage cost ignored", "scope", t.scope, "cost_usd", cost, "operation", operation)
		cost = 0
	}

	entry := UsageEntry{
		Timestamp:    now,
		Model:        model,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		CostUSD:      cost,
		Operation:    operation,
	}
	t.daily += cost
	t.monthly += cost
	t.history = capHistory(append(t.history, entry), t.limits.historyLimit())

	dailyErr := t.persistDailyLocked(ctx, entry)
	monthlyErr := t.persistMonthlyLocked(ctx, cost)
	return errors.Join(t.surface(dailyErr, DailyKey(t.date)), t.surface(monthlyErr, MonthlyKey(t.month)))
}

// surface logs and drops store failures; exhausted retries pass through.
func (t *Tracker) surface(err error, sk string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, retry.ErrExhausted) {
		t.logger.Error("budget write gave up after version conflicts", "scope", t.scope, "key", sk, "error", err)
		return err
	}
	t.logger.Warn("budget store write failed", "scope", t.scope, "key", sk, "error", err)
	return nil
}

// State returns the current windows. A window whose date has passed reads
// as zero until the next RecordUsage or Hydrate reloads it.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked(t.now().UTC())
}

func (t *Tracker) stateLocked(now time.Time) State {
	daily, monthly := t.daily, t.monthly
	if dateKey(now) != t.date {
		daily = 0
	}
	if monthKey(now) != t.month {
		monthly = 0
	}
	return State{
		DailySpend:      daily,
		DailyLimit:      t.limits.DailyUSD,
		MonthlySpend:    monthly,
		MonthlyLimit:    t.limits.MonthlyUSD,
		DegradationTier: TierFromSpend(daily, t.limits.DailyUSD),
		CurrentDate:     dateKey(now),
		MonthStartDate:  monthKey(now) + "-01",
	}
}

// Tier derives the degradation tier from current daily spend.
func (t *Tracker) Tier() int {
	return t.State().DegradationTier
}

// Degradation returns the policy bundle for the current tier.
func (t *Tracker) Degradation() DegradationConfig {
	return ConfigForTier(t.Tier())
}

// IsAtHardCeiling reports whether daily spend has reached the daily limit.
func (t *Tracker) IsAtHardCeiling() bool {
	s := t.State()
	return s.DailySpend >= s.DailyLimit
}

// WouldExceedBudget reports whether spending cost now would cross the
// daily limit.
func (t *Tracker) WouldExceedBudget(cost float64) bool {
	s := t.State()
	return s.DailySpend+cost > s.DailyLimit
}

// History returns a copy of today's usage tail, oldest first.
func (t *Tracker) History() []UsageEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if dateKey(t.now().UTC()) != t.date {
		return nil
	}
	return append([]UsageEntry(nil), t.history...)
}

// Scope returns the agent scope the tracker writes under.
func (t *Tracker) Scope() string { return t.scope }

// Limits returns the configured ceilings.
func (t *Tracker) Limits() Limits { return t.limits }

func (t *Tracker) rolloverLocked(ctx context.Context, now time.Time) {
	date, month := dateKey(now), monthKey(now)
	if date == t.date && month == t.month {
		return
	}

	t.logger.Info("budget window rollover", "scope", t.scope, "from", t.date, "to", date)
	t.daily, t.history = 0, nil
	if month != t.month {
		t.monthly = 0
	}
	t.date, t.month = date, month
	t.loadLocked(ctx)
}

func (t *Tracker) loadLocked(ctx context.Context) {
	var d dailyRecord
	if _, err := readRecord(ctx, t.store, t.scope, DailyKey(t.date), &d); err != nil {
		t.logger.Warn("budget store read failed", "scope", t.scope, "key", DailyKey(t.date), "error", err)
	} else {
		t.daily = max(t.daily, d.SpendUSD)
		t.history = capHistory(d.History, t.limits.historyLimit())
	}

	var m monthlyRecord
	if _, err := readRecord(ctx, t.store, t.scope, MonthlyKey(t.month), &m); err != nil {
		t.logger.Warn("budget store read failed", "scope", t.scope, "key", MonthlyKey(t.month), "error", err)
	} else {
		t.monthly = max(t.monthly, m.SpendUSD)
	}
}

func (t *Tracker) persistDailyLocked(ctx context.Context, entry UsageEntry) error {
	sk := DailyKey(t.date)
	return t.update(ctx, sk, func(stored []byte) (any, error) {
		var d dailyRecord
		if err := decode(stored, &d); err != nil {
			return nil, err
		}
		d.Date = t.date
		d.LimitUSD = t.limits.DailyUSD
		d.SpendUSD += entry.CostUSD
		d.History = capHistory(append(d.History, entry), t.limits.historyLimit())

		t.daily = max(t.daily, d.SpendUSD)
		t.history = append([]UsageEntry(nil), d.History...)
		return d, nil
	})
}

func (t *Tracker) persistMonthlyLocked(ctx context.Context, cost float64) error {
	sk := MonthlyKey(t.month)
	return t.update(ctx, sk, func(stored []byte) (any, error) {
		var m monthlyRecord
		if err := decode(stored, &m); err != nil {
			return nil, err
		}
		m.Month = t.month
		m.LimitUSD = t.limits.MonthlyUSD
		m.SpendUSD += cost

		t.monthly = max(t.monthly, m.SpendUSD)
		return m, nil
	})
}

// update runs a versioned read-modify-write of one record, retrying on
// version conflicts. merge receives the stored payload (nil when absent).
func (t *Tracker) update(ctx context.Context, sk string, merge func(stored []byte) (any, error)) error {
	isConflict := func(err error) bool { return errors.Is(err, store.ErrVersionConflict) }
	return retry.Do(ctx, t.policy, isConflict, func(int) error {
		rec, err := t.store.Get(ctx, t.scope, sk)
		if err != nil {
			return err
		}
		var (
			stored  []byte
			version int64
		)
		if rec != nil {
			stored, version = rec.Data, rec.Version
		}

		next, err := merge(stored)
		if err != nil {
			return err
		}
		data, err := encode(next)
		if err != nil {
			return err
		}

		ok, err := t.store.PutIfVersion(ctx, store.Record{PK: t.scope, SK: sk, Data: data}, version)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrVersionConflict
		}
		return nil
	}, t.retryOps...)
}

func capHistory(h []UsageEntry, limit int) []UsageEntry {
	if len(h) <= limit {
		return h
	}
	return append([]UsageEntry(nil), h[len(h)-limit:]...)
}
