// Package orchestrator turns validated action proposals into one of six
// outcomes. It never performs the side effect itself; callers act on the
// returned Result.
package orchestrator

import (
	"log/slog"
	"time"

	"github.com/ppiankov/pmguard/internal/autonomy"
	"github.com/ppiankov/pmguard/internal/boundary"
	"github.com/ppiankov/pmguard/internal/model"
)

// Outcome is the terminal classification of one proposal.
type Outcome string

const (
	OutcomeProhibited    Outcome = "prohibited"
	OutcomeEscalated     Outcome = "escalated"
	OutcomeRejected      Outcome = "rejected"
	OutcomeHeld          Outcome = "held"
	OutcomeAutoExecuted  Outcome = "auto_executed"
	OutcomePreviewedOnly Outcome = "previewed_only"
)

// DefaultHoldQueueMinutes is the cancellation window for hold-queue actions.
const DefaultHoldQueueMinutes = 30

// Input is one proposed action.
type Input struct {
	ActionType  model.ActionType `json:"action_type"`
	Description string           `json:"description,omitempty"`
	Details     map[string]any   `json:"details,omitempty"`
}

// Config controls a single execution pass.
type Config struct {
	AutonomyLevel    autonomy.Level `json:"autonomy_level"`
	DryRun           bool           `json:"dry_run"`
	HoldQueueMinutes int            `json:"hold_queue_minutes,omitempty"`
}

func (c Config) holdWindow() time.Duration {
	m := c.HoldQueueMinutes
	if m <= 0 {
		m = DefaultHoldQueueMinutes
	}
	return time.Duration(m) * time.Minute
}

// Preview is attached to every dry-run result.
type Preview struct {
	WouldExecute         bool `json:"would_execute"`
	WouldHold            bool `json:"would_hold"`
	WouldRequireApproval bool `json:"would_require_approval"`
}

// Result describes what happened (or would happen) to one Input.
type Result struct {
	ActionType         model.ActionType       `json:"action_type"`
	Outcome            Outcome                `json:"outcome"`
	Success            bool                   `json:"success"`
	Held               bool                   `json:"held"`
	HeldUntil          *time.Time             `json:"held_until,omitempty"`
	EscalationRequired bool                   `json:"escalation_required"`
	Category           model.BoundaryCategory `json:"category,omitempty"`
	Reason             string                 `json:"reason,omitempty"`
	Error              string                 `json:"error,omitempty"`
	Description        string                 `json:"description,omitempty"`
	Details            map[string]any         `json:"details,omitempty"`
	DryRun             bool                   `json:"dry_run"`
	Preview            *Preview               `json:"preview,omitempty"`
}

// Orchestrator applies boundary validation to proposals.
type Orchestrator struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock used to compute hold deadlines.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the decision logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns an orchestrator using the wall clock and slog.Default.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExecuteAction classifies one proposal.
//
// Order matters: prohibited actions are reported as such regardless of
// autonomy level or dry-run, and approval-gated actions escalate before
// the allow-list is consulted.
func (o *Orchestrator) ExecuteAction(in Input, cfg Config) Result {
	r := o.classify(in, cfg)
	r.ActionType = in.ActionType
	r.Description = in.Description
	r.Details = in.Details
	if cfg.DryRun {
		r.DryRun = true
		r.Held = false
		r.HeldUntil = nil
		if r.Preview == nil {
			r.Preview = &Preview{}
		}
	}

	o.logger.Debug("action classified",
		"action", in.ActionType,
		"outcome", r.Outcome,
		"level", cfg.AutonomyLevel,
		"dry_run", cfg.DryRun,
		"reason", r.Reason)
	return r
}

func (o *Orchestrator) classify(in Input, cfg Config) Result {
	if boundary.IsNeverDo(in.ActionType) {
		v := boundary.Validate(in.ActionType, cfg.AutonomyLevel)
		return Result{
			Outcome:  OutcomeProhibited,
			Category: model.CategoryNeverDo,
			Reason:   v.Reason,
			Error:    v.Reason,
		}
	}

	v := boundary.Validate(in.ActionType, cfg.AutonomyLevel)

	if v.RequiresApproval {
		r := Result{
			Outcome:            OutcomeEscalated,
			Success:            true,
			Held:               true,
			EscalationRequired: true,
			Category:           v.Category,
			Reason:             v.Reason,
		}
		if cfg.DryRun {
			r.Preview = &Preview{WouldRequireApproval: true}
		}
		return r
	}

	if !v.Allowed {
		return Result{
			Outcome:  OutcomeRejected,
			Category: v.Category,
			Reason:   v.Reason,
			Error:    v.Reason,
		}
	}

	if cfg.DryRun {
		return Result{
			Outcome:  OutcomePreviewedOnly,
			Success:  true,
			Category: v.Category,
			Preview: &Preview{
				WouldExecute: !v.RequiresHoldQueue,
				WouldHold:    v.RequiresHoldQueue,
			},
		}
	}

	if v.RequiresHoldQueue {
		until := o.now().UTC().Add(cfg.holdWindow())
		return Result{
			Outcome:   OutcomeHeld,
			Success:   true,
			Held:      true,
			HeldUntil: &until,
			Category:  v.Category,
			Reason:    "held for cancellation until " + until.Format(time.RFC3339),
		}
	}

	return Result{
		Outcome:  OutcomeAutoExecuted,
		Success:  true,
		Category: v.Category,
	}
}

// ExecuteActions classifies inputs in order. In real mode it stops after
// the first unsuccessful result; in dry-run mode every input is reported.
func (o *Orchestrator) ExecuteActions(inputs []Input, cfg Config) []Result {
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		r := o.ExecuteAction(in, cfg)
		results = append(results, r)
		if !cfg.DryRun && !r.Success {
			o.logger.Info("batch halted on failed action",
				"action", in.ActionType,
				"outcome", r.Outcome,
				"processed", len(results),
				"total", len(inputs))
			break
		}
	}
	return results
}

// PreviewActions is ExecuteActions with dry-run forced on.
func (o *Orchestrator) PreviewActions(inputs []Input, level autonomy.Level) []Result {
	return o.ExecuteActions(inputs, Config{AutonomyLevel: level, DryRun: true})
}

// Summary counts results by outcome.
func Summary(results []Result) map[Outcome]int {
	out := make(map[Outcome]int)
	for _, r := range results {
		out[r.Outcome]++
	}
	return out
}
