// Package cycle wires the governance components together for one
// processing invocation of the agent.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/pmguard/internal/alert"
	"github.com/ppiankov/pmguard/internal/audit"
	"github.com/ppiankov/pmguard/internal/autonomy"
	"github.com/ppiankov/pmguard/internal/boundary"
	"github.com/ppiankov/pmguard/internal/budget"
	"github.com/ppiankov/pmguard/internal/confidence"
	"github.com/ppiankov/pmguard/internal/orchestrator"
	"github.com/ppiankov/pmguard/internal/redact"
	"github.com/ppiankov/pmguard/internal/retry"
	"github.com/ppiankov/pmguard/internal/store"
)

// Options are the collaborators and settings for a cycle. Store is
// required; Journal and Alerts are optional.
type Options struct {
	Scope            string
	Limits           budget.Limits
	Retry            retry.Policy
	RetryOptions     []retry.Option
	Thresholds       confidence.Thresholds
	HoldQueueMinutes int
	ConfigHash       string

	Store   store.Store
	Journal *audit.Log
	Alerts  *alert.Dispatcher
	Logger  *slog.Logger
	Clock   func() time.Time
}

// ReasonNoEvidence blocks an LLM-derived proposal that carries no
// confidence evidence.
const ReasonNoEvidence = "no confidence evidence supplied for an LLM-derived action"

// Proposal is an action the agent wants to take, with the evidence the
// confidence gate needs. Only deterministic proposals may omit Confidence;
// an LLM-derived one without it is escalated.
type Proposal struct {
	orchestrator.Input
	LLMDerived bool              `json:"llm_derived,omitempty"`
	Confidence *confidence.Input `json:"confidence,omitempty"`
}

// Decision is an orchestrator result plus the gate's view of it.
type Decision struct {
	orchestrator.Result
	Confidence      *confidence.Score `json:"confidence,omitempty"`
	BlockingReasons []string          `json:"blocking_reasons,omitempty"`
}

// Cycle is one processing invocation. Construct with Start.
type Cycle struct {
	id      string
	opts    Options
	tracker *budget.Tracker
	orch    *orchestrator.Orchestrator
	logger  *slog.Logger
}

// Start assigns a cycle ID and hydrates the budget tracker.
func Start(ctx context.Context, opts Options) (*Cycle, error) {
	if opts.Store == nil {
		return nil, errors.New("cycle requires a store")
	}
	if opts.Scope == "" {
		return nil, errors.New("cycle requires an agent scope")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}

	id := uuid.NewString()
	logger := opts.Logger.With("cycle_id", id, "scope", opts.Scope)

	tracker := budget.NewTracker(opts.Store, opts.Scope, opts.Limits,
		budget.WithClock(opts.Clock),
		budget.WithLogger(logger),
		budget.WithRetryPolicy(opts.Retry),
		budget.WithRetryOptions(opts.RetryOptions...))
	tracker.Hydrate(ctx)

	c := &Cycle{
		id:      id,
		opts:    opts,
		tracker: tracker,
		orch:    orchestrator.New(orchestrator.WithClock(opts.Clock), orchestrator.WithLogger(logger)),
		logger:  logger,
	}
	logger.Info("cycle started", "budget", budget.FormatState(tracker.State()))
	return c, nil
}

// ID returns the cycle's UUID.
func (c *Cycle) ID() string { return c.id }

// Budget returns the current budget state.
func (c *Cycle) Budget() budget.State { return c.tracker.State() }

// Degradation returns the policy bundle for the current budget tier.
func (c *Cycle) Degradation() budget.DegradationConfig { return c.tracker.Degradation() }

// Tracker exposes the cycle's budget tracker.
func (c *Cycle) Tracker() *budget.Tracker { return c.tracker }

// Execute runs proposals through the orchestrator, the budget ladder and
// the confidence gate, in that order. Real-mode decisions are journaled
// and stop at the first unsuccessful one; dry-run decisions are neither
// journaled nor alerted and cover every proposal.
func (c *Cycle) Execute(ctx context.Context, proposals []Proposal, level autonomy.Level, dryRun bool) ([]Decision, error) {
	cfg := orchestrator.Config{
		AutonomyLevel:    level,
		DryRun:           dryRun,
		HoldQueueMinutes: c.opts.HoldQueueMinutes,
	}
	degradation := c.tracker.Degradation()

	decisions := make([]Decision, 0, len(proposals))
	for _, p := range proposals {
		if err := ctx.Err(); err != nil {
			return decisions, err
		}

		d := Decision{Result: c.orch.ExecuteAction(p.Input, cfg)}
		if wouldRun(d.Outcome) {
			switch {
			case p.LLMDerived && !degradation.LLMAllowed:
				reject(&d, fmt.Sprintf("budget tier %d (%s): LLM-derived actions are disabled", degradation.Tier, degradation.Label))
			case p.Confidence != nil:
				c.gate(&d, p, level)
			case p.LLMDerived:
				escalate(&d, []string{ReasonNoEvidence})
			}
		}
		decisions = append(decisions, d)

		if dryRun {
			continue
		}
		if err := c.record(d, level); err != nil {
			return decisions, err
		}
		c.alertDecision(d)
		if !d.Success {
			c.logger.Info("cycle batch halted", "action", d.ActionType, "outcome", d.Outcome, "processed", len(decisions), "total", len(proposals))
			break
		}
	}
	return decisions, nil
}

// Preview is Execute with dry-run forced on.
func (c *Cycle) Preview(ctx context.Context, proposals []Proposal, level autonomy.Level) ([]Decision, error) {
	return c.Execute(ctx, proposals, level, true)
}

func wouldRun(o orchestrator.Outcome) bool {
	return o == orchestrator.OutcomeAutoExecuted || o == orchestrator.OutcomeHeld || o == orchestrator.OutcomePreviewedOnly
}

func reject(d *Decision, reason string) {
	d.Outcome = orchestrator.OutcomeRejected
	d.Success = false
	d.Held = false
	d.HeldUntil = nil
	d.Reason = reason
	d.Error = reason
	if d.DryRun {
		d.Preview = &orchestrator.Preview{}
	}
}

// gate downgrades a runnable decision to an escalation when the
// confidence score does not pass.
func (c *Cycle) gate(d *Decision, p Proposal, level autonomy.Level) {
	in := *p.Confidence
	if in.Boundary == nil {
		v := boundary.Validate(p.ActionType, level)
		in.Boundary = &v
	}
	score := confidence.Compute(in, c.opts.Thresholds)
	d.Confidence = &score
	if confidence.Check(score) {
		return
	}

	escalate(d, confidence.BlockingReasons(score))
}

// escalate turns a runnable decision into an escalation. Dry-run
// decisions report the approval they would need but are never held.
func escalate(d *Decision, reasons []string) {
	d.BlockingReasons = reasons
	d.Outcome = orchestrator.OutcomeEscalated
	d.Success = true
	d.EscalationRequired = true
	d.HeldUntil = nil
	d.Held = !d.DryRun
	d.Reason = "confidence gate: " + strings.Join(d.BlockingReasons, "; ")
	if d.DryRun {
		d.Preview = &orchestrator.Preview{WouldRequireApproval: true}
	}
}

func (c *Cycle) record(d Decision, level autonomy.Level) error {
	if c.opts.Journal == nil {
		return nil
	}
	e := audit.Entry{
		CycleID:       c.id,
		Scope:         c.opts.Scope,
		Action:        audit.Action{Type: string(d.ActionType), Description: redact.Text(d.Description)},
		AutonomyLevel: level.String(),
		Outcome:       string(d.Outcome),
		Category:      string(d.Category),
		Reason:        redact.Text(d.Reason),
		BudgetTier:    c.tracker.Tier(),
		ConfigHash:    c.opts.ConfigHash,
	}
	if d.HeldUntil != nil {
		e.HeldUntil = d.HeldUntil.UTC().Format(time.RFC3339)
	}
	if _, err := c.opts.Journal.Record(e); err != nil {
		return fmt.Errorf("record decision for %s: %w", d.ActionType, err)
	}
	return nil
}

func (c *Cycle) alertDecision(d Decision) {
	var typ string
	switch d.Outcome {
	case orchestrator.OutcomeProhibited:
		typ = alert.EventProhibited
	case orchestrator.OutcomeEscalated:
		typ = alert.EventEscalated
	case orchestrator.OutcomeRejected:
		typ = alert.EventRejected
	default:
		return
	}
	c.opts.Alerts.Dispatch(alert.AlertEvent{
		Timestamp:  c.opts.Clock().UTC().Format(time.RFC3339Nano),
		Type:       typ,
		CycleID:    c.id,
		Scope:      c.opts.Scope,
		ActionType: string(d.ActionType),
		Outcome:    string(d.Outcome),
		Reason:     redact.Text(d.Reason),
		Tier:       c.tracker.Tier(),
		ConfigHash: c.opts.ConfigHash,
	})
}

// RecordUsage forwards to the tracker and raises alerts when the
// degradation tier changes or the daily ceiling is reached.
func (c *Cycle) RecordUsage(ctx context.Context, u budget.Usage, operation, model string) error {
	before := c.tracker.State()
	wasAtCeiling := before.DailySpend >= before.DailyLimit

	err := c.tracker.RecordUsage(ctx, u, operation, model)

	after := c.tracker.State()
	if after.DegradationTier != before.DegradationTier {
		c.logger.Info("budget tier changed",
			"from", before.DegradationTier, "to", after.DegradationTier,
			"label", budget.TierLabel(after.DegradationTier))
		c.budgetAlert(alert.EventBudgetTierChanged, after,
			fmt.Sprintf("degradation tier %d -> %d (%s)", before.DegradationTier, after.DegradationTier, budget.TierLabel(after.DegradationTier)))
	}
	if !wasAtCeiling && after.DailySpend >= after.DailyLimit {
		c.logger.Warn("daily budget ceiling reached", "spend", after.DailySpend, "limit", after.DailyLimit)
		c.budgetAlert(alert.EventBudgetCeiling, after,
			fmt.Sprintf("daily spend $%.4f reached limit $%.2f", after.DailySpend, after.DailyLimit))
	}
	return err
}

func (c *Cycle) budgetAlert(typ string, s budget.State, reason string) {
	c.opts.Alerts.Dispatch(alert.AlertEvent{
		Timestamp:  c.opts.Clock().UTC().Format(time.RFC3339Nano),
		Type:       typ,
		CycleID:    c.id,
		Scope:      c.opts.Scope,
		Reason:     reason,
		Tier:       s.DegradationTier,
		DailySpend: fmt.Sprintf("%.4f", s.DailySpend),
		ConfigHash: c.opts.ConfigHash,
	})
}

// Close waits for in-flight alert deliveries.
func (c *Cycle) Close(ctx context.Context) error {
	err := c.opts.Alerts.Wait(ctx)
	c.logger.Info("cycle finished", "budget", budget.FormatState(c.tracker.State()))
	return err
}
