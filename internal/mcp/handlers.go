package mcp

import (
	"context"
	"fmt"
	"sort"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/pmguard/internal/autonomy"
	"github.com/ppiankov/pmguard/internal/boundary"
	"github.com/ppiankov/pmguard/internal/budget"
	"github.com/ppiankov/pmguard/internal/confidence"
	"github.com/ppiankov/pmguard/internal/cycle"
	"github.com/ppiankov/pmguard/internal/model"
	"github.com/ppiankov/pmguard/internal/orchestrator"
)

// --- Input/Output types ---

// ValidateInput defines parameters for the pmguard_validate tool.
type ValidateInput struct {
	ActionType    string `json:"action_type" jsonschema:"action type, e.g. jira_comment"`
	AutonomyLevel string `json:"autonomy_level,omitempty" jsonschema:"monitoring, artefact or tactical; defaults to the configured level"`
}

// ValidateOutput is the boundary verdict.
type ValidateOutput struct {
	Allowed           bool   `json:"allowed"`
	Category          string `json:"category,omitempty"`
	RequiresHoldQueue bool   `json:"requires_hold_queue"`
	RequiresApproval  bool   `json:"requires_approval"`
	Reason            string `json:"reason,omitempty"`
	AutonomyLevel     string `json:"autonomy_level"`
	MinimumLevel      string `json:"minimum_level,omitempty"`
}

// ProposalInput is one proposed action.
type ProposalInput struct {
	ActionType  string            `json:"action_type" jsonschema:"action type, e.g. jira_status_change"`
	Description string            `json:"description,omitempty" jsonschema:"what the action would do"`
	Details     map[string]any    `json:"details,omitempty" jsonschema:"action parameters, passed through unchanged"`
	LLMDerived  bool              `json:"llm_derived,omitempty" jsonschema:"only meaningful for heartbeat_log; every other action is treated as LLM-derived"`
	Confidence  *confidence.Input `json:"confidence,omitempty" jsonschema:"evidence for the confidence gate; omit to skip the gate"`
}

// ActionsInput defines parameters for pmguard_preview and pmguard_execute.
type ActionsInput struct {
	Actions []ProposalInput `json:"actions" jsonschema:"proposed actions in execution order"`
}

// DecisionOutput is the flattened outcome for one proposal.
type DecisionOutput struct {
	ActionType           string   `json:"action_type"`
	Outcome              string   `json:"outcome"`
	Success              bool     `json:"success"`
	Held                 bool     `json:"held"`
	HeldUntil            string   `json:"held_until,omitempty"`
	EscalationRequired   bool     `json:"escalation_required"`
	Category             string   `json:"category,omitempty"`
	Reason               string   `json:"reason,omitempty"`
	DryRun               bool     `json:"dry_run"`
	WouldExecute         bool     `json:"would_execute,omitempty"`
	WouldHold            bool     `json:"would_hold,omitempty"`
	WouldRequireApproval bool     `json:"would_require_approval,omitempty"`
	BlockingReasons      []string `json:"blocking_reasons,omitempty"`
}

// DecisionsOutput is the result of a preview or execute call.
type DecisionsOutput struct {
	CycleID       string           `json:"cycle_id"`
	AutonomyLevel string           `json:"autonomy_level"`
	DryRun        bool             `json:"dry_run"`
	Decisions     []DecisionOutput `json:"decisions"`
	Summary       map[string]int   `json:"summary"`
}

// BudgetInput is empty.
type BudgetInput struct{}

// UsageInput defines parameters for pmguard_record_usage.
type UsageInput struct {
	Model            string  `json:"model" jsonschema:"model identifier"`
	Operation        string  `json:"operation" jsonschema:"what the call was for, e.g. triage"`
	InputTokens      int64   `json:"input_tokens,omitempty"`
	OutputTokens     int64   `json:"output_tokens,omitempty"`
	CacheReadTokens  int64   `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens int64   `json:"cache_write_tokens,omitempty"`
	CostUSD          float64 `json:"cost_usd" jsonschema:"cost of the call in USD"`
}

// BudgetOutput describes spend and the active degradation policy.
type BudgetOutput struct {
	Budget          budget.State `json:"budget"`
	Label           string       `json:"label"`
	LLMAllowed      bool         `json:"llm_allowed"`
	SkipLowPriority bool         `json:"skip_low_priority"`
	BatchSignals    bool         `json:"batch_signals"`
	PollingInterval string       `json:"polling_interval"`
	AtHardCeiling   bool         `json:"at_hard_ceiling"`
}

// ConfidenceInput defines parameters for pmguard_confidence.
type ConfidenceInput struct {
	ActionType    string                 `json:"action_type,omitempty" jsonschema:"proposed external action, if any; checked at the configured level"`
	Summary       string                 `json:"summary" jsonschema:"one-line summary of the proposed output"`
	SourceSignals []string               `json:"source_signals,omitempty" jsonschema:"normalised conclusion of each independent source"`
	Schema        confidence.SchemaCheck `json:"schema" jsonschema:"artefact schema validation verdict"`
	Precedents    []string               `json:"precedents,omitempty" jsonschema:"summaries of previously accepted outputs"`
}

// ConfidenceOutput is the gate verdict.
type ConfidenceOutput struct {
	Pass            bool             `json:"pass"`
	Score           confidence.Score `json:"score"`
	BlockingReasons []string         `json:"blocking_reasons,omitempty"`
}

// CatalogInput is empty.
type CatalogInput struct{}

// CatalogEntry describes one action type.
type CatalogEntry struct {
	ActionType   string `json:"action_type"`
	Category     string `json:"category"`
	MinimumLevel string `json:"minimum_level,omitempty"`
	Allowed      bool   `json:"allowed_at_configured_level"`
}

// CatalogOutput lists the boundary catalog.
type CatalogOutput struct {
	AutonomyLevel string         `json:"autonomy_level"`
	Actions       []CatalogEntry `json:"actions"`
}

// --- Handlers ---

func (s *Server) handleValidate(ctx context.Context, req *mcpsdk.CallToolRequest, input ValidateInput) (*mcpsdk.CallToolResult, ValidateOutput, error) {
	cfg, _, _ := s.snapshot()
	level := cfg.AutonomyLevel
	if input.AutonomyLevel != "" {
		parsed, err := autonomy.ParseLevel(input.AutonomyLevel)
		if err != nil {
			return nil, ValidateOutput{}, err
		}
		level = parsed
	}

	action := model.ActionType(input.ActionType)
	v := boundary.Validate(action, level)
	out := ValidateOutput{
		Allowed:           v.Allowed,
		Category:          string(v.Category),
		RequiresHoldQueue: v.RequiresHoldQueue,
		RequiresApproval:  v.RequiresApproval,
		Reason:            v.Reason,
		AutonomyLevel:     level.String(),
	}
	if min, ok := autonomy.MinimumLevel(action); ok {
		out.MinimumLevel = min.String()
	}
	return nil, out, nil
}

func (s *Server) handlePreview(ctx context.Context, req *mcpsdk.CallToolRequest, input ActionsInput) (*mcpsdk.CallToolResult, DecisionsOutput, error) {
	return s.runActions(ctx, input, true)
}

func (s *Server) handleExecute(ctx context.Context, req *mcpsdk.CallToolRequest, input ActionsInput) (*mcpsdk.CallToolResult, DecisionsOutput, error) {
	return s.runActions(ctx, input, false)
}

// runActions always evaluates at the configured level. Agents cannot raise
// their own autonomy through a tool argument.
func (s *Server) runActions(ctx context.Context, input ActionsInput, dryRun bool) (*mcpsdk.CallToolResult, DecisionsOutput, error) {
	c, cfg, err := s.startCycle(ctx)
	if err != nil {
		return nil, DecisionsOutput{}, err
	}

	proposals := make([]cycle.Proposal, 0, len(input.Actions))
	for _, a := range input.Actions {
		// The boundary dimension is always recomputed from the catalog.
		if a.Confidence != nil {
			in := *a.Confidence
			in.Boundary = nil
			a.Confidence = &in
		}
		proposals = append(proposals, cycle.Proposal{
			Input: orchestrator.Input{
				ActionType:  model.ActionType(a.ActionType),
				Description: a.Description,
				Details:     a.Details,
			},
			LLMDerived: agentDerived(model.ActionType(a.ActionType), a.LLMDerived),
			Confidence: a.Confidence,
		})
	}

	decisions, err := c.Execute(ctx, proposals, cfg.AutonomyLevel, dryRun)
	if err != nil {
		return nil, DecisionsOutput{}, err
	}

	out := DecisionsOutput{
		CycleID:       c.ID(),
		AutonomyLevel: cfg.AutonomyLevel.String(),
		DryRun:        dryRun,
		Decisions:     make([]DecisionOutput, 0, len(decisions)),
		Summary:       map[string]int{},
	}
	failed := false
	for _, d := range decisions {
		out.Decisions = append(out.Decisions, decisionOutput(d))
		out.Summary[string(d.Outcome)]++
		if !d.Success {
			failed = true
		}
	}
	if failed && !dryRun {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

// agentDerived reports whether a tool-supplied proposal counts as
// LLM-derived. The agent is the author of every proposal, so only the
// deterministic heartbeat may be exempted, and only if not flagged.
func agentDerived(action model.ActionType, flagged bool) bool {
	return flagged || action != model.ActionHeartbeatLog
}

func decisionOutput(d cycle.Decision) DecisionOutput {
	out := DecisionOutput{
		ActionType:         string(d.ActionType),
		Outcome:            string(d.Outcome),
		Success:            d.Success,
		Held:               d.Held,
		EscalationRequired: d.EscalationRequired,
		Category:           string(d.Category),
		Reason:             d.Reason,
		DryRun:             d.DryRun,
		BlockingReasons:    d.BlockingReasons,
	}
	if d.HeldUntil != nil {
		out.HeldUntil = d.HeldUntil.UTC().Format(time.RFC3339)
	}
	if d.Preview != nil {
		out.WouldExecute = d.Preview.WouldExecute
		out.WouldHold = d.Preview.WouldHold
		out.WouldRequireApproval = d.Preview.WouldRequireApproval
	}
	return out
}

func (s *Server) handleBudget(ctx context.Context, req *mcpsdk.CallToolRequest, input BudgetInput) (*mcpsdk.CallToolResult, BudgetOutput, error) {
	c, _, err := s.startCycle(ctx)
	if err != nil {
		return nil, BudgetOutput{}, err
	}
	return nil, budgetOutput(c), nil
}

func (s *Server) handleRecordUsage(ctx context.Context, req *mcpsdk.CallToolRequest, input UsageInput) (*mcpsdk.CallToolResult, BudgetOutput, error) {
	if input.CostUSD < 0 {
		return nil, BudgetOutput{}, fmt.Errorf("cost_usd must be >= 0, got %g", input.CostUSD)
	}
	c, _, err := s.startCycle(ctx)
	if err != nil {
		return nil, BudgetOutput{}, err
	}
	usage := budget.Usage{
		InputTokens:      input.InputTokens,
		OutputTokens:     input.OutputTokens,
		CacheReadTokens:  input.CacheReadTokens,
		CacheWriteTokens: input.CacheWriteTokens,
		CostUSD:          input.CostUSD,
	}
	if err := c.RecordUsage(ctx, usage, input.Operation, input.Model); err != nil {
		return nil, BudgetOutput{}, err
	}
	return nil, budgetOutput(c), nil
}

func budgetOutput(c *cycle.Cycle) BudgetOutput {
	state := c.Budget()
	deg := budget.ConfigForTier(state.DegradationTier)
	return BudgetOutput{
		Budget:          state,
		Label:           deg.Label,
		LLMAllowed:      deg.LLMAllowed,
		SkipLowPriority: deg.SkipLowPriority,
		BatchSignals:    deg.BatchSignals,
		PollingInterval: deg.PollingInterval.String(),
		AtHardCeiling:   state.DailySpend >= state.DailyLimit,
	}
}

func (s *Server) handleConfidence(ctx context.Context, req *mcpsdk.CallToolRequest, input ConfidenceInput) (*mcpsdk.CallToolResult, ConfidenceOutput, error) {
	cfg, _, _ := s.snapshot()
	in := confidence.Input{
		Summary:       input.Summary,
		SourceSignals: input.SourceSignals,
		Schema:        input.Schema,
		Precedents:    input.Precedents,
	}
	if input.ActionType != "" {
		v := boundary.Validate(model.ActionType(input.ActionType), cfg.AutonomyLevel)
		in.Boundary = &v
	}
	score := confidence.Compute(in, cfg.Confidence)
	return nil, ConfidenceOutput{
		Pass:            confidence.Check(score),
		Score:           score,
		BlockingReasons: confidence.BlockingReasons(score),
	}, nil
}

func (s *Server) handleCatalog(ctx context.Context, req *mcpsdk.CallToolRequest, input CatalogInput) (*mcpsdk.CallToolResult, CatalogOutput, error) {
	cfg, _, _ := s.snapshot()
	out := CatalogOutput{AutonomyLevel: cfg.AutonomyLevel.String()}
	for _, a := range model.KnownActionTypes {
		category, _ := boundary.Category(a)
		entry := CatalogEntry{
			ActionType: string(a),
			Category:   string(category),
			Allowed:    boundary.Validate(a, cfg.AutonomyLevel).Allowed,
		}
		if min, ok := autonomy.MinimumLevel(a); ok {
			entry.MinimumLevel = min.String()
		}
		out.Actions = append(out.Actions, entry)
	}
	sort.SliceStable(out.Actions, func(i, j int) bool {
		return model.BoundaryCategory(out.Actions[i].Category).Rank() < model.BoundaryCategory(out.Actions[j].Category).Rank()
	})
	return nil, out, nil
}
