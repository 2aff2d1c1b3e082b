package orchestrator

import (
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/pmguard/internal/autonomy"
	"github.com/ppiankov/pmguard/internal/model"
)

var fixedNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestOrchestrator() *Orchestrator {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func TestExecuteActionOutcomes(t *testing.T) {
	o := newTestOrchestrator()
	tests := []struct {
		action  model.ActionType
		level   autonomy.Level
		outcome Outcome
		success bool
		held    bool
	}{
		{model.ActionHeartbeatLog, autonomy.Monitoring, OutcomeAutoExecuted, true, false},
		{model.ActionArtefactUpdate, autonomy.Monitoring, OutcomeRejected, false, false},
		{model.ActionArtefactUpdate, autonomy.Artefact, OutcomeAutoExecuted, true, false},
		{model.ActionJiraComment, autonomy.Tactical, OutcomeAutoExecuted, true, false},
		{model.ActionEmailStakeholder, autonomy.Artefact, OutcomeRejected, false, false},
		{model.ActionEmailStakeholder, autonomy.Tactical, OutcomeHeld, true, true},
		{model.ActionJiraStatusChange, autonomy.Tactical, OutcomeHeld, true, true},
		{model.ActionEmailExternal, autonomy.Monitoring, OutcomeEscalated, true, true},
		{model.ActionScopeChange, autonomy.Tactical, OutcomeEscalated, true, true},
		{model.ActionDeleteData, autonomy.Tactical, OutcomeProhibited, false, false},
		{model.ActionChangeOwnAutonomyLevel, autonomy.Monitoring, OutcomeProhibited, false, false},
		{"launch_rockets", autonomy.Tactical, OutcomeRejected, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.action)+"@"+tt.level.String(), func(t *testing.T) {
			r := o.ExecuteAction(Input{ActionType: tt.action}, Config{AutonomyLevel: tt.level})
			if r.Outcome != tt.outcome || r.Success != tt.success || r.Held != tt.held {
				t.Errorf("got outcome=%s success=%v held=%v, want %s %v %v",
					r.Outcome, r.Success, r.Held, tt.outcome, tt.success, tt.held)
			}
			if r.DryRun || r.Preview != nil {
				t.Error("real-mode result must not carry preview")
			}
			if r.ActionType != tt.action {
				t.Errorf("action type not echoed: %s", r.ActionType)
			}
		})
	}
}

func TestJiraStatusChangeHeldThirtyMinutes(t *testing.T) {
	r := newTestOrchestrator().ExecuteAction(
		Input{ActionType: model.ActionJiraStatusChange},
		Config{AutonomyLevel: autonomy.Tactical, HoldQueueMinutes: 30},
	)
	if !r.Held || r.HeldUntil == nil {
		t.Fatalf("expected held result, got %+v", r)
	}
	if want := fixedNow.Add(30 * time.Minute); !r.HeldUntil.Equal(want) {
		t.Errorf("heldUntil = %s, want %s", r.HeldUntil, want)
	}
	if r.Reason == "" {
		t.Error("held result must carry a reason")
	}
}

func TestHoldWindowDefaultAndCustom(t *testing.T) {
	o := newTestOrchestrator()
	in := Input{ActionType: model.ActionEmailStakeholder}

	r := o.ExecuteAction(in, Config{AutonomyLevel: autonomy.Tactical})
	if !r.HeldUntil.Equal(fixedNow.Add(DefaultHoldQueueMinutes * time.Minute)) {
		t.Errorf("default window: %s", r.HeldUntil)
	}
	r = o.ExecuteAction(in, Config{AutonomyLevel: autonomy.Tactical, HoldQueueMinutes: 5})
	if !r.HeldUntil.Equal(fixedNow.Add(5 * time.Minute)) {
		t.Errorf("custom window: %s", r.HeldUntil)
	}
}

func TestRealResultInvariants(t *testing.T) {
	o := newTestOrchestrator()
	actions := append([]model.ActionType{"unknown_action"}, model.KnownActionTypes...)
	for _, level := range autonomy.Levels {
		for _, a := range actions {
			r := o.ExecuteAction(Input{ActionType: a}, Config{AutonomyLevel: level})
			if r.Outcome == OutcomeHeld && r.HeldUntil == nil {
				t.Errorf("%s@%s held without deadline", a, level)
			}
			if r.Outcome == OutcomeEscalated && !r.EscalationRequired {
				t.Errorf("%s@%s escalated without flag", a, level)
			}
			if (r.Outcome == OutcomeEscalated || r.Outcome == OutcomeRejected || r.Outcome == OutcomeProhibited) && r.Reason == "" {
				t.Errorf("%s@%s %s without reason", a, level, r.Outcome)
			}
			if r.Outcome == OutcomePreviewedOnly {
				t.Errorf("%s@%s previewed in real mode", a, level)
			}
		}
	}
}

func TestRejectionReasonNamesAction(t *testing.T) {
	r := newTestOrchestrator().ExecuteAction(Input{ActionType: model.ActionEmailStakeholder}, Config{AutonomyLevel: autonomy.Artefact})
	if !strings.Contains(r.Reason, "email_stakeholder") || !strings.Contains(r.Reason, "not permitted at autonomy level") {
		t.Errorf("unexpected reason: %s", r.Reason)
	}
}

func TestDryRunOutcomes(t *testing.T) {
	o := newTestOrchestrator()
	tests := []struct {
		action  model.ActionType
		outcome Outcome
		preview Preview
	}{
		{model.ActionHeartbeatLog, OutcomePreviewedOnly, Preview{WouldExecute: true}},
		{model.ActionJiraStatusChange, OutcomePreviewedOnly, Preview{WouldHold: true}},
		{model.ActionEmailExternal, OutcomeEscalated, Preview{WouldRequireApproval: true}},
		{model.ActionDeleteData, OutcomeProhibited, Preview{}},
		{"unknown_action", OutcomeRejected, Preview{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			r := o.ExecuteAction(Input{ActionType: tt.action}, Config{AutonomyLevel: autonomy.Tactical, DryRun: true})
			if r.Outcome != tt.outcome {
				t.Errorf("outcome = %s, want %s", r.Outcome, tt.outcome)
			}
			if !r.DryRun || r.Preview == nil {
				t.Fatalf("dry-run result missing preview: %+v", r)
			}
			if *r.Preview != tt.preview {
				t.Errorf("preview = %+v, want %+v", *r.Preview, tt.preview)
			}
			if r.Held || r.HeldUntil != nil {
				t.Error("dry-run must never hold")
			}
		})
	}
}

func TestExecuteActionsFailFast(t *testing.T) {
	inputs := []Input{
		{ActionType: model.ActionHeartbeatLog},
		{ActionType: model.ActionDeleteData},
		{ActionType: model.ActionArtefactUpdate},
	}
	results := newTestOrchestrator().ExecuteActions(inputs, Config{AutonomyLevel: autonomy.Tactical})
	if len(results) != 2 {
		t.Fatalf("expected halt after 2 results, got %d", len(results))
	}
	if results[1].Outcome != OutcomeProhibited {
		t.Errorf("second result = %s", results[1].Outcome)
	}
}

func TestExecuteActionsContinuesPastEscalation(t *testing.T) {
	inputs := []Input{
		{ActionType: model.ActionEmailExternal},
		{ActionType: model.ActionJiraComment},
	}
	results := newTestOrchestrator().ExecuteActions(inputs, Config{AutonomyLevel: autonomy.Tactical})
	if len(results) != 2 {
		t.Fatalf("escalation is not a failure, got %d results", len(results))
	}
}

func TestDryRunProcessesWholeBatch(t *testing.T) {
	inputs := []Input{
		{ActionType: model.ActionDeleteData},
		{ActionType: "nope"},
		{ActionType: model.ActionHeartbeatLog},
	}
	results := newTestOrchestrator().ExecuteActions(inputs, Config{AutonomyLevel: autonomy.Monitoring, DryRun: true})
	if len(results) != len(inputs) {
		t.Fatalf("dry-run must report every input, got %d", len(results))
	}
	for i, r := range results {
		if r.ActionType != inputs[i].ActionType {
			t.Errorf("order not preserved at %d", i)
		}
	}
}

func TestPreviewActionsForcesDryRun(t *testing.T) {
	results := newTestOrchestrator().PreviewActions([]Input{
		{ActionType: model.ActionJiraStatusChange},
		{ActionType: model.ActionDeleteData},
		{ActionType: model.ActionJiraComment},
	}, autonomy.Tactical)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.DryRun || r.Held || r.HeldUntil != nil {
			t.Errorf("preview mutated state: %+v", r)
		}
	}
}

func TestSummary(t *testing.T) {
	results := newTestOrchestrator().PreviewActions([]Input{
		{ActionType: model.ActionHeartbeatLog},
		{ActionType: model.ActionJiraComment},
		{ActionType: model.ActionDeleteData},
	}, autonomy.Tactical)
	s := Summary(results)
	if s[OutcomePreviewedOnly] != 2 || s[OutcomeProhibited] != 1 {
		t.Errorf("summary = %v", s)
	}
}
