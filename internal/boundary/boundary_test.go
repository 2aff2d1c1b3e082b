package boundary

import (
	"strings"
	"testing"

	"github.com/ppiankov/pmguard/internal/autonomy"
	"github.com/ppiankov/pmguard/internal/model"
)

func TestEveryDeclaredActionIsClassified(t *testing.T) {
	for _, a := range model.KnownActionTypes {
		if !Known(a) {
			t.Errorf("action type %q is declared but not classified", a)
		}
	}
	if len(catalog) != len(model.KnownActionTypes) {
		t.Errorf("catalog has %d entries, %d action types declared", len(catalog), len(model.KnownActionTypes))
	}
}

func TestCategoriesAreDisjoint(t *testing.T) {
	for _, a := range model.KnownActionTypes {
		hits := 0
		for _, member := range []func(model.ActionType) bool{IsAutoExecute, RequiresHoldQueue, RequiresApproval, IsNeverDo} {
			if member(a) {
				hits++
			}
		}
		if hits != 1 {
			t.Errorf("%s belongs to %d categories, want exactly 1", a, hits)
		}
	}
}

func TestActionsInCoversCatalog(t *testing.T) {
	total := 0
	for _, c := range model.Categories {
		total += len(ActionsIn(c))
	}
	if total != len(model.KnownActionTypes) {
		t.Errorf("ActionsIn covers %d actions, want %d", total, len(model.KnownActionTypes))
	}
	if got := ActionsIn(model.CategoryNeverDo); len(got) != 4 {
		t.Errorf("expected 4 neverDo actions, got %v", got)
	}
}

func TestAllowListsOnlyContainExecutableCategories(t *testing.T) {
	for _, a := range autonomy.AllowedActions(autonomy.Tactical) {
		c, _ := Category(a)
		if c != model.CategoryAutoExecute && c != model.CategoryRequireHoldQueue {
			t.Errorf("allow-list contains %s with category %s", a, c)
		}
	}
}

func TestNeverDoBlockedAtEveryLevel(t *testing.T) {
	for _, a := range ActionsIn(model.CategoryNeverDo) {
		for _, level := range autonomy.Levels {
			r := Validate(a, level)
			if r.Allowed {
				t.Errorf("Validate(%s, %s) allowed a neverDo action", a, level)
			}
			if r.Category != model.CategoryNeverDo {
				t.Errorf("Validate(%s, %s) category = %s, want neverDo", a, level, r.Category)
			}
			if !strings.Contains(r.Reason, "prohibited") || !strings.Contains(r.Reason, string(a)) {
				t.Errorf("Validate(%s, %s) reason = %q", a, level, r.Reason)
			}
		}
	}
}

func TestRequireApprovalNeverUnlockedByLevel(t *testing.T) {
	for _, a := range ActionsIn(model.CategoryRequireApproval) {
		for _, level := range autonomy.Levels {
			r := Validate(a, level)
			if r.Allowed || !r.RequiresApproval {
				t.Errorf("Validate(%s, %s) = %+v, want approval-gated rejection", a, level, r)
			}
			if r.Reason != string(a)+" requires explicit user approval" {
				t.Errorf("unexpected reason %q", r.Reason)
			}
		}
	}
}

func TestValidateScenarios(t *testing.T) {
	tests := []struct {
		name     string
		action   model.ActionType
		level    autonomy.Level
		allowed  bool
		category model.BoundaryCategory
		hold     bool
		approval bool
		reason   string
	}{
		{
			name: "heartbeat at monitoring", action: "heartbeat_log", level: autonomy.Monitoring,
			allowed: true, category: model.CategoryAutoExecute,
		},
		{
			name: "stakeholder email below tactical", action: "email_stakeholder", level: autonomy.Artefact,
			allowed: false, category: model.CategoryRequireHoldQueue,
			reason: "email_stakeholder is not permitted at autonomy level 'artefact'",
		},
		{
			name: "delete data at tactical", action: "delete_data", level: autonomy.Tactical,
			allowed: false, category: model.CategoryNeverDo,
			reason: "delete_data is prohibited and can never be executed",
		},
		{
			name: "status change at tactical", action: "jira_status_change", level: autonomy.Tactical,
			allowed: true, category: model.CategoryRequireHoldQueue, hold: true,
		},
		{
			name: "artefact update at artefact", action: "artefact_update", level: autonomy.Artefact,
			allowed: true, category: model.CategoryAutoExecute,
		},
		{
			name: "external email at tactical", action: "email_external", level: autonomy.Tactical,
			allowed: false, category: model.CategoryRequireApproval, approval: true,
			reason: "email_external requires explicit user approval",
		},
		{
			name: "unknown action", action: "launch_rocket", level: autonomy.Tactical,
			allowed: false, category: model.CategoryNone,
			reason: "launch_rocket is not permitted at autonomy level 'tactical'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Validate(tt.action, tt.level)
			if r.Allowed != tt.allowed {
				t.Errorf("allowed = %v, want %v", r.Allowed, tt.allowed)
			}
			if r.Category != tt.category {
				t.Errorf("category = %q, want %q", r.Category, tt.category)
			}
			if r.RequiresHoldQueue != tt.hold {
				t.Errorf("requiresHoldQueue = %v, want %v", r.RequiresHoldQueue, tt.hold)
			}
			if r.RequiresApproval != tt.approval {
				t.Errorf("requiresApproval = %v, want %v", r.RequiresApproval, tt.approval)
			}
			if r.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", r.Reason, tt.reason)
			}
		})
	}
}

func TestNearMissStringsAreUnknown(t *testing.T) {
	nearMisses := []model.ActionType{
		"",
		" ",
		"\t",
		"Heartbeat_Log",
		"HEARTBEAT_LOG",
		" heartbeat_log",
		"heartbeat_log ",
		"heartbeat-log",
		"heartbeatlog",
		"heartbeat_log\n",
		"artifact_update",
	}
	for _, a := range nearMisses {
		if Known(a) {
			t.Errorf("%q should not be known", a)
		}
		r := Validate(a, autonomy.Tactical)
		if r.Allowed {
			t.Errorf("Validate(%q) allowed a near-miss action type", a)
		}
		if !strings.Contains(r.Reason, "not permitted at autonomy level") {
			t.Errorf("Validate(%q) reason = %q", a, r.Reason)
		}
	}
}

func TestValidationResultInvariants(t *testing.T) {
	candidates := append([]model.ActionType{"", "unknown"}, model.KnownActionTypes...)
	levels := []autonomy.Level{autonomy.Monitoring, autonomy.Artefact, autonomy.Tactical, autonomy.Level(5)}
	for _, a := range candidates {
		for _, level := range levels {
			r := Validate(a, level)
			if r.Category == model.CategoryNeverDo && (r.Allowed || r.Reason == "") {
				t.Errorf("neverDo invariant broken for %s/%s: %+v", a, level, r)
			}
			if r.Allowed && r.Reason != "" {
				t.Errorf("allowed result carries a reason for %s/%s: %+v", a, level, r)
			}
			if !r.Allowed && r.Reason == "" {
				t.Errorf("rejection without reason for %s/%s", a, level)
			}
		}
	}
}
