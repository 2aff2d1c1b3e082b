package confidence

import (
	"math"
	"strings"
	"testing"

	"github.com/ppiankov/pmguard/internal/model"
)

func passingInput() Input {
	return Input{
		Summary:       "sprint 14 status green two risks closed",
		SourceSignals: []string{"green", "green", "green"},
		Schema:        SchemaCheck{Checked: true},
		Precedents:    []string{"sprint 13 status green two risks closed"},
	}
}

func TestComputeAllPass(t *testing.T) {
	s := Compute(passingInput(), DefaultThresholds())
	if !Check(s) {
		t.Fatalf("expected pass, blocking: %v", BlockingReasons(s))
	}
	if len(BlockingReasons(s)) != 0 {
		t.Errorf("expected no blocking reasons")
	}
}

func TestSourceAgreement(t *testing.T) {
	tests := []struct {
		name    string
		signals []string
		score   float64
		pass    bool
	}{
		{"none", nil, 0, false},
		{"single", []string{"green"}, 1, true},
		{"unanimous", []string{"amber", "amber"}, 1, true},
		{"two of three", []string{"green", "green", "red"}, 2.0 / 3.0, true},
		{"split", []string{"green", "red"}, 0.5, false},
		{"three way", []string{"green", "red", "amber"}, 1.0 / 3.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sourceAgreement(tt.signals, 0.66)
			if d.Pass != tt.pass {
				t.Errorf("pass = %v, want %v (%s)", d.Pass, tt.pass, d.Evidence)
			}
			if math.Abs(d.Score-tt.score) > 1e-9 {
				t.Errorf("score = %f, want %f", d.Score, tt.score)
			}
		})
	}
}

func TestBoundaryComplianceNoAction(t *testing.T) {
	d := boundaryCompliance(nil)
	if !d.Pass || d.Evidence != "no external action proposed" {
		t.Errorf("unexpected dimension: %+v", d)
	}
}

func TestBoundaryComplianceRejected(t *testing.T) {
	in := passingInput()
	in.Boundary = &model.ValidationResult{
		Allowed:  false,
		Category: model.CategoryNeverDo,
		Reason:   "delete_data is prohibited and can never be executed",
	}
	s := Compute(in, DefaultThresholds())
	if Check(s) {
		t.Fatal("expected gate to block on prohibited action")
	}
	reasons := BlockingReasons(s)
	if len(reasons) != 1 || !strings.HasPrefix(reasons[0], "boundaryCompliance: delete_data is prohibited") {
		t.Errorf("unexpected reasons: %v", reasons)
	}
}

func TestBoundaryComplianceAllowed(t *testing.T) {
	in := passingInput()
	in.Boundary = &model.ValidationResult{Allowed: true, Category: model.CategoryAutoExecute}
	if s := Compute(in, DefaultThresholds()); !s.BoundaryCompliance.Pass {
		t.Errorf("expected allowed action to pass: %+v", s.BoundaryCompliance)
	}
}

func TestSchemaValidity(t *testing.T) {
	if d := schemaValidity(SchemaCheck{}); d.Pass {
		t.Error("unchecked schema must not pass")
	}
	d := schemaValidity(SchemaCheck{Checked: true, Errors: []string{"missing owner", "bad date"}})
	if d.Pass {
		t.Error("schema with errors must not pass")
	}
	if !strings.Contains(d.Evidence, "missing owner; bad date") {
		t.Errorf("evidence should list errors: %s", d.Evidence)
	}
	if d := schemaValidity(SchemaCheck{Checked: true}); !d.Pass {
		t.Error("clean schema must pass")
	}
}

func TestPrecedentMatch(t *testing.T) {
	if d := precedentMatch("anything", nil, 0.5); d.Pass {
		t.Error("no precedents must fail")
	}

	d := precedentMatch("Risk: vendor delay", []string{"totally unrelated text", "risk vendor delay"}, 0.5)
	if !d.Pass || d.Score != 1 {
		t.Errorf("expected exact token match to pass with score 1: %+v", d)
	}
	if !strings.Contains(d.Evidence, "#2 of 2") {
		t.Errorf("evidence should name best precedent: %s", d.Evidence)
	}

	d = precedentMatch("budget overrun", []string{"hiring plan"}, 0.5)
	if d.Pass || d.Score != 0 {
		t.Errorf("expected disjoint summary to fail: %+v", d)
	}
}

func TestJaccard(t *testing.T) {
	a := tokenSet("a b c")
	b := tokenSet("b c d")
	if got := Jaccard(a, b); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Jaccard = %f, want 0.5", got)
	}
	if got := Jaccard(tokenSet(""), tokenSet("")); got != 0 {
		t.Errorf("empty Jaccard = %f", got)
	}
}

func TestTokensNormalise(t *testing.T) {
	got := tokenSet("Sprint-14: GREEN, green!")
	if len(got) != 3 {
		t.Fatalf("tokenSet = %v", got)
	}
	for _, want := range []string{"sprint", "14", "green"} {
		if _, ok := got[want]; !ok {
			t.Errorf("tokenSet missing %q: %v", want, got)
		}
	}
}

func TestBlockingReasonsFixedOrder(t *testing.T) {
	s := Compute(Input{}, DefaultThresholds())
	reasons := BlockingReasons(s)
	want := []string{DimensionSourceAgreement, DimensionSchemaValidity, DimensionPrecedentMatch}
	if len(reasons) != len(want) {
		t.Fatalf("reasons = %v", reasons)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(reasons[i], prefix+": ") {
			t.Errorf("reason %d = %q, want prefix %q", i, reasons[i], prefix)
		}
	}
}

func TestAnySingleFailureBlocks(t *testing.T) {
	mutations := map[string]func(*Input){
		"sources":   func(in *Input) { in.SourceSignals = []string{"green", "red"} },
		"boundary":  func(in *Input) { in.Boundary = &model.ValidationResult{Reason: "no"} },
		"schema":    func(in *Input) { in.Schema.Errors = []string{"x"} },
		"precedent": func(in *Input) { in.Precedents = []string{"zzz"} },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := passingInput()
			mutate(&in)
			s := Compute(in, DefaultThresholds())
			if Check(s) {
				t.Error("expected block")
			}
			if len(BlockingReasons(s)) != 1 {
				t.Errorf("expected exactly one blocking reason, got %v", BlockingReasons(s))
			}
		})
	}
}

func TestFormat(t *testing.T) {
	out := Format(Compute(Input{}, DefaultThresholds()))
	if !strings.HasPrefix(out, "Confidence: BLOCKED") {
		t.Errorf("unexpected header: %q", out)
	}
	for _, name := range []string{DimensionSourceAgreement, DimensionBoundaryCompliance, DimensionSchemaValidity, DimensionPrecedentMatch} {
		if !strings.Contains(out, name) {
			t.Errorf("format missing %s", name)
		}
	}
}
