// Package confidence scores a proposed cycle output before it is allowed to
// act. Four independent dimensions must all pass; any failure blocks.
package confidence

import (
	"fmt"
	"strings"

	"github.com/ppiankov/pmguard/internal/model"
)

// Dimension names, in reporting order.
const (
	DimensionSourceAgreement    = "sourceAgreement"
	DimensionBoundaryCompliance = "boundaryCompliance"
	DimensionSchemaValidity     = "schemaValidity"
	DimensionPrecedentMatch     = "precedentMatch"
)

// Thresholds are the pass marks for the graded dimensions.
type Thresholds struct {
	MinSourceAgreement     float64 `yaml:"min_source_agreement" json:"min_source_agreement"`
	MinPrecedentSimilarity float64 `yaml:"min_precedent_similarity" json:"min_precedent_similarity"`
}

// DefaultThresholds returns the stock pass marks.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSourceAgreement:     0.66,
		MinPrecedentSimilarity: 0.5,
	}
}

// SchemaCheck is the verdict of the artefact schema validator.
type SchemaCheck struct {
	Checked bool     `json:"checked"`
	Errors  []string `json:"errors,omitempty"`
}

// Input is everything the gate looks at. Boundary is nil when the output
// proposes no external action.
type Input struct {
	Summary       string                  `json:"summary"`
	SourceSignals []string                `json:"source_signals,omitempty"`
	Boundary      *model.ValidationResult `json:"boundary,omitempty"`
	Schema        SchemaCheck             `json:"schema"`
	Precedents    []string                `json:"precedents,omitempty"`
}

// Dimension is one scored aspect of the output.
type Dimension struct {
	Pass     bool    `json:"pass"`
	Score    float64 `json:"score"`
	Evidence string  `json:"evidence"`
}

// Score holds all four dimensions.
type Score struct {
	SourceAgreement    Dimension `json:"source_agreement"`
	BoundaryCompliance Dimension `json:"boundary_compliance"`
	SchemaValidity     Dimension `json:"schema_validity"`
	PrecedentMatch     Dimension `json:"precedent_match"`
}

// Compute scores the input. It never consults the boundary catalog itself.
func Compute(in Input, th Thresholds) Score {
	return Score{
		SourceAgreement:    sourceAgreement(in.SourceSignals, th.MinSourceAgreement),
		BoundaryCompliance: boundaryCompliance(in.Boundary),
		SchemaValidity:     schemaValidity(in.Schema),
		PrecedentMatch:     precedentMatch(in.Summary, in.Precedents, th.MinPrecedentSimilarity),
	}
}

// Check reports whether every dimension passed.
func Check(s Score) bool {
	for _, d := range s.dimensions() {
		if !d.dim.Pass {
			return false
		}
	}
	return true
}

// BlockingReasons lists "<dimension>: <evidence>" for each failing dimension.
func BlockingReasons(s Score) []string {
	var reasons []string
	for _, d := range s.dimensions() {
		if !d.dim.Pass {
			reasons = append(reasons, fmt.Sprintf("%s: %s", d.name, d.dim.Evidence))
		}
	}
	return reasons
}

// Format renders the score for humans.
func Format(s Score) string {
	var b strings.Builder
	verdict := "PASS"
	if !Check(s) {
		verdict = "BLOCKED"
	}
	fmt.Fprintf(&b, "Confidence: %s\n", verdict)
	for _, d := range s.dimensions() {
		mark := "ok  "
		if !d.dim.Pass {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "  [%s] %-19s %.2f  %s\n", mark, d.name, d.dim.Score, d.dim.Evidence)
	}
	return b.String()
}

type namedDimension struct {
	name string
	dim  Dimension
}

func (s Score) dimensions() []namedDimension {
	return []namedDimension{
		{DimensionSourceAgreement, s.SourceAgreement},
		{DimensionBoundaryCompliance, s.BoundaryCompliance},
		{DimensionSchemaValidity, s.SchemaValidity},
		{DimensionPrecedentMatch, s.PrecedentMatch},
	}
}

func sourceAgreement(signals []string, min float64) Dimension {
	if len(signals) == 0 {
		return Dimension{Evidence: "no source signals"}
	}

	counts := make(map[string]int)
	for _, s := range signals {
		counts[s]++
	}
	best, bestCount := "", 0
	for k, n := range counts {
		if n > bestCount || (n == bestCount && k < best) {
			best, bestCount = k, n
		}
	}

	score := float64(bestCount) / float64(len(signals))
	return Dimension{
		Pass:     score >= min,
		Score:    score,
		Evidence: fmt.Sprintf("%d of %d sources agree on %q", bestCount, len(signals), best),
	}
}

func boundaryCompliance(v *model.ValidationResult) Dimension {
	if v == nil {
		return Dimension{Pass: true, Score: 1, Evidence: "no external action proposed"}
	}
	if v.Allowed {
		return Dimension{Pass: true, Score: 1, Evidence: fmt.Sprintf("action allowed (%s)", v.Category)}
	}
	reason := v.Reason
	if reason == "" {
		reason = "action not allowed"
	}
	return Dimension{Evidence: reason}
}

func schemaValidity(sc SchemaCheck) Dimension {
	switch {
	case !sc.Checked:
		return Dimension{Evidence: "schema not validated"}
	case len(sc.Errors) > 0:
		return Dimension{Evidence: fmt.Sprintf("%d schema error(s): %s", len(sc.Errors), strings.Join(sc.Errors, "; "))}
	default:
		return Dimension{Pass: true, Score: 1, Evidence: "schema valid"}
	}
}

func precedentMatch(summary string, precedents []string, min float64) Dimension {
	if len(precedents) == 0 {
		return Dimension{Evidence: "no precedents available"}
	}

	want := tokenSet(summary)
	best, bestIdx := 0.0, -1
	for i, p := range precedents {
		if sim := Jaccard(want, tokenSet(p)); sim > best || bestIdx < 0 {
			best, bestIdx = sim, i
		}
	}

	return Dimension{
		Pass:     best >= min,
		Score:    best,
		Evidence: fmt.Sprintf("best precedent similarity %.2f (precedent #%d of %d)", best, bestIdx+1, len(precedents)),
	}
}

// Jaccard returns |a∩b| / |a∪b|. Two empty sets score 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
