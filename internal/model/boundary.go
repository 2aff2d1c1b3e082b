package model

// BoundaryCategory is the policy treatment assigned to an action type.
// Categories are disjoint: every known action type has exactly one.
type BoundaryCategory string

const (
	CategoryNone             BoundaryCategory = ""
	CategoryAutoExecute      BoundaryCategory = "autoExecute"
	CategoryRequireHoldQueue BoundaryCategory = "requireHoldQueue"
	CategoryRequireApproval  BoundaryCategory = "requireApproval"
	CategoryNeverDo          BoundaryCategory = "neverDo"
)

// Categories lists the four categories in escalating order of restriction.
var Categories = []BoundaryCategory{
	CategoryAutoExecute,
	CategoryRequireHoldQueue,
	CategoryRequireApproval,
	CategoryNeverDo,
}

func (c BoundaryCategory) String() string {
	if c == CategoryNone {
		return "unknown"
	}
	return string(c)
}

// Rank maps a category to a comparable restriction level (0..3).
// Unknown categories rank above neverDo so callers treat them as blocked.
func (c BoundaryCategory) Rank() int {
	switch c {
	case CategoryAutoExecute:
		return 0
	case CategoryRequireHoldQueue:
		return 1
	case CategoryRequireApproval:
		return 2
	case CategoryNeverDo:
		return 3
	default:
		return 4
	}
}
