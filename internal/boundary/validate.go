package boundary

import (
	"fmt"

	"github.com/ppiankov/pmguard/internal/autonomy"
	"github.com/ppiankov/pmguard/internal/model"
)

// Validate decides whether actionType may run at the given autonomy level.
//
// Evaluation order (must not be changed):
//  1. neverDo, regardless of level
//  2. requireApproval, regardless of level
//  3. level allow-list
//  4. everything else, unknown action types included, is rejected
func Validate(actionType model.ActionType, level autonomy.Level) model.ValidationResult {
	category, known := catalog[actionType]

	if known && category == model.CategoryNeverDo {
		return model.ValidationResult{
			Allowed:  false,
			Category: model.CategoryNeverDo,
			Reason:   fmt.Sprintf("%s is prohibited and can never be executed", actionType),
		}
	}

	if known && category == model.CategoryRequireApproval {
		return model.ValidationResult{
			Allowed:          false,
			Category:         model.CategoryRequireApproval,
			RequiresApproval: true,
			Reason:           fmt.Sprintf("%s requires explicit user approval", actionType),
		}
	}

	if known && autonomy.Permits(level, actionType) {
		return model.ValidationResult{
			Allowed:           true,
			Category:          category,
			RequiresHoldQueue: category == model.CategoryRequireHoldQueue,
		}
	}

	return model.ValidationResult{
		Allowed:  false,
		Category: category,
		Reason:   fmt.Sprintf("%s is not permitted at autonomy level '%s'", actionType, level),
	}
}
