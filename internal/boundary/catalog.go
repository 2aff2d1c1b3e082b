package boundary

import "github.com/ppiankov/pmguard/internal/model"

// catalog is the single classification of every known action type.
// Lookups are exact map hits; there is no normalisation step.
var catalog = map[model.ActionType]model.BoundaryCategory{
	model.ActionHeartbeatLog:         model.CategoryAutoExecute,
	model.ActionArtefactUpdate:       model.CategoryAutoExecute,
	model.ActionNotificationInternal: model.CategoryAutoExecute,
	model.ActionJiraComment:          model.CategoryAutoExecute,

	model.ActionEmailStakeholder: model.CategoryRequireHoldQueue,
	model.ActionJiraStatusChange: model.CategoryRequireHoldQueue,

	model.ActionEmailExternal:    model.CategoryRequireApproval,
	model.ActionJiraCreateTicket: model.CategoryRequireApproval,
	model.ActionScopeChange:      model.CategoryRequireApproval,
	model.ActionMilestoneChange:  model.CategoryRequireApproval,

	model.ActionDeleteData:              model.CategoryNeverDo,
	model.ActionShareConfidential:       model.CategoryNeverDo,
	model.ActionModifyIntegrationConfig: model.CategoryNeverDo,
	model.ActionChangeOwnAutonomyLevel:  model.CategoryNeverDo,
}

// Category returns the boundary category of actionType, or false if the
// action type is not classified.
func Category(actionType model.ActionType) (model.BoundaryCategory, bool) {
	c, ok := catalog[actionType]
	return c, ok
}

// Known reports whether actionType is classified.
func Known(actionType model.ActionType) bool {
	_, ok := catalog[actionType]
	return ok
}

// IsAutoExecute reports membership in the autoExecute category.
func IsAutoExecute(actionType model.ActionType) bool {
	return catalog[actionType] == model.CategoryAutoExecute
}

// RequiresHoldQueue reports membership in the requireHoldQueue category.
func RequiresHoldQueue(actionType model.ActionType) bool {
	return catalog[actionType] == model.CategoryRequireHoldQueue
}

// RequiresApproval reports membership in the requireApproval category.
func RequiresApproval(actionType model.ActionType) bool {
	return catalog[actionType] == model.CategoryRequireApproval
}

// IsNeverDo reports membership in the neverDo category.
func IsNeverDo(actionType model.ActionType) bool {
	return catalog[actionType] == model.CategoryNeverDo
}

// ActionsIn lists the action types of one category in declaration order.
func ActionsIn(category model.BoundaryCategory) []model.ActionType {
	var out []model.ActionType
	for _, a := range model.KnownActionTypes {
		if catalog[a] == category {
			out = append(out, a)
		}
	}
	return out
}
