package model

// ActionType identifies a kind of agent action. Values are compared
// exactly: "Delete_Data" and " delete_data" are unknown action types.
type ActionType string

// Known action types. Every constant declared here must be classified in
// the boundary catalog.
const (
	ActionHeartbeatLog         ActionType = "heartbeat_log"
	ActionArtefactUpdate       ActionType = "artefact_update"
	ActionNotificationInternal ActionType = "notification_internal"
	ActionJiraComment          ActionType = "jira_comment"

	ActionEmailStakeholder ActionType = "email_stakeholder"
	ActionJiraStatusChange ActionType = "jira_status_change"

	ActionEmailExternal    ActionType = "email_external"
	ActionJiraCreateTicket ActionType = "jira_create_ticket"
	ActionScopeChange      ActionType = "scope_change"
	ActionMilestoneChange  ActionType = "milestone_change"

	ActionDeleteData              ActionType = "delete_data"
	ActionShareConfidential       ActionType = "share_confidential"
	ActionModifyIntegrationConfig ActionType = "modify_integration_config"
	ActionChangeOwnAutonomyLevel  ActionType = "change_own_autonomy_level"
)

// KnownActionTypes lists every declared action type in catalog order.
var KnownActionTypes = []ActionType{
	ActionHeartbeatLog,
	ActionArtefactUpdate,
	ActionNotificationInternal,
	ActionJiraComment,
	ActionEmailStakeholder,
	ActionJiraStatusChange,
	ActionEmailExternal,
	ActionJiraCreateTicket,
	ActionScopeChange,
	ActionMilestoneChange,
	ActionDeleteData,
	ActionShareConfidential,
	ActionModifyIntegrationConfig,
	ActionChangeOwnAutonomyLevel,
}

// ValidationResult is the outcome of validating one action type against an
// autonomy level.
//
// Invariants: Category == CategoryNeverDo implies !Allowed and a non-empty
// Reason; Allowed implies an empty Reason.
type ValidationResult struct {
	Allowed           bool             `json:"allowed"`
	Category          BoundaryCategory `json:"category,omitempty"`
	RequiresHoldQueue bool             `json:"requires_hold_queue"`
	RequiresApproval  bool             `json:"requires_approval"`
	Reason            string           `json:"reason,omitempty"`
}
