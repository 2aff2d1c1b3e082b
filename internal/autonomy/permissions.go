package autonomy

import "github.com/ppiankov/pmguard/internal/model"

// unlocks holds the actions each level adds on top of the level below.
// The effective allow-list of a level is the union of its own unlocks and
// every lower level's, so privilege grows monotonically by construction.
var unlocks = map[Level][]model.ActionType{
	Monitoring: {
		model.ActionHeartbeatLog,
	},
	Artefact: {
		model.ActionArtefactUpdate,
		model.ActionNotificationInternal,
	},
	Tactical: {
		model.ActionJiraComment,
		model.ActionEmailStakeholder,
		model.ActionJiraStatusChange,
	},
}

// AllowedActions returns the allow-list for a level. The returned slice is
// a fresh copy; mutating it does not affect the permission model.
// Unknown levels allow nothing.
func AllowedActions(level Level) []model.ActionType {
	if !level.Valid() {
		return nil
	}
	var allowed []model.ActionType
	for _, l := range Levels {
		if l > level {
			break
		}
		allowed = append(allowed, unlocks[l]...)
	}
	return allowed
}

// Permits reports whether actionType is on the allow-list for level.
func Permits(level Level, actionType model.ActionType) bool {
	min, ok := MinimumLevel(actionType)
	if !ok || !level.Valid() {
		return false
	}
	return Compare(level, min) >= 0
}

// MinimumLevel returns the lowest level at which actionType is first
// permitted. Actions that no level unlocks (approval-gated, prohibited or
// unknown) return false.
func MinimumLevel(actionType model.ActionType) (Level, bool) {
	for _, l := range Levels {
		for _, a := range unlocks[l] {
			if a == actionType {
				return l, true
			}
		}
	}
	return 0, false
}
