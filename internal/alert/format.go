package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event AlertEvent) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return json.Marshal(event)
	}
}

func subject(event AlertEvent) string {
	if event.ActionType != "" {
		return event.ActionType
	}
	return event.Scope
}

func formatSlack(event AlertEvent) ([]byte, error) {
	fields := []any{
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Subject:* %s", subject(event))},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Scope:* %s", event.Scope)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Budget tier:* %d", event.Tier)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", event.Reason)},
	}
	if event.CycleID != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Cycle:* %s", event.CycleID)})
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("pmguard: %s", event.Type),
				},
			},
			map[string]any{
				"type":   "section",
				"fields": fields,
			},
		},
	}
	return json.Marshal(payload)
}

func severityFor(event AlertEvent) string {
	switch event.Type {
	case EventProhibited, EventBudgetCeiling:
		return "critical"
	case EventEscalated:
		return "warning"
	case EventBudgetTierChanged:
		if event.Tier >= 3 {
			return "error"
		}
		return "warning"
	default:
		return "info"
	}
}

func formatPagerDuty(event AlertEvent) ([]byte, error) {
	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("pmguard %s: %s", event.Type, subject(event)),
			"severity": severityFor(event),
			"source":   "pmguard",
			"custom_details": map[string]any{
				"action_type": event.ActionType,
				"outcome":     event.Outcome,
				"scope":       event.Scope,
				"tier":        event.Tier,
				"reason":      event.Reason,
				"cycle_id":    event.CycleID,
			},
		},
	}
	return json.Marshal(payload)
}
