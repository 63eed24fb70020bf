package automations

import (
	"encoding/json"
	"fmt"
	"strings"
)

type rawTrigger struct {
	Type        string         `json:"type"`
	Cron        string         `json:"cron"`
	Timezone    string         `json:"timezone"`
	EventType   string         `json:"eventType"`
	Filters     map[string]any `json:"filters"`
	Secret      string         `json:"secret"`
	CallbackUrl string         `json:"callbackUrl"`
	DeviceIds   []string       `json:"deviceIds"`
}

type rawAction struct {
	Type       string         `json:"type"`
	ScriptId   string         `json:"scriptId"`
	Parameters map[string]any `json:"parameters"`
	RunAs      string         `json:"runAs"`
	Command    string         `json:"command"`
	Shell      string         `json:"shell"`
	ChannelId  string         `json:"channelId"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Severity   string         `json:"severity"`
}

type rawNotificationTargets struct {
	ChannelIds []string `json:"channelIds"`
	Emails     []string `json:"emails"`
}

// NormalizeTrigger canonicalizes a raw trigger payload into a typed
// Trigger. An absent or unrecognized type discriminator is a
// validation failure, never a silent default
func NormalizeTrigger(data json.RawMessage) (Trigger, error) {
	var raw rawTrigger
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return Trigger{}, fmt.Errorf("failed to parse trigger: %w", err)
		}
	}
	if raw.Type == "" {
		return Trigger{}, ErrorTriggerTypeMissing
	}
	trigger := Trigger{
		Type:      TriggerType(raw.Type),
		DeviceIds: raw.DeviceIds,
	}
	switch trigger.Type {
	case TriggerTypeSchedule:
		// cron is validated strictly by field count only; per-field
		// content issues surface as a never-due schedule instead
		if len(strings.Fields(raw.Cron)) != 5 {
			return Trigger{}, fmt.Errorf("%w: expected 5 fields in cron[%s]", ErrorTriggerCronInvalid, raw.Cron)
		}
		timezone := raw.Timezone
		if timezone == "" {
			timezone = "UTC"
		}
		trigger.Schedule = &ScheduleTrigger{
			Cron:     raw.Cron,
			Timezone: timezone,
		}
	case TriggerTypeEvent:
		if raw.EventType == "" {
			return Trigger{}, ErrorTriggerEventMissing
		}
		trigger.Event = &EventTrigger{
			EventType: raw.EventType,
			Filters:   raw.Filters,
		}
	case TriggerTypeWebhook:
		trigger.Webhook = &WebhookTrigger{
			Secret:      raw.Secret,
			CallbackUrl: raw.CallbackUrl,
		}
	case TriggerTypeManual:
	default:
		return Trigger{}, fmt.Errorf("%w: type[%s]", ErrorTriggerTypeUnknown, raw.Type)
	}
	return trigger, nil
}

// NormalizeActions canonicalizes a raw action list. The list is
// atomic: one bad action rejects the whole list
func NormalizeActions(data json.RawMessage) ([]Action, error) {
	var raws []rawAction
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("failed to parse actions: %w", err)
		}
	}
	if len(raws) == 0 {
		return nil, ErrorActionsEmpty
	}
	actions := make([]Action, 0, len(raws))
	for i, raw := range raws {
		action, err := normalizeAction(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize action at index[%v]: %w", i, err)
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func normalizeAction(raw rawAction) (Action, error) {
	if raw.Type == "" {
		return Action{}, ErrorActionTypeMissing
	}
	action := Action{Type: ActionType(raw.Type)}
	switch action.Type {
	case ActionTypeRunScript:
		if raw.ScriptId == "" {
			return Action{}, ErrorActionScriptIdMissing
		}
		action.RunScript = &RunScriptAction{
			ScriptId:   raw.ScriptId,
			Parameters: raw.Parameters,
			RunAs:      raw.RunAs,
		}
	case ActionTypeExecuteCommand:
		if strings.TrimSpace(raw.Command) == "" {
			return Action{}, ErrorActionCommandMissing
		}
		action.ExecuteCommand = &ExecuteCommandAction{
			Command: raw.Command,
			Shell:   raw.Shell,
		}
	case ActionTypeSendNotification:
		if raw.ChannelId == "" {
			return Action{}, ErrorActionChannelMissing
		}
		action.SendNotification = &SendNotificationAction{
			ChannelId: raw.ChannelId,
			Title:     raw.Title,
			Message:   raw.Message,
			Severity:  normalizeSeverity(raw.Severity),
		}
	case ActionTypeCreateAlert:
		if strings.TrimSpace(raw.Message) == "" {
			return Action{}, ErrorActionMessageMissing
		}
		action.CreateAlert = &CreateAlertAction{
			Severity: normalizeSeverity(raw.Severity),
			Message:  raw.Message,
			Title:    raw.Title,
		}
	default:
		return Action{}, fmt.Errorf("%w: type[%s]", ErrorActionTypeUnknown, raw.Type)
	}
	return action, nil
}

// normalizeSeverity coerces unknown severities to the default instead
// of failing; an empty severity means the caller did not set one
func normalizeSeverity(severity string) string {
	if severity == "" {
		return ""
	}
	if !knownSeverities[strings.ToLower(severity)] {
		return DefaultSeverity
	}
	return strings.ToLower(severity)
}

// NormalizeFailurePolicy is permissive: anything other than continue
// or notify becomes stop
func NormalizeFailurePolicy(policy string) FailurePolicy {
	switch FailurePolicy(policy) {
	case FailurePolicyContinue:
		return FailurePolicyContinue
	case FailurePolicyNotify:
		return FailurePolicyNotify
	default:
		return FailurePolicyStop
	}
}

func NormalizeNotificationTargets(data json.RawMessage) (NotificationTargets, error) {
	if len(data) == 0 {
		return NotificationTargets{}, nil
	}
	var raw rawNotificationTargets
	if err := json.Unmarshal(data, &raw); err != nil {
		return NotificationTargets{}, fmt.Errorf("failed to parse notification targets: %w", err)
	}
	return NotificationTargets{
		ChannelIds: raw.ChannelIds,
		Emails:     raw.Emails,
	}, nil
}

// Normalize populates the typed trigger/actions/policy fields from the
// persisted raw payloads
func (a *Automation) Normalize() error {
	trigger, err := NormalizeTrigger(a.RawTrigger)
	if err != nil {
		return fmt.Errorf("failed to normalize trigger for automation[%s]: %w", a.Id, err)
	}
	actions, err := NormalizeActions(a.RawActions)
	if err != nil {
		return fmt.Errorf("failed to normalize actions for automation[%s]: %w", a.Id, err)
	}
	targets, err := NormalizeNotificationTargets(a.RawNotificationTargets)
	if err != nil {
		return fmt.Errorf("failed to normalize notification targets for automation[%s]: %w", a.Id, err)
	}
	a.Trigger = trigger
	a.Actions = actions
	a.OnFailure = NormalizeFailurePolicy(a.RawOnFailure)
	a.NotificationTargets = targets
	return nil
}

// EnsureWebhookDefaults injects a generated secret and a callback url
// derived from the automation id when they are absent. It is
// idempotent: present values are never overwritten
func EnsureWebhookDefaults(trigger *Trigger, automationId, baseUrl string, generateSecret func() string) bool {
	if trigger == nil || trigger.Type != TriggerTypeWebhook || trigger.Webhook == nil {
		return false
	}
	isChanged := false
	if trigger.Webhook.Secret == "" {
		trigger.Webhook.Secret = generateSecret()
		isChanged = true
	}
	if trigger.Webhook.CallbackUrl == "" {
		trigger.Webhook.CallbackUrl = fmt.Sprintf("%s/api/v1/automations/%s/webhook", strings.TrimSuffix(baseUrl, "/"), automationId)
		isChanged = true
	}
	return isChanged
}
