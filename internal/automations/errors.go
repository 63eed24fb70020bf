package automations

import "errors"

var (
	ErrorAutomationNotFound    = errors.New("automation_not_found")
	ErrorAutomationDisabled    = errors.New("automation_disabled")
	ErrorTriggerTypeMissing    = errors.New("trigger_type_missing")
	ErrorTriggerTypeUnknown    = errors.New("trigger_type_unknown")
	ErrorTriggerCronInvalid    = errors.New("trigger_cron_invalid")
	ErrorTriggerEventMissing   = errors.New("trigger_event_type_missing")
	ErrorActionsEmpty          = errors.New("actions_empty")
	ErrorActionTypeMissing     = errors.New("action_type_missing")
	ErrorActionTypeUnknown     = errors.New("action_type_unknown")
	ErrorActionScriptIdMissing = errors.New("action_script_id_missing")
	ErrorActionCommandMissing  = errors.New("action_command_missing")
	ErrorActionChannelMissing  = errors.New("action_channel_id_missing")
	ErrorActionMessageMissing  = errors.New("action_message_missing")
)
