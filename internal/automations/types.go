package automations

import (
	"context"
	"encoding/json"
	"time"
)

type TriggerType string

const (
	TriggerTypeSchedule TriggerType = "schedule"
	TriggerTypeEvent    TriggerType = "event"
	TriggerTypeWebhook  TriggerType = "webhook"
	TriggerTypeManual   TriggerType = "manual"
)

// Trigger is a tagged union; exactly one variant pointer is populated
// and it matches the `.Type` discriminator
type Trigger struct {
	Type     TriggerType
	Schedule *ScheduleTrigger
	Event    *EventTrigger
	Webhook  *WebhookTrigger

	// DeviceIds optionally scopes the automation to an explicit device
	// list; used as the fallback targeting strategy when no structured
	// deployment target config and no legacy conditions are present
	DeviceIds []string
}

type ScheduleTrigger struct {
	Cron     string
	Timezone string
}

type EventTrigger struct {
	EventType string
	Filters   map[string]any
}

type WebhookTrigger struct {
	Secret      string
	CallbackUrl string
}

type ActionType string

const (
	ActionTypeRunScript        ActionType = "run_script"
	ActionTypeExecuteCommand   ActionType = "execute_command"
	ActionTypeSendNotification ActionType = "send_notification"
	ActionTypeCreateAlert      ActionType = "create_alert"
)

// Action is a tagged union; exactly one variant pointer is populated
// and it matches the `.Type` discriminator
type Action struct {
	Type             ActionType
	RunScript        *RunScriptAction
	ExecuteCommand   *ExecuteCommandAction
	SendNotification *SendNotificationAction
	CreateAlert      *CreateAlertAction
}

type RunScriptAction struct {
	ScriptId   string
	Parameters map[string]any
	RunAs      string
}

type ExecuteCommandAction struct {
	Command string
	Shell   string
}

type SendNotificationAction struct {
	ChannelId string
	Title     string
	Message   string
	Severity  string
}

type CreateAlertAction struct {
	Severity string
	Message  string
	Title    string
}

type FailurePolicy string

const (
	FailurePolicyStop     FailurePolicy = "stop"
	FailurePolicyContinue FailurePolicy = "continue"
	FailurePolicyNotify   FailurePolicy = "notify"
)

type NotificationTargets struct {
	ChannelIds []string
	Emails     []string
}

type Severity string

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"

	DefaultSeverity = SeverityMedium
)

var knownSeverities = map[string]bool{
	SeverityLow:      true,
	SeverityMedium:   true,
	SeverityHigh:     true,
	SeverityCritical: true,
}

// Automation is the stored definition of a trigger, an ordered action
// pipeline, a target selector and a failure policy. The Raw* fields
// carry the persisted JSON payloads; Normalize() populates the typed
// fields from them
type Automation struct {
	Id        string
	OrgId     string
	Name      string
	IsEnabled bool

	RawTrigger             json.RawMessage
	RawActions             json.RawMessage
	RawConditions          json.RawMessage
	RawOnFailure           string
	RawNotificationTargets json.RawMessage

	Trigger             Trigger
	Actions             []Action
	OnFailure           FailurePolicy
	NotificationTargets NotificationTargets

	RunCount  int64
	LastRunAt *time.Time
	CreatedBy string
}

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusPartial   RunStatus = "partial"
)

// Run is one concrete execution attempt of an automation; it is
// created in the running state and transitions to exactly one terminal
// state, after which it is never mutated again
type Run struct {
	Id               string        `json:"id"`
	AutomationId     string        `json:"automationId"`
	TriggeredBy      string        `json:"triggeredBy"`
	Status           RunStatus     `json:"status"`
	DevicesTargeted  int           `json:"devicesTargeted"`
	DevicesSucceeded int           `json:"devicesSucceeded"`
	DevicesFailed    int           `json:"devicesFailed"`
	Log              []RunLogEntry `json:"log"`
	StartedAt        time.Time     `json:"startedAt"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
}

type RunLogLevel string

const (
	RunLogLevelInfo    RunLogLevel = "info"
	RunLogLevelWarning RunLogLevel = "warning"
	RunLogLevelError   RunLogLevel = "error"
)

// RunLogEntry is an append-only audit record; entries are never edited
// or removed and their chronological order is the only audit trail of
// a run
type RunLogEntry struct {
	Timestamp   time.Time      `json:"timestamp"`
	Level       RunLogLevel    `json:"level"`
	Message     string         `json:"message"`
	ActionType  ActionType     `json:"actionType,omitempty"`
	ActionIndex *int           `json:"actionIndex,omitempty"`
	DeviceId    string         `json:"deviceId,omitempty"`
	CommandId   string         `json:"commandId,omitempty"`
	AlertId     string         `json:"alertId,omitempty"`
	ChannelId   string         `json:"channelId,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

type Device struct {
	Id          string
	OrgId       string
	Hostname    string
	DisplayName string
	OsType      string
	Status      string
	SiteId      string
	Tags        []string
}

type Script struct {
	Id             string
	OrgId          string
	Name           string
	Language       string
	Content        string
	TimeoutSeconds int
	RunAs          string
	OsTypes        []string
}

type Channel struct {
	Id     string
	OrgId  string
	Name   string
	Type   string
	Config map[string]any
}

type Alert struct {
	Id           string
	OrgId        string
	RuleId       string
	DeviceId     string
	Severity     string
	Title        string
	Message      string
	AutomationId string
	RunId        string
}

// Store is the persistence boundary consumed by the engine; the mysql
// implementation lives in internal/models
type Store interface {
	GetAutomation(ctx context.Context, id string) (*Automation, error)

	// CreateRun persists a new run record; a run id that already exists
	// is treated as resuming that run, not as an error, so a redelivered
	// run job can retry to a terminal state
	CreateRun(ctx context.Context, run *Run) error
	UpdateRunTargetCount(ctx context.Context, runId string, count int) error
	FinalizeRun(ctx context.Context, run *Run) error
	BumpAutomationRunStats(ctx context.Context, automationId string, at time.Time) error
	ListOrgDevices(ctx context.Context, orgId string) ([]Device, error)
	GetDeviceGroups(ctx context.Context, deviceIds []string) (map[string][]string, error)
	GetScriptsByIds(ctx context.Context, ids []string) (map[string]Script, error)
	GetChannelsByIds(ctx context.Context, ids []string) (map[string]Channel, error)
	EnsureAutomationAlertRule(ctx context.Context, orgId string) (string, error)
	CreateAlert(ctx context.Context, alert *Alert) error
}

type QueueCommandOpts struct {
	DeviceId       string
	CommandType    string
	Payload        map[string]any
	IdempotencyKey string
	UserId         string
}

type QueueCommandResult struct {
	CommandId string
	Error     string
}

// CommandDispatcher hands a command to the agent command queue; it
// reports failures through the result rather than an error so that a
// dispatch failure is always foldable into a per-action outcome
type CommandDispatcher interface {
	QueueCommandForExecution(ctx context.Context, opts QueueCommandOpts) QueueCommandResult
}

// EventPublisher is fire-and-forget: implementations log publication
// failures and never surface them to the engine
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, orgId string, payload map[string]any, source string) string
}

type DeploymentTargetConfig struct {
	Type      string         `json:"type"`
	DeviceIds []string       `json:"deviceIds,omitempty"`
	GroupIds  []string       `json:"groupIds,omitempty"`
	Filter    map[string]any `json:"filter,omitempty"`
}

type DeploymentTargetResolver interface {
	ResolveDeploymentTargets(ctx context.Context, orgId string, config DeploymentTargetConfig) ([]string, error)
}

type SendResult struct {
	Success bool
	Error   string
}

type EmailNotificationOpts struct {
	Recipients []string
	Title      string
	Message    string
	Severity   string
}

type EmailSender interface {
	SendEmailNotification(ctx context.Context, opts EmailNotificationOpts) SendResult
}

type WebhookNotificationOpts struct {
	Url     string
	Method  string
	Headers map[string]string
	Payload map[string]any
}

type WebhookSender interface {
	SendWebhookNotification(ctx context.Context, opts WebhookNotificationOpts) SendResult
}
