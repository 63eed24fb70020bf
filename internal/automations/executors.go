package automations

import (
	"breeze/internal/common"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	CommandTypeScript  = "script"
	CommandTypeCommand = "command"

	ShellBash       = "bash"
	ShellPowershell = "powershell"
	ShellCmd        = "cmd"
)

// ExecContext is the shared per-device execution context. The scripts
// and channels maps are read-only snapshots loaded once before device
// execution starts; workers must not mutate them
type ExecContext struct {
	Automation *Automation
	RunId      string
	Device     Device
	Scripts    map[string]Script
	Channels   map[string]Channel

	Dispatcher CommandDispatcher
	Store      Store
	Events     EventPublisher
	Channel    *ChannelDispatcher
}

// ExecuteAction runs one action against the context's device. It
// never returns an error: every failure mode is folded into a failed
// outcome with a descriptive log entry
func ExecuteAction(ctx context.Context, execCtx ExecContext, actionIndex int, action Action) (bool, RunLogEntry) {
	switch action.Type {
	case ActionTypeRunScript:
		return executeRunScript(ctx, execCtx, actionIndex, action.RunScript)
	case ActionTypeExecuteCommand:
		return executeCommand(ctx, execCtx, actionIndex, action.ExecuteCommand)
	case ActionTypeSendNotification:
		return executeSendNotification(ctx, execCtx, actionIndex, action.SendNotification)
	case ActionTypeCreateAlert:
		return executeCreateAlert(ctx, execCtx, actionIndex, action.CreateAlert)
	default:
		return false, newLogEntry(RunLogLevelError, fmt.Sprintf("unknown action type[%s]", action.Type), action.Type, actionIndex, execCtx.Device.Id)
	}
}

// idempotencyKey ties a dispatched command to one action of one device
// of one run so that repeated execution attempts do not collide
func idempotencyKey(runId, deviceId string, actionIndex int) string {
	return fmt.Sprintf("%s:%s:%v", runId, deviceId, actionIndex)
}

func executeRunScript(ctx context.Context, execCtx ExecContext, actionIndex int, action *RunScriptAction) (bool, RunLogEntry) {
	device := execCtx.Device
	script, ok := execCtx.Scripts[action.ScriptId]
	if !ok {
		return false, newLogEntry(RunLogLevelError,
			fmt.Sprintf("script[%s] not found", action.ScriptId),
			ActionTypeRunScript, actionIndex, device.Id)
	}
	if !scriptSupportsOs(script, device.OsType) {
		return false, newLogEntry(RunLogLevelError,
			"OS type does not match",
			ActionTypeRunScript, actionIndex, device.Id)
	}

	runAs := script.RunAs
	if action.RunAs != "" {
		runAs = action.RunAs
	}
	result := execCtx.Dispatcher.QueueCommandForExecution(ctx, QueueCommandOpts{
		DeviceId:    device.Id,
		CommandType: CommandTypeScript,
		Payload: map[string]any{
			"scriptId":       script.Id,
			"language":       script.Language,
			"content":        script.Content,
			"timeoutSeconds": script.TimeoutSeconds,
			"runAs":          runAs,
			"parameters":     action.Parameters,
		},
		IdempotencyKey: idempotencyKey(execCtx.RunId, device.Id, actionIndex),
		UserId:         execCtx.Automation.CreatedBy,
	})
	if result.Error != "" {
		return false, newLogEntry(RunLogLevelError,
			fmt.Sprintf("failed to queue script[%s]: %s", script.Id, result.Error),
			ActionTypeRunScript, actionIndex, device.Id)
	}
	entry := newLogEntry(RunLogLevelInfo,
		fmt.Sprintf("queued script[%s] on device[%s]", script.Name, device.Hostname),
		ActionTypeRunScript, actionIndex, device.Id)
	entry.CommandId = result.CommandId
	return true, entry
}

// scriptSupportsOs treats an empty supported-os list as any os
func scriptSupportsOs(script Script, osType string) bool {
	if len(script.OsTypes) == 0 {
		return true
	}
	for _, supported := range script.OsTypes {
		if strings.EqualFold(supported, osType) {
			return true
		}
	}
	return false
}

func executeCommand(ctx context.Context, execCtx ExecContext, actionIndex int, action *ExecuteCommandAction) (bool, RunLogEntry) {
	device := execCtx.Device
	shell := selectShell(action.Shell, device.OsType)
	result := execCtx.Dispatcher.QueueCommandForExecution(ctx, QueueCommandOpts{
		DeviceId:    device.Id,
		CommandType: CommandTypeCommand,
		Payload: map[string]any{
			"command": action.Command,
			"shell":   shell,
		},
		IdempotencyKey: idempotencyKey(execCtx.RunId, device.Id, actionIndex),
		UserId:         execCtx.Automation.CreatedBy,
	})
	if result.Error != "" {
		return false, newLogEntry(RunLogLevelError,
			fmt.Sprintf("failed to queue command: %s", result.Error),
			ActionTypeExecuteCommand, actionIndex, device.Id)
	}
	entry := newLogEntry(RunLogLevelInfo,
		fmt.Sprintf("queued %s command on device[%s]", shell, device.Hostname),
		ActionTypeExecuteCommand, actionIndex, device.Id)
	entry.CommandId = result.CommandId
	return true, entry
}

// selectShell honors an explicit bash/powershell/cmd hint and falls
// back to the platform default otherwise
func selectShell(hint, osType string) string {
	switch strings.ToLower(hint) {
	case ShellBash:
		return ShellBash
	case ShellPowershell:
		return ShellPowershell
	case ShellCmd:
		return ShellCmd
	}
	if strings.EqualFold(osType, common.OsTypeWindows) {
		return ShellPowershell
	}
	return ShellBash
}

func executeSendNotification(ctx context.Context, execCtx ExecContext, actionIndex int, action *SendNotificationAction) (bool, RunLogEntry) {
	device := execCtx.Device
	channel, ok := execCtx.Channels[action.ChannelId]
	if !ok {
		return false, newLogEntry(RunLogLevelError,
			fmt.Sprintf("notification channel[%s] not found", action.ChannelId),
			ActionTypeSendNotification, actionIndex, device.Id)
	}

	title := action.Title
	if title == "" {
		title = fmt.Sprintf("Automation: %s", execCtx.Automation.Name)
	}
	message := action.Message
	if message == "" {
		message = fmt.Sprintf("Automation %s executed on device %s", execCtx.Automation.Name, device.Hostname)
	}
	severity := action.Severity
	if severity == "" {
		severity = DefaultSeverity
	}

	result := execCtx.Channel.Dispatch(ctx, DispatchChannelOpts{
		Channel:    channel,
		Title:      title,
		Message:    message,
		Severity:   severity,
		OrgId:      execCtx.Automation.OrgId,
		AlertId:    uuid.NewString(),
		DeviceId:   device.Id,
		DeviceName: device.Hostname,
	})
	if !result.Success {
		entry := newLogEntry(RunLogLevelError,
			fmt.Sprintf("failed to send notification via channel[%s]: %s", channel.Name, result.Error),
			ActionTypeSendNotification, actionIndex, device.Id)
		entry.ChannelId = channel.Id
		return false, entry
	}
	entry := newLogEntry(RunLogLevelInfo,
		fmt.Sprintf("sent notification via channel[%s]", channel.Name),
		ActionTypeSendNotification, actionIndex, device.Id)
	entry.ChannelId = channel.Id
	return true, entry
}

func executeCreateAlert(ctx context.Context, execCtx ExecContext, actionIndex int, action *CreateAlertAction) (bool, RunLogEntry) {
	automation := execCtx.Automation
	device := execCtx.Device

	ruleId, err := execCtx.Store.EnsureAutomationAlertRule(ctx, automation.OrgId)
	if err != nil {
		return false, newLogEntry(RunLogLevelError,
			fmt.Sprintf("failed to provision alert rule: %s", err),
			ActionTypeCreateAlert, actionIndex, device.Id)
	}

	severity := action.Severity
	if severity == "" {
		severity = DefaultSeverity
	}
	title := action.Title
	if title == "" {
		title = fmt.Sprintf("Automation alert: %s", automation.Name)
	}
	alert := &Alert{
		Id:           uuid.NewString(),
		OrgId:        automation.OrgId,
		RuleId:       ruleId,
		DeviceId:     device.Id,
		Severity:     severity,
		Title:        title,
		Message:      action.Message,
		AutomationId: automation.Id,
		RunId:        execCtx.RunId,
	}
	if err := execCtx.Store.CreateAlert(ctx, alert); err != nil {
		return false, newLogEntry(RunLogLevelError,
			fmt.Sprintf("failed to create alert: %s", err),
			ActionTypeCreateAlert, actionIndex, device.Id)
	}

	execCtx.Events.PublishEvent(ctx, "alert.triggered", automation.OrgId, map[string]any{
		"alertId":      alert.Id,
		"deviceId":     device.Id,
		"severity":     severity,
		"automationId": automation.Id,
		"runId":        execCtx.RunId,
	}, "automations")

	entry := newLogEntry(RunLogLevelInfo,
		fmt.Sprintf("created %s alert on device[%s]", severity, device.Hostname),
		ActionTypeCreateAlert, actionIndex, device.Id)
	entry.AlertId = alert.Id
	return true, entry
}

func newLogEntry(level RunLogLevel, message string, actionType ActionType, actionIndex int, deviceId string) RunLogEntry {
	index := actionIndex
	return RunLogEntry{
		Timestamp:   time.Now().UTC(),
		Level:       level,
		Message:     message,
		ActionType:  actionType,
		ActionIndex: &index,
		DeviceId:    deviceId,
	}
}
