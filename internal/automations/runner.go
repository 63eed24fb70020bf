package automations

import (
	"breeze/internal/common"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunWorkerCount caps how many devices execute their action pipelines
// concurrently within a single run
const RunWorkerCount = 5

const (
	EventAutomationStarted   = "automation.started"
	EventAutomationCompleted = "automation.completed"
	EventAutomationFailed    = "automation.failed"

	eventSourceAutomations = "automations"
)

// Runner owns the full lifecycle of an automation run: it creates the
// run record, resolves targets, executes every device's action
// pipeline under bounded concurrency, and persists a single terminal
// run record with the complete log
type Runner struct {
	Store       Store
	Dispatcher  CommandDispatcher
	Events      EventPublisher
	Resolver    DeploymentTargetResolver
	Channel     *ChannelDispatcher
	ServiceLogs chan<- common.ServiceLog
}

type ExecuteRunOpts struct {
	AutomationId string
	TriggeredBy  string

	// RunId optionally fixes the run's identity; used when the run id
	// was minted at enqueue time
	RunId string

	// TargetDeviceIds optionally carries targets captured at enqueue
	// time so targeting cannot drift between enqueue and execution;
	// nil means resolve now
	TargetDeviceIds []string
}

type deviceResult struct {
	isSucceeded bool
	entries     []RunLogEntry
}

// ExecuteRun drives one run to a terminal state. Individual action
// and device failures are folded into the run record; the only errors
// returned are a failed load of the automation or run record and a
// failed final persistence write
func (r *Runner) ExecuteRun(ctx context.Context, opts ExecuteRunOpts) (*Run, error) {
	automation, err := r.Store.GetAutomation(ctx, opts.AutomationId)
	if err != nil {
		return nil, fmt.Errorf("failed to load automation[%s]: %w", opts.AutomationId, err)
	}
	if err := automation.Normalize(); err != nil {
		return nil, err
	}

	runId := opts.RunId
	if runId == "" {
		runId = uuid.NewString()
	}
	startedAt := time.Now().UTC()
	run := &Run{
		Id:           runId,
		AutomationId: automation.Id,
		TriggeredBy:  opts.TriggeredBy,
		Status:       RunStatusRunning,
		StartedAt:    startedAt,
	}
	if err := r.Store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run for automation[%s]: %w", automation.Id, err)
	}

	r.Events.PublishEvent(ctx, EventAutomationStarted, automation.OrgId, map[string]any{
		"automationId": automation.Id,
		"runId":        run.Id,
		"triggeredBy":  opts.TriggeredBy,
	}, eventSourceAutomations)
	if err := r.Store.BumpAutomationRunStats(ctx, automation.Id, startedAt); err != nil {
		r.serviceLogf(common.LogLevelWarn, "failed to bump run stats for automation[%s]: %s", automation.Id, err)
	}

	targetIds := opts.TargetDeviceIds
	if targetIds == nil {
		targetIds, err = ResolveTargets(ctx, ResolveTargetsOpts{
			Automation: automation,
			Store:      r.Store,
			Resolver:   r.Resolver,
		})
		if err != nil {
			return nil, err
		}
	}
	run.DevicesTargeted = len(targetIds)
	if err := r.Store.UpdateRunTargetCount(ctx, run.Id, run.DevicesTargeted); err != nil {
		r.serviceLogf(common.LogLevelWarn, "failed to persist target count for run[%s]: %s", run.Id, err)
	}

	scripts, channels, err := r.loadReferencedEntities(ctx, automation)
	if err != nil {
		return nil, err
	}

	devicesById, err := r.loadOrgDevices(ctx, automation.OrgId)
	if err != nil {
		return nil, err
	}

	results := r.executeDevices(ctx, automation, run.Id, targetIds, devicesById, scripts, channels)
	for _, result := range results {
		run.Log = append(run.Log, result.entries...)
		if result.isSucceeded {
			run.DevicesSucceeded++
		} else {
			run.DevicesFailed++
		}
	}
	sort.SliceStable(run.Log, func(i, j int) bool {
		return run.Log[i].Timestamp.Before(run.Log[j].Timestamp)
	})

	run.Status = terminalStatus(run.DevicesTargeted, run.DevicesSucceeded, run.DevicesFailed)
	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt
	run.Log = append(run.Log, RunLogEntry{
		Timestamp: completedAt,
		Level:     RunLogLevelInfo,
		Message: fmt.Sprintf("run %s: %v targeted, %v succeeded, %v failed",
			run.Status, run.DevicesTargeted, run.DevicesSucceeded, run.DevicesFailed),
	})

	if err := r.Store.FinalizeRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to finalize run[%s]: %w", run.Id, err)
	}

	metricsRunsTotal.WithLabelValues(string(run.Status)).Inc()
	metricsDevicesTotal.WithLabelValues("succeeded").Add(float64(run.DevicesSucceeded))
	metricsDevicesTotal.WithLabelValues("failed").Add(float64(run.DevicesFailed))

	lifecycleEvent := EventAutomationCompleted
	if run.Status == RunStatusFailed {
		lifecycleEvent = EventAutomationFailed
	}
	r.Events.PublishEvent(ctx, lifecycleEvent, automation.OrgId, map[string]any{
		"automationId":     automation.Id,
		"runId":            run.Id,
		"status":           string(run.Status),
		"devicesTargeted":  run.DevicesTargeted,
		"devicesSucceeded": run.DevicesSucceeded,
		"devicesFailed":    run.DevicesFailed,
	}, eventSourceAutomations)

	return run, nil
}

// terminalStatus implements the run status truth table: no failures
// means completed (including the zero-target case), all failures
// means failed, anything else is partial
func terminalStatus(targeted, succeeded, failed int) RunStatus {
	switch {
	case failed == 0:
		return RunStatusCompleted
	case failed == targeted:
		return RunStatusFailed
	default:
		return RunStatusPartial
	}
}

// loadReferencedEntities bulk-loads every script and channel any
// action or the failure policy could touch, in one query each
func (r *Runner) loadReferencedEntities(ctx context.Context, automation *Automation) (map[string]Script, map[string]Channel, error) {
	scriptIds := []string{}
	channelIds := []string{}
	for _, action := range automation.Actions {
		switch action.Type {
		case ActionTypeRunScript:
			scriptIds = append(scriptIds, action.RunScript.ScriptId)
		case ActionTypeSendNotification:
			channelIds = append(channelIds, action.SendNotification.ChannelId)
		}
	}
	channelIds = append(channelIds, automation.NotificationTargets.ChannelIds...)

	scripts := map[string]Script{}
	if len(scriptIds) > 0 {
		var err error
		scripts, err = r.Store.GetScriptsByIds(ctx, dedupeIds(scriptIds))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load scripts: %w", err)
		}
	}
	channels := map[string]Channel{}
	if len(channelIds) > 0 {
		var err error
		channels, err = r.Store.GetChannelsByIds(ctx, dedupeIds(channelIds))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load notification channels: %w", err)
		}
	}
	return scripts, channels, nil
}

func (r *Runner) loadOrgDevices(ctx context.Context, orgId string) (map[string]Device, error) {
	devices, err := r.Store.ListOrgDevices(ctx, orgId)
	if err != nil {
		return nil, fmt.Errorf("failed to load devices for org[%s]: %w", orgId, err)
	}
	devicesById := make(map[string]Device, len(devices))
	for _, device := range devices {
		devicesById[device.Id] = device
	}
	return devicesById, nil
}

// executeDevices fans the target list out to a bounded worker pool.
// Each worker owns one device at a time and appends only to its own
// result; aggregation happens after all workers drain so concurrent
// completion cannot drop or double-count a device
func (r *Runner) executeDevices(
	ctx context.Context,
	automation *Automation,
	runId string,
	targetIds []string,
	devicesById map[string]Device,
	scripts map[string]Script,
	channels map[string]Channel,
) []deviceResult {
	workerCount := RunWorkerCount
	if len(targetIds) < workerCount {
		workerCount = len(targetIds)
	}

	jobs := make(chan string)
	results := make([]deviceResult, 0, len(targetIds))
	var resultsMutex sync.Mutex
	var waiter sync.WaitGroup

	for range workerCount {
		waiter.Add(1)
		go func() {
			defer waiter.Done()
			for deviceId := range jobs {
				result := r.executeDevice(ctx, automation, runId, deviceId, devicesById, scripts, channels)
				resultsMutex.Lock()
				results = append(results, result)
				resultsMutex.Unlock()
			}
		}()
	}
	for _, deviceId := range targetIds {
		jobs <- deviceId
	}
	close(jobs)
	waiter.Wait()

	return results
}

// executeDevice runs one device's action pipeline strictly in order,
// applying the automation's failure policy after any failed action
func (r *Runner) executeDevice(
	ctx context.Context,
	automation *Automation,
	runId string,
	deviceId string,
	devicesById map[string]Device,
	scripts map[string]Script,
	channels map[string]Channel,
) deviceResult {
	device, ok := devicesById[deviceId]
	if !ok {
		return deviceResult{
			entries: []RunLogEntry{{
				Timestamp: time.Now().UTC(),
				Level:     RunLogLevelError,
				Message:   fmt.Sprintf("device[%s] not found", deviceId),
				DeviceId:  deviceId,
			}},
		}
	}

	execCtx := ExecContext{
		Automation: automation,
		RunId:      runId,
		Device:     device,
		Scripts:    scripts,
		Channels:   channels,
		Dispatcher: r.Dispatcher,
		Store:      r.Store,
		Events:     r.Events,
		Channel:    r.Channel,
	}

	result := deviceResult{isSucceeded: true}
	for actionIndex, action := range automation.Actions {
		isSuccess, entry := ExecuteAction(ctx, execCtx, actionIndex, action)
		result.entries = append(result.entries, entry)
		if isSuccess {
			continue
		}
		result.isSucceeded = false
		switch automation.OnFailure {
		case FailurePolicyContinue:
			continue
		case FailurePolicyNotify:
			result.entries = append(result.entries, r.notifyFailure(ctx, automation, device, channels, actionIndex)...)
		}
		break
	}
	return result
}

// notifyFailure sends best-effort failure notifications to the
// automation's configured notification targets; every send outcome is
// itself logged
func (r *Runner) notifyFailure(
	ctx context.Context,
	automation *Automation,
	device Device,
	channels map[string]Channel,
	actionIndex int,
) []RunLogEntry {
	title := fmt.Sprintf("Automation failed: %s", automation.Name)
	message := fmt.Sprintf("Automation %s failed on device %s at action %v",
		automation.Name, device.Hostname, actionIndex)

	entries := []RunLogEntry{}
	for _, channelId := range automation.NotificationTargets.ChannelIds {
		channel, ok := channels[channelId]
		if !ok {
			entries = append(entries, failureNotifyEntry(device.Id, channelId,
				RunLogLevelWarning, fmt.Sprintf("failure notification channel[%s] not found", channelId)))
			continue
		}
		result := r.Channel.Dispatch(ctx, DispatchChannelOpts{
			Channel:    channel,
			Title:      title,
			Message:    message,
			Severity:   SeverityHigh,
			OrgId:      automation.OrgId,
			AlertId:    uuid.NewString(),
			DeviceId:   device.Id,
			DeviceName: device.Hostname,
		})
		if !result.Success {
			entries = append(entries, failureNotifyEntry(device.Id, channelId,
				RunLogLevelWarning, fmt.Sprintf("failed to send failure notification via channel[%s]: %s", channel.Name, result.Error)))
			continue
		}
		entries = append(entries, failureNotifyEntry(device.Id, channelId,
			RunLogLevelInfo, fmt.Sprintf("sent failure notification via channel[%s]", channel.Name)))
	}

	if len(automation.NotificationTargets.Emails) > 0 {
		result := r.Channel.Email.SendEmailNotification(ctx, EmailNotificationOpts{
			Recipients: automation.NotificationTargets.Emails,
			Title:      title,
			Message:    message,
			Severity:   SeverityHigh,
		})
		if !result.Success {
			entries = append(entries, failureNotifyEntry(device.Id, "",
				RunLogLevelWarning, fmt.Sprintf("failed to send failure notification email: %s", result.Error)))
		} else {
			entries = append(entries, failureNotifyEntry(device.Id, "",
				RunLogLevelInfo, fmt.Sprintf("sent failure notification email to %v recipients", len(automation.NotificationTargets.Emails))))
		}
	}
	return entries
}

func failureNotifyEntry(deviceId, channelId string, level RunLogLevel, message string) RunLogEntry {
	return RunLogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		DeviceId:  deviceId,
		ChannelId: channelId,
	}
}

func (r *Runner) serviceLogf(level common.LogLevel, format string, args ...any) {
	if r.ServiceLogs == nil {
		return
	}
	r.ServiceLogs <- common.ServiceLogf(level, format, args...)
}
