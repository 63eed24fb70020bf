package automations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func testRunner(store *fakeStore, dispatcher *fakeDispatcher, events *fakeEvents) *Runner {
	return &Runner{
		Store:      store,
		Dispatcher: dispatcher,
		Events:     events,
		Resolver:   &fakeResolver{},
		Channel: &ChannelDispatcher{
			Email:   &fakeEmailSender{},
			Webhook: &fakeWebhookSender{},
		},
	}
}

func windowsLinuxFleet() *fakeStore {
	store := newFakeStore()
	store.devices = []Device{
		{Id: "dev-win", OrgId: "org-1", Hostname: "win-01", OsType: "windows"},
		{Id: "dev-lin", OrgId: "org-1", Hostname: "lin-01", OsType: "linux"},
	}
	return store
}

func TestExecuteRun_partialOsMismatch(t *testing.T) {
	store := windowsLinuxFleet()
	store.scripts["script-1"] = Script{Id: "script-1", Name: "patch", OsTypes: []string{"windows"}}
	store.automations["auto-1"] = &Automation{
		Id:           "auto-1",
		OrgId:        "org-1",
		Name:         "Patch fleet",
		IsEnabled:    true,
		RawTrigger:   json.RawMessage(`{"type":"manual"}`),
		RawActions:   json.RawMessage(`[{"type":"run_script","scriptId":"script-1"}]`),
		RawOnFailure: "stop",
	}
	dispatcher := &fakeDispatcher{}
	events := &fakeEvents{}
	runner := testRunner(store, dispatcher, events)

	run, err := runner.ExecuteRun(context.Background(), ExecuteRunOpts{
		AutomationId: "auto-1",
		TriggeredBy:  "user:alice",
	})
	if err != nil {
		t.Fatalf("failed to execute run: %s", err)
	}
	if run.Status != RunStatusPartial {
		t.Errorf("expected partial status, got %s", run.Status)
	}
	if run.DevicesTargeted != 2 || run.DevicesSucceeded != 1 || run.DevicesFailed != 1 {
		t.Errorf("expected 2/1/1 counters, got %v/%v/%v", run.DevicesTargeted, run.DevicesSucceeded, run.DevicesFailed)
	}
	foundMismatch := false
	for _, entry := range run.Log {
		if entry.DeviceId == "dev-lin" && entry.Message == "OS type does not match" {
			foundMismatch = true
		}
	}
	if !foundMismatch {
		t.Errorf("expected os mismatch log entry for the linux device")
	}
	if len(dispatcher.dispatched) != 1 || dispatcher.dispatched[0].DeviceId != "dev-win" {
		t.Errorf("expected exactly one dispatch to the windows device")
	}
	if store.finalizedRun == nil {
		t.Fatalf("expected run to be finalized")
	}
	if store.finalizedRun.Status != RunStatusPartial {
		t.Errorf("expected finalized status partial, got %s", store.finalizedRun.Status)
	}
	if store.finalizedRun.CompletedAt == nil {
		t.Errorf("expected completion timestamp to be persisted")
	}
}

func TestExecuteRun_statusTable(t *testing.T) {
	tests := []struct {
		name        string
		failDevices map[string]string
		want        RunStatus
	}{
		{"allSucceed", nil, RunStatusCompleted},
		{"allFail", map[string]string{"dev-win": "down", "dev-lin": "down"}, RunStatusFailed},
		{"mixed", map[string]string{"dev-lin": "down"}, RunStatusPartial},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store := windowsLinuxFleet()
			store.automations["auto-1"] = &Automation{
				Id:         "auto-1",
				OrgId:      "org-1",
				Name:       "Uptime check",
				RawTrigger: json.RawMessage(`{"type":"manual"}`),
				RawActions: json.RawMessage(`[{"type":"execute_command","command":"uptime"}]`),
			}
			dispatcher := &fakeDispatcher{failDevices: test.failDevices}
			events := &fakeEvents{}
			runner := testRunner(store, dispatcher, events)

			run, err := runner.ExecuteRun(context.Background(), ExecuteRunOpts{AutomationId: "auto-1", TriggeredBy: "manual"})
			if err != nil {
				t.Fatalf("failed to execute run: %s", err)
			}
			if run.Status != test.want {
				t.Errorf("expected status %s, got %s", test.want, run.Status)
			}
			if run.DevicesSucceeded+run.DevicesFailed != run.DevicesTargeted {
				t.Errorf("counter integrity violated: %v + %v != %v", run.DevicesSucceeded, run.DevicesFailed, run.DevicesTargeted)
			}
			wantEvent := "automation.completed"
			if test.want == RunStatusFailed {
				wantEvent = "automation.failed"
			}
			types := events.typesSeen()
			if len(types) != 2 || types[0] != "automation.started" || types[1] != wantEvent {
				t.Errorf("expected [automation.started %s] events, got %v", wantEvent, types)
			}
		})
	}
}

func TestExecuteRun_zeroTargetsCompletes(t *testing.T) {
	store := newFakeStore()
	store.automations["auto-1"] = &Automation{
		Id:         "auto-1",
		OrgId:      "org-1",
		Name:       "Nobody home",
		RawTrigger: json.RawMessage(`{"type":"manual"}`),
		RawActions: json.RawMessage(`[{"type":"execute_command","command":"uptime"}]`),
	}
	runner := testRunner(store, &fakeDispatcher{}, &fakeEvents{})

	run, err := runner.ExecuteRun(context.Background(), ExecuteRunOpts{AutomationId: "auto-1", TriggeredBy: "manual"})
	if err != nil {
		t.Fatalf("failed to execute run: %s", err)
	}
	if run.Status != RunStatusCompleted {
		t.Errorf("expected trivial completion for zero targets, got %s", run.Status)
	}
	if run.DevicesTargeted != 0 {
		t.Errorf("expected zero targeted devices, got %v", run.DevicesTargeted)
	}
}

func TestExecuteRun_stopPolicySkipsRemainingActions(t *testing.T) {
	store := windowsLinuxFleet()
	store.devices = store.devices[:1]
	store.automations["auto-1"] = &Automation{
		Id:         "auto-1",
		OrgId:      "org-1",
		Name:       "Two step",
		RawTrigger: json.RawMessage(`{"type":"manual"}`),
		RawActions: json.RawMessage(`[
			{"type":"run_script","scriptId":"script-404"},
			{"type":"execute_command","command":"uptime"}
		]`),
		RawOnFailure: "stop",
	}
	dispatcher := &fakeDispatcher{}
	runner := testRunner(store, dispatcher, &fakeEvents{})

	run, err := runner.ExecuteRun(context.Background(), ExecuteRunOpts{AutomationId: "auto-1", TriggeredBy: "manual"})
	if err != nil {
		t.Fatalf("failed to execute run: %s", err)
	}
	if run.Status != RunStatusFailed {
		t.Errorf("expected failed status, got %s", run.Status)
	}
	for _, entry := range run.Log {
		if entry.ActionIndex != nil && *entry.ActionIndex == 1 {
			t.Errorf("expected second action to be skipped under stop policy, got entry: %s", entry.Message)
		}
	}
	if len(dispatcher.dispatched) != 0 {
		t.Errorf("expected no dispatches after the failing first action")
	}
}

func TestExecuteRun_continuePolicyAttemptsAllActions(t *testing.T) {
	store := windowsLinuxFleet()
	store.devices = store.devices[:1]
	store.automations["auto-1"] = &Automation{
		Id:         "auto-1",
		OrgId:      "org-1",
		Name:       "Two step",
		RawTrigger: json.RawMessage(`{"type":"manual"}`),
		RawActions: json.RawMessage(`[
			{"type":"run_script","scriptId":"script-404"},
			{"type":"execute_command","command":"uptime"}
		]`),
		RawOnFailure: "continue",
	}
	dispatcher := &fakeDispatcher{}
	runner := testRunner(store, dispatcher, &fakeEvents{})

	run, err := runner.ExecuteRun(context.Background(), ExecuteRunOpts{AutomationId: "auto-1", TriggeredBy: "manual"})
	if err != nil {
		t.Fatalf("failed to execute run: %s", err)
	}
	// the device still counts as failed even though the second action ran
	if run.Status != RunStatusFailed {
		t.Errorf("expected failed status, got %s", run.Status)
	}
	sawSecondAction := false
	for _, entry := range run.Log {
		if entry.ActionIndex != nil && *entry.ActionIndex == 1 {
			sawSecondAction = true
		}
	}
	if !sawSecondAction {
		t.Errorf("expected second action to be attempted under continue policy")
	}
	if len(dispatcher.dispatched) != 1 {
		t.Errorf("expected the second action's dispatch to happen, got %v", len(dispatcher.dispatched))
	}
}

func TestExecuteRun_notifyPolicySendsToTargets(t *testing.T) {
	store := windowsLinuxFleet()
	store.devices = store.devices[:1]
	store.channels["chan-ops"] = Channel{
		Id:     "chan-ops",
		Name:   "ops",
		Type:   "email",
		Config: map[string]any{"recipients": []any{"oncall@example.com"}},
	}
	store.automations["auto-1"] = &Automation{
		Id:           "auto-1",
		OrgId:        "org-1",
		Name:         "Fragile",
		RawTrigger:   json.RawMessage(`{"type":"manual"}`),
		RawActions:   json.RawMessage(`[{"type":"run_script","scriptId":"script-404"},{"type":"execute_command","command":"uptime"}]`),
		RawOnFailure: "notify",
		RawNotificationTargets: json.RawMessage(`{
			"channelIds":["chan-ops"],
			"emails":["boss@example.com"]
		}`),
	}
	email := &fakeEmailSender{}
	runner := testRunner(store, &fakeDispatcher{}, &fakeEvents{})
	runner.Channel = &ChannelDispatcher{Email: email, Webhook: &fakeWebhookSender{}}

	run, err := runner.ExecuteRun(context.Background(), ExecuteRunOpts{AutomationId: "auto-1", TriggeredBy: "manual"})
	if err != nil {
		t.Fatalf("failed to execute run: %s", err)
	}
	// channel recipients plus the raw email list
	if len(email.sent) != 2 {
		t.Fatalf("expected two failure notifications, got %v", len(email.sent))
	}
	for _, sent := range email.sent {
		if !strings.Contains(sent.Title, "Fragile") {
			t.Errorf("expected failure notification to name the automation, got %s", sent.Title)
		}
	}
	// notify behaves like stop for the remaining actions
	for _, entry := range run.Log {
		if entry.ActionIndex != nil && *entry.ActionIndex == 1 {
			t.Errorf("expected second action to be skipped under notify policy")
		}
	}
	sawSendLog := false
	for _, entry := range run.Log {
		if strings.Contains(entry.Message, "failure notification") {
			sawSendLog = true
		}
	}
	if !sawSendLog {
		t.Errorf("expected notification outcomes to be logged")
	}
}

func TestExecuteRun_precomputedTargets(t *testing.T) {
	store := windowsLinuxFleet()
	store.automations["auto-1"] = &Automation{
		Id:         "auto-1",
		OrgId:      "org-1",
		Name:       "Scoped",
		RawTrigger: json.RawMessage(`{"type":"manual"}`),
		RawActions: json.RawMessage(`[{"type":"execute_command","command":"uptime"}]`),
	}
	dispatcher := &fakeDispatcher{}
	runner := testRunner(store, dispatcher, &fakeEvents{})

	run, err := runner.ExecuteRun(context.Background(), ExecuteRunOpts{
		AutomationId:    "auto-1",
		TriggeredBy:     "schedule",
		RunId:           "run-fixed",
		TargetDeviceIds: []string{"dev-lin"},
	})
	if err != nil {
		t.Fatalf("failed to execute run: %s", err)
	}
	if run.Id != "run-fixed" {
		t.Errorf("expected the caller-supplied run id to be used, got %s", run.Id)
	}
	if run.DevicesTargeted != 1 {
		t.Errorf("expected the precomputed target list to be used, got %v targets", run.DevicesTargeted)
	}
	if len(dispatcher.dispatched) != 1 || dispatcher.dispatched[0].DeviceId != "dev-lin" {
		t.Errorf("expected dispatch only to the precomputed device")
	}
}

func TestExecuteRun_unknownDeviceCountsAsFailed(t *testing.T) {
	store := windowsLinuxFleet()
	store.automations["auto-1"] = &Automation{
		Id:         "auto-1",
		OrgId:      "org-1",
		Name:       "Ghost hunt",
		RawTrigger: json.RawMessage(`{"type":"manual"}`),
		RawActions: json.RawMessage(`[{"type":"execute_command","command":"uptime"}]`),
	}
	runner := testRunner(store, &fakeDispatcher{}, &fakeEvents{})

	run, err := runner.ExecuteRun(context.Background(), ExecuteRunOpts{
		AutomationId:    "auto-1",
		TriggeredBy:     "manual",
		TargetDeviceIds: []string{"dev-win", "dev-ghost"},
	})
	if err != nil {
		t.Fatalf("failed to execute run: %s", err)
	}
	if run.Status != RunStatusPartial {
		t.Errorf("expected partial status, got %s", run.Status)
	}
	if run.DevicesSucceeded+run.DevicesFailed != run.DevicesTargeted {
		t.Errorf("counter integrity violated")
	}
}

func TestExecuteRun_manyDevicesCounterIntegrity(t *testing.T) {
	store := newFakeStore()
	failDevices := map[string]string{}
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("dev-%v", i)
		store.devices = append(store.devices, Device{Id: id, OrgId: "org-1", Hostname: id, OsType: "linux"})
		if i%3 == 0 {
			failDevices[id] = "unreachable"
		}
	}
	store.automations["auto-1"] = &Automation{
		Id:         "auto-1",
		OrgId:      "org-1",
		Name:       "Big fleet",
		RawTrigger: json.RawMessage(`{"type":"manual"}`),
		RawActions: json.RawMessage(`[{"type":"execute_command","command":"uptime"}]`),
	}
	runner := testRunner(store, &fakeDispatcher{failDevices: failDevices}, &fakeEvents{})

	run, err := runner.ExecuteRun(context.Background(), ExecuteRunOpts{AutomationId: "auto-1", TriggeredBy: "manual"})
	if err != nil {
		t.Fatalf("failed to execute run: %s", err)
	}
	if run.DevicesTargeted != 40 {
		t.Errorf("expected 40 targeted devices, got %v", run.DevicesTargeted)
	}
	if run.DevicesFailed != 14 {
		t.Errorf("expected 14 failed devices, got %v", run.DevicesFailed)
	}
	if run.DevicesSucceeded+run.DevicesFailed != run.DevicesTargeted {
		t.Errorf("counter integrity violated: %v + %v != %v", run.DevicesSucceeded, run.DevicesFailed, run.DevicesTargeted)
	}
	if run.Status != RunStatusPartial {
		t.Errorf("expected partial status, got %s", run.Status)
	}
}

func TestExecuteRun_loadFailuresPropagate(t *testing.T) {
	store := newFakeStore()
	runner := testRunner(store, &fakeDispatcher{}, &fakeEvents{})

	if _, err := runner.ExecuteRun(context.Background(), ExecuteRunOpts{AutomationId: "auto-404"}); err == nil {
		t.Errorf("expected missing automation to propagate an error")
	} else if !errors.Is(err, ErrorAutomationNotFound) {
		t.Errorf("expected automation not found, got %v", err)
	}

	store.automations["auto-1"] = &Automation{
		Id:         "auto-1",
		OrgId:      "org-1",
		Name:       "Bad definition",
		RawTrigger: json.RawMessage(`{"type":"manual"}`),
		RawActions: json.RawMessage(`[{"type":"teleport"}]`),
	}
	if _, err := runner.ExecuteRun(context.Background(), ExecuteRunOpts{AutomationId: "auto-1"}); err == nil {
		t.Errorf("expected normalization failure to propagate")
	} else if !errors.Is(err, ErrorActionTypeUnknown) {
		t.Errorf("expected action type error, got %v", err)
	}
}

func TestExecuteRun_finalizeFailurePropagates(t *testing.T) {
	store := windowsLinuxFleet()
	store.finalizeFailure = errors.New("db down")
	store.automations["auto-1"] = &Automation{
		Id:         "auto-1",
		OrgId:      "org-1",
		Name:       "Doomed write",
		RawTrigger: json.RawMessage(`{"type":"manual"}`),
		RawActions: json.RawMessage(`[{"type":"execute_command","command":"uptime"}]`),
	}
	runner := testRunner(store, &fakeDispatcher{}, &fakeEvents{})

	if _, err := runner.ExecuteRun(context.Background(), ExecuteRunOpts{AutomationId: "auto-1"}); err == nil {
		t.Errorf("expected finalize failure to propagate")
	}
}

func TestExecuteRun_redeliveredRunIdResumesRun(t *testing.T) {
	store := windowsLinuxFleet()
	store.finalizeFailure = errors.New("db down")
	store.automations["auto-1"] = &Automation{
		Id:         "auto-1",
		OrgId:      "org-1",
		Name:       "Retried run",
		RawTrigger: json.RawMessage(`{"type":"manual"}`),
		RawActions: json.RawMessage(`[{"type":"execute_command","command":"uptime"}]`),
	}
	runner := testRunner(store, &fakeDispatcher{}, &fakeEvents{})

	opts := ExecuteRunOpts{
		AutomationId: "auto-1",
		TriggeredBy:  "schedule",
		RunId:        "run-redelivered",
	}
	if _, err := runner.ExecuteRun(context.Background(), opts); err == nil {
		t.Fatalf("expected the first attempt to fail at finalize")
	}

	// the queue redelivers the same job, same enqueue-minted run id
	store.finalizeFailure = nil
	run, err := runner.ExecuteRun(context.Background(), opts)
	if err != nil {
		t.Fatalf("expected the redelivered job to resume the run: %s", err)
	}
	if run.Id != "run-redelivered" {
		t.Errorf("expected the original run id to be kept, got %s", run.Id)
	}
	if run.Status != RunStatusCompleted {
		t.Errorf("expected the retry to reach a terminal status, got %s", run.Status)
	}
	if store.finalizedRun == nil || store.finalizedRun.Id != "run-redelivered" {
		t.Fatalf("expected the existing run to be finalized")
	}
	if store.duplicateRunCreates != 1 {
		t.Errorf("expected the retry to resume the existing run record, got %v duplicate creates", store.duplicateRunCreates)
	}
}

func TestExecuteRun_summaryEntryIsLast(t *testing.T) {
	store := windowsLinuxFleet()
	store.automations["auto-1"] = &Automation{
		Id:         "auto-1",
		OrgId:      "org-1",
		Name:       "Summarized",
		RawTrigger: json.RawMessage(`{"type":"manual"}`),
		RawActions: json.RawMessage(`[{"type":"execute_command","command":"uptime"}]`),
	}
	runner := testRunner(store, &fakeDispatcher{}, &fakeEvents{})

	run, err := runner.ExecuteRun(context.Background(), ExecuteRunOpts{AutomationId: "auto-1", TriggeredBy: "manual"})
	if err != nil {
		t.Fatalf("failed to execute run: %s", err)
	}
	if len(run.Log) == 0 {
		t.Fatalf("expected a non-empty run log")
	}
	last := run.Log[len(run.Log)-1]
	if !strings.Contains(last.Message, "2 targeted") {
		t.Errorf("expected a summary entry at the end of the log, got %s", last.Message)
	}
	for i := 1; i < len(run.Log); i++ {
		if run.Log[i].Timestamp.Before(run.Log[i-1].Timestamp) {
			t.Errorf("expected run log to be ordered by timestamp")
		}
	}
	if store.bumpCount != 1 {
		t.Errorf("expected run stats to be bumped once, got %v", store.bumpCount)
	}
}
