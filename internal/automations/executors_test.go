package automations

import (
	"context"
	"strings"
	"testing"
)

func testExecContext(store *fakeStore, dispatcher *fakeDispatcher, events *fakeEvents) ExecContext {
	return ExecContext{
		Automation: &Automation{
			Id:        "auto-1",
			OrgId:     "org-1",
			Name:      "Patch tuesday",
			CreatedBy: "user-1",
		},
		RunId:      "run-1",
		Device:     Device{Id: "dev-1", OrgId: "org-1", Hostname: "win-01", OsType: "windows"},
		Scripts:    store.scripts,
		Channels:   store.channels,
		Dispatcher: dispatcher,
		Store:      store,
		Events:     events,
		Channel: &ChannelDispatcher{
			Email:   &fakeEmailSender{},
			Webhook: &fakeWebhookSender{},
		},
	}
}

func TestExecuteAction_runScript(t *testing.T) {
	store := newFakeStore()
	store.scripts["script-1"] = Script{
		Id:             "script-1",
		Name:           "cleanup",
		Language:       "powershell",
		Content:        "Get-ChildItem",
		TimeoutSeconds: 600,
		RunAs:          "system",
		OsTypes:        []string{"windows"},
	}
	dispatcher := &fakeDispatcher{}
	execCtx := testExecContext(store, dispatcher, &fakeEvents{})

	isSuccess, entry := ExecuteAction(context.Background(), execCtx, 0, Action{
		Type:      ActionTypeRunScript,
		RunScript: &RunScriptAction{ScriptId: "script-1", RunAs: "admin"},
	})
	if !isSuccess {
		t.Fatalf("expected success, got log: %s", entry.Message)
	}
	if entry.CommandId == "" {
		t.Errorf("expected command id on the log entry")
	}
	if len(dispatcher.dispatched) != 1 {
		t.Fatalf("expected one dispatched command, got %v", len(dispatcher.dispatched))
	}
	dispatched := dispatcher.dispatched[0]
	if dispatched.IdempotencyKey != "run-1:dev-1:0" {
		t.Errorf("expected composite idempotency key, got %s", dispatched.IdempotencyKey)
	}
	if dispatched.Payload["runAs"] != "admin" {
		t.Errorf("expected action run-as override to win, got %v", dispatched.Payload["runAs"])
	}
	if dispatched.CommandType != CommandTypeScript {
		t.Errorf("expected script command type, got %s", dispatched.CommandType)
	}
}

func TestExecuteAction_runScriptOsMismatch(t *testing.T) {
	store := newFakeStore()
	store.scripts["script-1"] = Script{Id: "script-1", OsTypes: []string{"windows"}}
	dispatcher := &fakeDispatcher{}
	execCtx := testExecContext(store, dispatcher, &fakeEvents{})
	execCtx.Device = Device{Id: "dev-2", OrgId: "org-1", Hostname: "lin-01", OsType: "linux"}

	isSuccess, entry := ExecuteAction(context.Background(), execCtx, 0, Action{
		Type:      ActionTypeRunScript,
		RunScript: &RunScriptAction{ScriptId: "script-1"},
	})
	if isSuccess {
		t.Fatalf("expected failure for unsupported os")
	}
	if entry.Message != "OS type does not match" {
		t.Errorf("expected os mismatch log message, got %s", entry.Message)
	}
	if len(dispatcher.dispatched) != 0 {
		t.Errorf("expected no dispatch on os mismatch")
	}
}

func TestExecuteAction_runScriptUnresolved(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	execCtx := testExecContext(store, dispatcher, &fakeEvents{})

	isSuccess, entry := ExecuteAction(context.Background(), execCtx, 0, Action{
		Type:      ActionTypeRunScript,
		RunScript: &RunScriptAction{ScriptId: "script-404"},
	})
	if isSuccess {
		t.Fatalf("expected failure for unresolved script")
	}
	if !strings.Contains(entry.Message, "script-404") {
		t.Errorf("expected log to name the missing script, got %s", entry.Message)
	}
}

func TestExecuteAction_executeCommandShellSelection(t *testing.T) {
	tests := []struct {
		osType string
		hint   string
		want   string
	}{
		{"windows", "", ShellPowershell},
		{"linux", "", ShellBash},
		{"darwin", "", ShellBash},
		{"windows", "cmd", ShellCmd},
		{"windows", "bash", ShellBash},
		{"linux", "powershell", ShellPowershell},
		{"linux", "zsh", ShellBash},
	}
	for _, test := range tests {
		store := newFakeStore()
		dispatcher := &fakeDispatcher{}
		execCtx := testExecContext(store, dispatcher, &fakeEvents{})
		execCtx.Device.OsType = test.osType

		isSuccess, _ := ExecuteAction(context.Background(), execCtx, 2, Action{
			Type:           ActionTypeExecuteCommand,
			ExecuteCommand: &ExecuteCommandAction{Command: "uptime", Shell: test.hint},
		})
		if !isSuccess {
			t.Fatalf("expected success for os[%s] hint[%s]", test.osType, test.hint)
		}
		dispatched := dispatcher.dispatched[0]
		if dispatched.Payload["shell"] != test.want {
			t.Errorf("os[%s] hint[%s]: expected shell %s, got %v", test.osType, test.hint, test.want, dispatched.Payload["shell"])
		}
		if dispatched.IdempotencyKey != "run-1:dev-1:2" {
			t.Errorf("expected idempotency key with action index, got %s", dispatched.IdempotencyKey)
		}
	}
}

func TestExecuteAction_dispatchFailure(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{failDevices: map[string]string{"dev-1": "queue unavailable"}}
	execCtx := testExecContext(store, dispatcher, &fakeEvents{})

	isSuccess, entry := ExecuteAction(context.Background(), execCtx, 0, Action{
		Type:           ActionTypeExecuteCommand,
		ExecuteCommand: &ExecuteCommandAction{Command: "uptime"},
	})
	if isSuccess {
		t.Fatalf("expected dispatch failure to be a failed outcome")
	}
	if !strings.Contains(entry.Message, "queue unavailable") {
		t.Errorf("expected log to carry the queue error, got %s", entry.Message)
	}
}

func TestExecuteAction_sendNotification(t *testing.T) {
	store := newFakeStore()
	store.channels["chan-1"] = Channel{
		Id:     "chan-1",
		Name:   "ops email",
		Type:   "email",
		Config: map[string]any{"recipients": []any{"ops@example.com"}},
	}
	email := &fakeEmailSender{}
	execCtx := testExecContext(store, &fakeDispatcher{}, &fakeEvents{})
	execCtx.Channel = &ChannelDispatcher{Email: email, Webhook: &fakeWebhookSender{}}

	isSuccess, entry := ExecuteAction(context.Background(), execCtx, 1, Action{
		Type:             ActionTypeSendNotification,
		SendNotification: &SendNotificationAction{ChannelId: "chan-1"},
	})
	if !isSuccess {
		t.Fatalf("expected success, got log: %s", entry.Message)
	}
	if entry.ChannelId != "chan-1" {
		t.Errorf("expected channel id on the log entry")
	}
	if len(email.sent) != 1 {
		t.Fatalf("expected one email, got %v", len(email.sent))
	}
	// defaults derived from automation name and device hostname
	if !strings.Contains(email.sent[0].Title, "Patch tuesday") {
		t.Errorf("expected default title from automation name, got %s", email.sent[0].Title)
	}
	if !strings.Contains(email.sent[0].Message, "win-01") {
		t.Errorf("expected default message to mention the device, got %s", email.sent[0].Message)
	}
}

func TestExecuteAction_sendNotificationChannelUnresolved(t *testing.T) {
	store := newFakeStore()
	execCtx := testExecContext(store, &fakeDispatcher{}, &fakeEvents{})

	isSuccess, entry := ExecuteAction(context.Background(), execCtx, 0, Action{
		Type:             ActionTypeSendNotification,
		SendNotification: &SendNotificationAction{ChannelId: "chan-404"},
	})
	if isSuccess {
		t.Fatalf("expected failure for unresolved channel")
	}
	if !strings.Contains(entry.Message, "chan-404") {
		t.Errorf("expected log to name the missing channel, got %s", entry.Message)
	}
}

func TestExecuteAction_createAlert(t *testing.T) {
	store := newFakeStore()
	events := &fakeEvents{}
	execCtx := testExecContext(store, &fakeDispatcher{}, events)

	isSuccess, entry := ExecuteAction(context.Background(), execCtx, 0, Action{
		Type:        ActionTypeCreateAlert,
		CreateAlert: &CreateAlertAction{Message: "disk full"},
	})
	if !isSuccess {
		t.Fatalf("expected success, got log: %s", entry.Message)
	}
	if len(store.alerts) != 1 {
		t.Fatalf("expected one alert row, got %v", len(store.alerts))
	}
	alert := store.alerts[0]
	if alert.Severity != DefaultSeverity {
		t.Errorf("expected default severity, got %s", alert.Severity)
	}
	if alert.RuleId != "rule-1" {
		t.Errorf("expected provisioned rule id, got %s", alert.RuleId)
	}
	if alert.AutomationId != "auto-1" || alert.RunId != "run-1" {
		t.Errorf("expected alert to be tagged with automation and run")
	}
	if entry.AlertId != alert.Id {
		t.Errorf("expected alert id on the log entry")
	}
	types := events.typesSeen()
	if len(types) != 1 || types[0] != "alert.triggered" {
		t.Errorf("expected alert.triggered event, got %v", types)
	}
}

func TestChannelDispatcher_unimplementedTypes(t *testing.T) {
	dispatcher := &ChannelDispatcher{Email: &fakeEmailSender{}, Webhook: &fakeWebhookSender{}}

	result := dispatcher.Dispatch(context.Background(), DispatchChannelOpts{
		Channel: Channel{Id: "chan-1", Type: "pager"},
	})
	if result.Success || result.Error == "" {
		t.Errorf("expected unimplemented channel failure")
	}

	result = dispatcher.Dispatch(context.Background(), DispatchChannelOpts{
		Channel: Channel{Id: "chan-2", Type: "slack", Config: map[string]any{}},
	})
	if result.Success || !strings.Contains(result.Error, "webhook url") {
		t.Errorf("expected missing webhook url failure, got %+v", result)
	}

	result = dispatcher.Dispatch(context.Background(), DispatchChannelOpts{
		Channel: Channel{Id: "chan-3", Type: "email", Config: map[string]any{}},
	})
	if result.Success || !strings.Contains(result.Error, "recipients") {
		t.Errorf("expected missing recipients failure, got %+v", result)
	}
}

func TestChannelDispatcher_slackUsesWebhookSender(t *testing.T) {
	webhook := &fakeWebhookSender{}
	dispatcher := &ChannelDispatcher{Email: &fakeEmailSender{}, Webhook: webhook}

	result := dispatcher.Dispatch(context.Background(), DispatchChannelOpts{
		Channel: Channel{
			Id:     "chan-1",
			Type:   "slack",
			Config: map[string]any{"webhookUrl": "https://hooks.slack.example/abc"},
		},
		Title:   "hello",
		Message: "world",
	})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(webhook.sent) != 1 {
		t.Fatalf("expected one webhook call")
	}
	if webhook.sent[0].Url != "https://hooks.slack.example/abc" {
		t.Errorf("expected slack webhook url to be used, got %s", webhook.sent[0].Url)
	}
	if webhook.sent[0].Payload["title"] != "hello" {
		t.Errorf("expected payload title, got %v", webhook.sent[0].Payload["title"])
	}
}
