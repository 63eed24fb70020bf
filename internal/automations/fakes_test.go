package automations

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type fakeStore struct {
	mutex sync.Mutex

	automations map[string]*Automation
	devices     []Device
	groups      map[string][]string
	scripts     map[string]Script
	channels    map[string]Channel

	createdRuns         map[string]*Run
	duplicateRunCreates int
	finalizedRun        *Run
	alerts              []*Alert
	bumpCount           int
	ruleId              string

	groupLookups    int
	finalizeFailure error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		automations: map[string]*Automation{},
		groups:      map[string][]string{},
		scripts:     map[string]Script{},
		channels:    map[string]Channel{},
		createdRuns: map[string]*Run{},
		ruleId:      "rule-1",
	}
}

func (s *fakeStore) GetAutomation(ctx context.Context, id string) (*Automation, error) {
	automation, ok := s.automations[id]
	if !ok {
		return nil, fmt.Errorf("%w: automation[%s]", ErrorAutomationNotFound, id)
	}
	copied := *automation
	return &copied, nil
}

func (s *fakeStore) CreateRun(ctx context.Context, run *Run) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.createdRuns[run.Id]; ok {
		s.duplicateRunCreates++
		return nil
	}
	copied := *run
	s.createdRuns[run.Id] = &copied
	return nil
}

func (s *fakeStore) UpdateRunTargetCount(ctx context.Context, runId string, count int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if run, ok := s.createdRuns[runId]; ok {
		run.DevicesTargeted = count
	}
	return nil
}

func (s *fakeStore) FinalizeRun(ctx context.Context, run *Run) error {
	if s.finalizeFailure != nil {
		return s.finalizeFailure
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	copied := *run
	s.finalizedRun = &copied
	return nil
}

func (s *fakeStore) BumpAutomationRunStats(ctx context.Context, automationId string, at time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.bumpCount++
	return nil
}

func (s *fakeStore) ListOrgDevices(ctx context.Context, orgId string) ([]Device, error) {
	devices := []Device{}
	for _, device := range s.devices {
		if device.OrgId == orgId {
			devices = append(devices, device)
		}
	}
	return devices, nil
}

func (s *fakeStore) GetDeviceGroups(ctx context.Context, deviceIds []string) (map[string][]string, error) {
	s.mutex.Lock()
	s.groupLookups++
	s.mutex.Unlock()
	memberships := map[string][]string{}
	for _, id := range deviceIds {
		if groups, ok := s.groups[id]; ok {
			memberships[id] = groups
		}
	}
	return memberships, nil
}

func (s *fakeStore) GetScriptsByIds(ctx context.Context, ids []string) (map[string]Script, error) {
	scripts := map[string]Script{}
	for _, id := range ids {
		if script, ok := s.scripts[id]; ok {
			scripts[id] = script
		}
	}
	return scripts, nil
}

func (s *fakeStore) GetChannelsByIds(ctx context.Context, ids []string) (map[string]Channel, error) {
	channels := map[string]Channel{}
	for _, id := range ids {
		if channel, ok := s.channels[id]; ok {
			channels[id] = channel
		}
	}
	return channels, nil
}

func (s *fakeStore) EnsureAutomationAlertRule(ctx context.Context, orgId string) (string, error) {
	return s.ruleId, nil
}

func (s *fakeStore) CreateAlert(ctx context.Context, alert *Alert) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

type fakeDispatcher struct {
	mutex       sync.Mutex
	dispatched  []QueueCommandOpts
	failDevices map[string]string
}

func (d *fakeDispatcher) QueueCommandForExecution(ctx context.Context, opts QueueCommandOpts) QueueCommandResult {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if reason, ok := d.failDevices[opts.DeviceId]; ok {
		return QueueCommandResult{Error: reason}
	}
	d.dispatched = append(d.dispatched, opts)
	return QueueCommandResult{CommandId: fmt.Sprintf("cmd-%v", len(d.dispatched))}
}

type publishedEvent struct {
	eventType string
	orgId     string
	payload   map[string]any
}

type fakeEvents struct {
	mutex  sync.Mutex
	events []publishedEvent
}

func (e *fakeEvents) PublishEvent(ctx context.Context, eventType string, orgId string, payload map[string]any, source string) string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.events = append(e.events, publishedEvent{eventType: eventType, orgId: orgId, payload: payload})
	return fmt.Sprintf("event-%v", len(e.events))
}

func (e *fakeEvents) typesSeen() []string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	types := []string{}
	for _, event := range e.events {
		types = append(types, event.eventType)
	}
	return types
}

type fakeResolver struct {
	deviceIds  []string
	err        error
	lastConfig DeploymentTargetConfig
	calls      int
}

func (r *fakeResolver) ResolveDeploymentTargets(ctx context.Context, orgId string, config DeploymentTargetConfig) ([]string, error) {
	r.calls++
	r.lastConfig = config
	return r.deviceIds, r.err
}

type fakeEmailSender struct {
	mutex sync.Mutex
	sent  []EmailNotificationOpts
	fail  string
}

func (s *fakeEmailSender) SendEmailNotification(ctx context.Context, opts EmailNotificationOpts) SendResult {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.fail != "" {
		return SendResult{Error: s.fail}
	}
	s.sent = append(s.sent, opts)
	return SendResult{Success: true}
}

type fakeWebhookSender struct {
	mutex sync.Mutex
	sent  []WebhookNotificationOpts
	fail  string
}

func (s *fakeWebhookSender) SendWebhookNotification(ctx context.Context, opts WebhookNotificationOpts) SendResult {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.fail != "" {
		return SendResult{Error: s.fail}
	}
	s.sent = append(s.sent, opts)
	return SendResult{Success: true}
}
