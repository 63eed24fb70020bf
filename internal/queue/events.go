package queue

import (
	"breeze/internal/common"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventsPublisher publishes lifecycle events onto the events stream.
// Publication is fire-and-forget: failures are logged and never
// surfaced to the caller
type EventsPublisher struct {
	Queue       Instance
	ServiceLogs chan<- common.ServiceLog
}

type eventEnvelope struct {
	Id        string         `json:"id"`
	Type      string         `json:"type"`
	OrgId     string         `json:"orgId"`
	Payload   map[string]any `json:"payload"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
}

func (p *EventsPublisher) PublishEvent(ctx context.Context, eventType string, orgId string, payload map[string]any, source string) string {
	eventId := uuid.NewString()
	data, err := json.Marshal(eventEnvelope{
		Id:        eventId,
		Type:      eventType,
		OrgId:     orgId,
		Payload:   payload,
		Source:    source,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		p.logf("failed to marshal event[%s]: %s", eventType, err)
		return eventId
	}
	if _, err := p.Queue.Push(PushOpts{
		Data: data,
		Queue: QueueOpts{
			Stream:  StreamEvents,
			Subject: "lifecycle",
		},
	}); err != nil {
		p.logf("failed to publish event[%s]: %s", eventType, err)
	}
	return eventId
}

func (p *EventsPublisher) logf(format string, args ...any) {
	if p.ServiceLogs == nil {
		return
	}
	p.ServiceLogs <- common.ServiceLogf(common.LogLevelWarn, format, args...)
}
