package audit

import (
	"errors"
	"time"
)

var ErrorNotInitialized = errors.New("not_initialized")

type Verb string

const (
	Create   Verb = "create"
	Execute  Verb = "execute"
	Trigger  Verb = "trigger"
	Notify   Verb = "notify"
	Dispatch Verb = "dispatch"
)

type EntityType string

const (
	AutomationEntity EntityType = "automation"
	DeviceEntity     EntityType = "device"
	SchedulerEntity  EntityType = "scheduler"
)

type ResourceType string

const (
	AutomationResource ResourceType = "automation"
	RunResource        ResourceType = "run"
	CommandResource    ResourceType = "command"
	AlertResource      ResourceType = "alert"
	DeviceResource     ResourceType = "device"
)

type Status string

const (
	Success Status = "success"
	Failed  Status = "failed"
	Partial Status = "partial"
)

type LogEntries []LogEntry

type LogEntry struct {
	EntityId     string         `bson:"entityId"`
	EntityType   EntityType     `bson:"entityType"`
	Verb         Verb           `bson:"verb"`
	ResourceId   string         `bson:"resourceId,omitempty"`
	ResourceType ResourceType   `bson:"resourceType,omitempty"`
	Status       Status         `bson:"status,omitempty"`
	Timestamp    time.Time      `bson:"timestamp"`
	Data         map[string]any `bson:"data,omitempty"`
}

type Logger interface {
	Log(log LogEntry) error
	GetByEntity(entityId string, entityType EntityType, cursor time.Time, limit int64) (LogEntries, error)
}
