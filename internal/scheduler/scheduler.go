package scheduler

import (
	"breeze/internal/automations"
	"breeze/internal/common"
	"breeze/internal/queue"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const firedKeyTtl = 2 * time.Minute

// Store is what the scheduler needs from persistence: the automation
// list plus the lookups target resolution performs
type Store interface {
	automations.Store
	ListEnabledAutomations(ctx context.Context) ([]automations.Automation, error)
}

// Scheduler drives schedule-type triggers: every minute it evaluates
// each enabled automation's cron expression in that automation's time
// zone and enqueues a run job for the ones that are due. A shared
// cache key dedupes firings so running multiple scheduler replicas
// does not double-trigger
type Scheduler struct {
	Store       Store
	Resolver    automations.DeploymentTargetResolver
	Cache       common.Cache
	Queue       queue.Instance
	ServiceLogs chan<- common.ServiceLog
}

// Start blocks until the context is cancelled, ticking once per
// minute aligned to the minute boundary
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		now := time.Now()
		nextMinute := now.Truncate(time.Minute).Add(time.Minute)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(nextMinute.Sub(now)):
		}
		if err := s.Tick(ctx, nextMinute); err != nil {
			s.logf(common.LogLevelError, "scheduler tick failed: %s", err)
		}
	}
}

// Tick evaluates all enabled automations against one minute instant.
// A single bad definition is skipped with a warning, never allowed to
// stop the tick
func (s *Scheduler) Tick(ctx context.Context, at time.Time) error {
	tick := at.Truncate(time.Minute)
	enabled, err := s.Store.ListEnabledAutomations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list enabled automations: %w", err)
	}
	for i := range enabled {
		automation := &enabled[i]
		if err := automation.Normalize(); err != nil {
			s.logf(common.LogLevelWarn, "skipping automation[%s]: %s", automation.Id, err)
			continue
		}
		if automation.Trigger.Type != automations.TriggerTypeSchedule {
			continue
		}
		schedule := automation.Trigger.Schedule
		if !automations.IsCronDue(schedule.Cron, schedule.Timezone, tick) {
			continue
		}
		if err := s.fire(ctx, automation, tick); err != nil {
			s.logf(common.LogLevelWarn, "failed to fire automation[%s]: %s", automation.Id, err)
		}
	}
	return nil
}

func (s *Scheduler) fire(ctx context.Context, automation *automations.Automation, tick time.Time) error {
	firedKey := fmt.Sprintf("automations:fired:%s:%v", automation.Id, tick.Unix())
	isFirst, err := s.Cache.SetIfNotExists(firedKey, "1", firedKeyTtl)
	if err != nil {
		return fmt.Errorf("failed to reserve fired key: %w", err)
	}
	if !isFirst {
		return nil
	}

	targetIds, err := automations.ResolveTargets(ctx, automations.ResolveTargetsOpts{
		Automation: automation,
		Store:      s.Store,
		Resolver:   s.Resolver,
	})
	if err != nil {
		return fmt.Errorf("failed to resolve targets: %w", err)
	}
	job := queue.RunJob{
		RunId:           uuid.NewString(),
		AutomationId:    automation.Id,
		OrgId:           automation.OrgId,
		TriggeredBy:     "schedule",
		TargetDeviceIds: targetIds,
	}
	if err := queue.PushRunJob(s.Queue, job); err != nil {
		return err
	}
	s.logf(common.LogLevelInfo, "enqueued run[%s] of automation[%s] for %v devices", job.RunId, automation.Id, len(targetIds))
	return nil
}

func (s *Scheduler) logf(level common.LogLevel, format string, args ...any) {
	if s.ServiceLogs == nil {
		return
	}
	s.ServiceLogs <- common.ServiceLogf(level, format, args...)
}
