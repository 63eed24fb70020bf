package queue

import (
	"encoding/json"
	"fmt"
)

// RunJob is the wire message on the runs stream: one enqueued
// execution of an automation. Targets are captured at enqueue time so
// the executing worker acts on the same fleet the trigger saw
type RunJob struct {
	RunId           string   `json:"runId"`
	AutomationId    string   `json:"automationId"`
	OrgId           string   `json:"orgId"`
	TriggeredBy     string   `json:"triggeredBy"`
	TargetDeviceIds []string `json:"targetDeviceIds"`
}

func PushRunJob(instance Instance, job RunJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal run job: %w", err)
	}
	if _, err := instance.Push(PushOpts{
		Data: data,
		Queue: QueueOpts{
			Stream:  StreamRuns,
			Subject: "execute",
		},
	}); err != nil {
		return fmt.Errorf("failed to push run job: %w", err)
	}
	return nil
}
