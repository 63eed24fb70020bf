package models

import (
	"breeze/internal/automations"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// CreateRun inserts the run record. Run ids are minted at enqueue
// time, so a redelivered run job arrives with the id of a previous
// attempt; an existing row with the same id means that attempt got
// past creation and the retry resumes the run instead of failing
func (s *Store) CreateRun(ctx context.Context, run *automations.Run) error {
	logJson, err := json.Marshal(run.Log)
	if err != nil {
		return fmt.Errorf("failed to marshal run log: %w", err)
	}
	err = executeMysqlInsert(mysqlQueryInput{
		Db: s.Db,
		Stmt: `
			INSERT INTO automation_runs (
				id, automation_id, triggered_by, status,
				devices_targeted, devices_succeeded, devices_failed,
				log, started_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		Args: []any{
			run.Id,
			run.AutomationId,
			run.TriggeredBy,
			string(run.Status),
			run.DevicesTargeted,
			run.DevicesSucceeded,
			run.DevicesFailed,
			string(logJson),
			run.StartedAt,
		},
		RowsAffected: oneRowAffected,
		FnSource:     "models.Store.CreateRun",
	})
	if errors.Is(err, ErrorDuplicateEntry) {
		return nil
	}
	return err
}

func (s *Store) UpdateRunTargetCount(ctx context.Context, runId string, count int) error {
	return executeMysqlUpdate(mysqlQueryInput{
		Db: s.Db,
		Stmt: `
			UPDATE automation_runs
			   SET devices_targeted = ?
			 WHERE id = ?`,
		Args:         []any{count, runId},
		RowsAffected: atMostNRowsAffected(1),
		FnSource:     "models.Store.UpdateRunTargetCount",
	})
}

// FinalizeRun writes the terminal state of a run in a single
// statement; the run record is immutable afterwards
func (s *Store) FinalizeRun(ctx context.Context, run *automations.Run) error {
	logJson, err := json.Marshal(run.Log)
	if err != nil {
		return fmt.Errorf("failed to marshal run log: %w", err)
	}
	return executeMysqlUpdate(mysqlQueryInput{
		Db: s.Db,
		Stmt: `
			UPDATE automation_runs
			   SET status = ?,
			       devices_targeted = ?,
			       devices_succeeded = ?,
			       devices_failed = ?,
			       log = ?,
			       completed_at = ?
			 WHERE id = ?`,
		Args: []any{
			string(run.Status),
			run.DevicesTargeted,
			run.DevicesSucceeded,
			run.DevicesFailed,
			string(logJson),
			run.CompletedAt,
			run.Id,
		},
		RowsAffected: atMostNRowsAffected(1),
		FnSource:     "models.Store.FinalizeRun",
	})
}
