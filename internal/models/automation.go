package models

import (
	"breeze/internal/automations"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func (s *Store) GetAutomation(ctx context.Context, id string) (*automations.Automation, error) {
	automation := automations.Automation{}
	var (
		triggerConfig       []byte
		actions             []byte
		conditions          sql.NullString
		onFailure           sql.NullString
		notificationTargets sql.NullString
		lastRunAt           sql.NullTime
		createdBy           sql.NullString
	)
	if err := executeMysqlSelect(mysqlQueryInput{
		Db: s.Db,
		Stmt: `
			SELECT id, org_id, name, is_enabled, trigger_config, actions,
			       conditions, on_failure, notification_targets,
			       run_count, last_run_at, created_by
			  FROM automations
			 WHERE id = ?`,
		Args:     []any{id},
		FnSource: "models.Store.GetAutomation",
		ProcessRow: func(row *sql.Row) error {
			return row.Scan(
				&automation.Id,
				&automation.OrgId,
				&automation.Name,
				&automation.IsEnabled,
				&triggerConfig,
				&actions,
				&conditions,
				&onFailure,
				&notificationTargets,
				&automation.RunCount,
				&lastRunAt,
				&createdBy,
			)
		},
	}); err != nil {
		if errors.Is(err, ErrorNotFound) {
			return nil, fmt.Errorf("%w: automation[%s]", automations.ErrorAutomationNotFound, id)
		}
		return nil, err
	}
	automation.RawTrigger = json.RawMessage(triggerConfig)
	automation.RawActions = json.RawMessage(actions)
	if conditions.Valid {
		automation.RawConditions = json.RawMessage(conditions.String)
	}
	if onFailure.Valid {
		automation.RawOnFailure = onFailure.String
	}
	if notificationTargets.Valid {
		automation.RawNotificationTargets = json.RawMessage(notificationTargets.String)
	}
	if lastRunAt.Valid {
		automation.LastRunAt = &lastRunAt.Time
	}
	if createdBy.Valid {
		automation.CreatedBy = createdBy.String
	}
	return &automation, nil
}

// ListEnabledAutomations returns every enabled automation; trigger
// filtering happens in memory after normalization since the trigger
// type lives inside a json column
func (s *Store) ListEnabledAutomations(ctx context.Context) ([]automations.Automation, error) {
	results := []automations.Automation{}
	if err := executeMysqlSelects(mysqlQueryInput{
		Db: s.Db,
		Stmt: `
			SELECT id, org_id, name, is_enabled, trigger_config, actions,
			       conditions, on_failure, notification_targets,
			       run_count, last_run_at, created_by
			  FROM automations
			 WHERE is_enabled = 1`,
		Args:     []any{},
		FnSource: "models.Store.ListEnabledAutomations",
		ProcessRows: func(rows *sql.Rows) error {
			automation := automations.Automation{}
			var (
				triggerConfig       []byte
				actions             []byte
				conditions          sql.NullString
				onFailure           sql.NullString
				notificationTargets sql.NullString
				lastRunAt           sql.NullTime
				createdBy           sql.NullString
			)
			if err := rows.Scan(
				&automation.Id,
				&automation.OrgId,
				&automation.Name,
				&automation.IsEnabled,
				&triggerConfig,
				&actions,
				&conditions,
				&onFailure,
				&notificationTargets,
				&automation.RunCount,
				&lastRunAt,
				&createdBy,
			); err != nil {
				return err
			}
			automation.RawTrigger = json.RawMessage(triggerConfig)
			automation.RawActions = json.RawMessage(actions)
			if conditions.Valid {
				automation.RawConditions = json.RawMessage(conditions.String)
			}
			if onFailure.Valid {
				automation.RawOnFailure = onFailure.String
			}
			if notificationTargets.Valid {
				automation.RawNotificationTargets = json.RawMessage(notificationTargets.String)
			}
			if lastRunAt.Valid {
				automation.LastRunAt = &lastRunAt.Time
			}
			if createdBy.Valid {
				automation.CreatedBy = createdBy.String
			}
			results = append(results, automation)
			return nil
		},
	}); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) BumpAutomationRunStats(ctx context.Context, automationId string, at time.Time) error {
	return executeMysqlUpdate(mysqlQueryInput{
		Db: s.Db,
		Stmt: `
			UPDATE automations
			   SET run_count = run_count + 1,
			       last_run_at = ?
			 WHERE id = ?`,
		Args:         []any{at, automationId},
		RowsAffected: oneRowAffected,
		FnSource:     "models.Store.BumpAutomationRunStats",
	})
}
