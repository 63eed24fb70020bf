package models

import (
	"breeze/internal/automations"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	automationAlertTemplateName = "automation-alert"
	automationAlertRuleName     = "Automation alerts"
)

// EnsureAutomationAlertRule lazily provisions the shared alert
// template and the org-scoped alert rule that automation-created
// alerts hang off. It is idempotent: lookups happen before inserts
// and a duplicate insert from a concurrent run falls back to a
// re-lookup
func (s *Store) EnsureAutomationAlertRule(ctx context.Context, orgId string) (string, error) {
	templateId, err := s.getAlertTemplateIdByName(automationAlertTemplateName)
	if err != nil {
		if !errors.Is(err, ErrorNotFound) {
			return "", err
		}
		templateId = uuid.NewString()
		if err := executeMysqlInsert(mysqlQueryInput{
			Db: s.Db,
			Stmt: `
				INSERT INTO alert_templates (id, name)
				VALUES (?, ?)`,
			Args:         []any{templateId, automationAlertTemplateName},
			RowsAffected: oneRowAffected,
			FnSource:     "models.Store.EnsureAutomationAlertRule",
		}); err != nil {
			if !errors.Is(err, ErrorDuplicateEntry) {
				return "", err
			}
			templateId, err = s.getAlertTemplateIdByName(automationAlertTemplateName)
			if err != nil {
				return "", err
			}
		}
	}

	ruleId, err := s.getAlertRuleId(orgId, automationAlertRuleName)
	if err == nil {
		return ruleId, nil
	}
	if !errors.Is(err, ErrorNotFound) {
		return "", err
	}
	ruleId = uuid.NewString()
	if err := executeMysqlInsert(mysqlQueryInput{
		Db: s.Db,
		Stmt: `
			INSERT INTO alert_rules (id, org_id, name, template_id)
			VALUES (?, ?, ?, ?)`,
		Args:         []any{ruleId, orgId, automationAlertRuleName, templateId},
		RowsAffected: oneRowAffected,
		FnSource:     "models.Store.EnsureAutomationAlertRule",
	}); err != nil {
		if !errors.Is(err, ErrorDuplicateEntry) {
			return "", err
		}
		return s.getAlertRuleId(orgId, automationAlertRuleName)
	}
	return ruleId, nil
}

func (s *Store) getAlertTemplateIdByName(name string) (string, error) {
	var templateId string
	if err := executeMysqlSelect(mysqlQueryInput{
		Db: s.Db,
		Stmt: `
			SELECT id
			  FROM alert_templates
			 WHERE name = ?`,
		Args:     []any{name},
		FnSource: "models.Store.getAlertTemplateIdByName",
		ProcessRow: func(row *sql.Row) error {
			return row.Scan(&templateId)
		},
	}); err != nil {
		return "", err
	}
	return templateId, nil
}

func (s *Store) getAlertRuleId(orgId, name string) (string, error) {
	var ruleId string
	if err := executeMysqlSelect(mysqlQueryInput{
		Db: s.Db,
		Stmt: `
			SELECT id
			  FROM alert_rules
			 WHERE org_id = ?
			   AND name = ?`,
		Args:     []any{orgId, name},
		FnSource: "models.Store.getAlertRuleId",
		ProcessRow: func(row *sql.Row) error {
			return row.Scan(&ruleId)
		},
	}); err != nil {
		return "", err
	}
	return ruleId, nil
}

func (s *Store) CreateAlert(ctx context.Context, alert *automations.Alert) error {
	if alert.Id == "" {
		return fmt.Errorf("missing alert id: %w", ErrorInvalidInput)
	}
	return executeMysqlInsert(mysqlQueryInput{
		Db: s.Db,
		Stmt: `
			INSERT INTO alerts (
				id, org_id, rule_id, device_id, severity,
				title, message, automation_id, run_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		Args: []any{
			alert.Id,
			alert.OrgId,
			alert.RuleId,
			alert.DeviceId,
			alert.Severity,
			alert.Title,
			alert.Message,
			alert.AutomationId,
			alert.RunId,
		},
		RowsAffected: oneRowAffected,
		FnSource:     "models.Store.CreateAlert",
	})
}
