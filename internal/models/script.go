package models

import (
	"breeze/internal/automations"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

func (s *Store) GetScriptsByIds(ctx context.Context, ids []string) (map[string]automations.Script, error) {
	scripts := map[string]automations.Script{}
	if len(ids) == 0 {
		return scripts, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	if err := executeMysqlSelects(mysqlQueryInput{
		Db: s.Db,
		Stmt: fmt.Sprintf(`
			SELECT id, org_id, name, language, content, timeout_seconds, run_as, os_types
			  FROM scripts
			 WHERE id IN (%s)`, sqlPlaceholders(len(ids))),
		Args:     args,
		FnSource: "models.Store.GetScriptsByIds",
		ProcessRows: func(rows *sql.Rows) error {
			script := automations.Script{}
			var (
				runAs   sql.NullString
				osTypes sql.NullString
			)
			if err := rows.Scan(
				&script.Id,
				&script.OrgId,
				&script.Name,
				&script.Language,
				&script.Content,
				&script.TimeoutSeconds,
				&runAs,
				&osTypes,
			); err != nil {
				return err
			}
			if runAs.Valid {
				script.RunAs = runAs.String
			}
			if osTypes.Valid && osTypes.String != "" {
				if err := json.Unmarshal([]byte(osTypes.String), &script.OsTypes); err != nil {
					return fmt.Errorf("failed to parse os types of script[%s]: %w", script.Id, err)
				}
			}
			scripts[script.Id] = script
			return nil
		},
	}); err != nil {
		return nil, err
	}
	return scripts, nil
}
