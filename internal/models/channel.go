package models

import (
	"breeze/internal/automations"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

func (s *Store) GetChannelsByIds(ctx context.Context, ids []string) (map[string]automations.Channel, error) {
	channels := map[string]automations.Channel{}
	if len(ids) == 0 {
		return channels, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	if err := executeMysqlSelects(mysqlQueryInput{
		Db: s.Db,
		Stmt: fmt.Sprintf(`
			SELECT id, org_id, name, type, config
			  FROM notification_channels
			 WHERE id IN (%s)`, sqlPlaceholders(len(ids))),
		Args:     args,
		FnSource: "models.Store.GetChannelsByIds",
		ProcessRows: func(rows *sql.Rows) error {
			channel := automations.Channel{}
			var config sql.NullString
			if err := rows.Scan(
				&channel.Id,
				&channel.OrgId,
				&channel.Name,
				&channel.Type,
				&config,
			); err != nil {
				return err
			}
			if config.Valid && config.String != "" {
				if err := json.Unmarshal([]byte(config.String), &channel.Config); err != nil {
					return fmt.Errorf("failed to parse config of channel[%s]: %w", channel.Id, err)
				}
			}
			channels[channel.Id] = channel
			return nil
		},
	}); err != nil {
		return nil, err
	}
	return channels, nil
}
