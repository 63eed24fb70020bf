package models

import (
	"breeze/internal/automations"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

func (s *Store) ListOrgDevices(ctx context.Context, orgId string) ([]automations.Device, error) {
	devices := []automations.Device{}
	if err := executeMysqlSelects(mysqlQueryInput{
		Db: s.Db,
		Stmt: `
			SELECT id, org_id, hostname, display_name, os_type, status, site_id, tags
			  FROM devices
			 WHERE org_id = ?`,
		Args:     []any{orgId},
		FnSource: "models.Store.ListOrgDevices",
		ProcessRows: func(rows *sql.Rows) error {
			device := automations.Device{}
			var (
				displayName sql.NullString
				siteId      sql.NullString
				tags        sql.NullString
			)
			if err := rows.Scan(
				&device.Id,
				&device.OrgId,
				&device.Hostname,
				&displayName,
				&device.OsType,
				&device.Status,
				&siteId,
				&tags,
			); err != nil {
				return err
			}
			if displayName.Valid {
				device.DisplayName = displayName.String
			}
			if siteId.Valid {
				device.SiteId = siteId.String
			}
			if tags.Valid && tags.String != "" {
				if err := json.Unmarshal([]byte(tags.String), &device.Tags); err != nil {
					return fmt.Errorf("failed to parse tags of device[%s]: %w", device.Id, err)
				}
			}
			devices = append(devices, device)
			return nil
		},
	}); err != nil {
		return nil, err
	}
	return devices, nil
}

// GetDeviceGroups returns group memberships for all requested devices
// in one round trip
func (s *Store) GetDeviceGroups(ctx context.Context, deviceIds []string) (map[string][]string, error) {
	memberships := map[string][]string{}
	if len(deviceIds) == 0 {
		return memberships, nil
	}
	args := make([]any, 0, len(deviceIds))
	for _, id := range deviceIds {
		args = append(args, id)
	}
	if err := executeMysqlSelects(mysqlQueryInput{
		Db: s.Db,
		Stmt: fmt.Sprintf(`
			SELECT device_id, group_id
			  FROM device_group_members
			 WHERE device_id IN (%s)`, sqlPlaceholders(len(deviceIds))),
		Args:     args,
		FnSource: "models.Store.GetDeviceGroups",
		ProcessRows: func(rows *sql.Rows) error {
			var deviceId, groupId string
			if err := rows.Scan(&deviceId, &groupId); err != nil {
				return err
			}
			memberships[deviceId] = append(memberships[deviceId], groupId)
			return nil
		},
	}); err != nil {
		return nil, err
	}
	return memberships, nil
}
