package models

import (
	"breeze/internal/automations"
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DeploymentTargets resolves structured deployment target configs
// into concrete device id lists
type DeploymentTargets struct {
	Db *sql.DB
}

func (d *DeploymentTargets) ResolveDeploymentTargets(ctx context.Context, orgId string, config automations.DeploymentTargetConfig) ([]string, error) {
	store := &Store{Db: d.Db}
	switch config.Type {
	case "all":
		devices, err := store.ListOrgDevices(ctx, orgId)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(devices))
		for _, device := range devices {
			ids = append(ids, device.Id)
		}
		return ids, nil
	case "devices":
		devices, err := store.ListOrgDevices(ctx, orgId)
		if err != nil {
			return nil, err
		}
		orgDeviceIds := map[string]bool{}
		for _, device := range devices {
			orgDeviceIds[device.Id] = true
		}
		ids := []string{}
		for _, id := range config.DeviceIds {
			if orgDeviceIds[id] {
				ids = append(ids, id)
			}
		}
		return ids, nil
	case "groups":
		return d.resolveGroupTargets(orgId, config.GroupIds)
	case "filter":
		devices, err := store.ListOrgDevices(ctx, orgId)
		if err != nil {
			return nil, err
		}
		ids := []string{}
		for _, device := range devices {
			if deviceMatchesFilter(device, config.Filter) {
				ids = append(ids, device.Id)
			}
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("unknown deployment target type[%s]: %w", config.Type, ErrorInvalidInput)
	}
}

func (d *DeploymentTargets) resolveGroupTargets(orgId string, groupIds []string) ([]string, error) {
	if len(groupIds) == 0 {
		return []string{}, nil
	}
	args := []any{orgId}
	for _, id := range groupIds {
		args = append(args, id)
	}
	ids := []string{}
	if err := executeMysqlSelects(mysqlQueryInput{
		Db: d.Db,
		Stmt: fmt.Sprintf(`
			SELECT DISTINCT m.device_id
			  FROM device_group_members m
			  JOIN devices d ON d.id = m.device_id
			 WHERE d.org_id = ?
			   AND m.group_id IN (%s)`, sqlPlaceholders(len(groupIds))),
		Args:     args,
		FnSource: "models.DeploymentTargets.resolveGroupTargets",
		ProcessRows: func(rows *sql.Rows) error {
			var deviceId string
			if err := rows.Scan(&deviceId); err != nil {
				return err
			}
			ids = append(ids, deviceId)
			return nil
		},
	}); err != nil {
		return nil, err
	}
	return ids, nil
}

// deviceMatchesFilter applies simple equality filters; the tag key
// checks list membership instead
func deviceMatchesFilter(device automations.Device, filter map[string]any) bool {
	for key, rawWant := range filter {
		want, ok := rawWant.(string)
		if !ok {
			return false
		}
		switch key {
		case "osType":
			if !strings.EqualFold(device.OsType, want) {
				return false
			}
		case "status":
			if !strings.EqualFold(device.Status, want) {
				return false
			}
		case "siteId":
			if !strings.EqualFold(device.SiteId, want) {
				return false
			}
		case "hostname":
			if !strings.EqualFold(device.Hostname, want) {
				return false
			}
		case "tag":
			isTagged := false
			for _, tag := range device.Tags {
				if strings.EqualFold(tag, want) {
					isTagged = true
					break
				}
			}
			if !isTagged {
				return false
			}
		default:
			return false
		}
	}
	return true
}
