package automations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type legacyCondition struct {
	Type     string `json:"type"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

var structuredTargetTypes = map[string]bool{
	"all":     true,
	"devices": true,
	"groups":  true,
	"filter":  true,
}

type ResolveTargetsOpts struct {
	Automation *Automation
	Store      Store
	Resolver   DeploymentTargetResolver
}

// ResolveTargets turns an automation's stored target selector into a
// deduplicated list of device ids. Three selector shapes are
// recognized and tried in priority order: a structured deployment
// target config, a legacy condition list, and finally an explicit
// device id list on the trigger (or the whole org when that too is
// absent)
func ResolveTargets(ctx context.Context, opts ResolveTargetsOpts) ([]string, error) {
	automation := opts.Automation

	if config, ok := parseDeploymentTargetConfig(automation.RawConditions); ok {
		deviceIds, err := opts.Resolver.ResolveDeploymentTargets(ctx, automation.OrgId, config)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve deployment targets for automation[%s]: %w", automation.Id, err)
		}
		return dedupeIds(deviceIds), nil
	}

	if conditions, ok := parseLegacyConditions(automation.RawConditions); ok {
		deviceIds, err := resolveLegacyConditions(ctx, opts.Store, automation.OrgId, conditions)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve legacy conditions for automation[%s]: %w", automation.Id, err)
		}
		return deviceIds, nil
	}

	devices, err := opts.Store.ListOrgDevices(ctx, automation.OrgId)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices for org[%s]: %w", automation.OrgId, err)
	}
	if len(automation.Trigger.DeviceIds) > 0 {
		orgDeviceIds := map[string]bool{}
		for _, device := range devices {
			orgDeviceIds[device.Id] = true
		}
		scoped := []string{}
		for _, id := range automation.Trigger.DeviceIds {
			if orgDeviceIds[id] {
				scoped = append(scoped, id)
			}
		}
		return dedupeIds(scoped), nil
	}
	allIds := make([]string, 0, len(devices))
	for _, device := range devices {
		allIds = append(allIds, device.Id)
	}
	return dedupeIds(allIds), nil
}

func parseDeploymentTargetConfig(data json.RawMessage) (DeploymentTargetConfig, bool) {
	if len(data) == 0 {
		return DeploymentTargetConfig{}, false
	}
	var config DeploymentTargetConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return DeploymentTargetConfig{}, false
	}
	if !structuredTargetTypes[config.Type] {
		return DeploymentTargetConfig{}, false
	}
	return config, true
}

func parseLegacyConditions(data json.RawMessage) ([]legacyCondition, bool) {
	// only an actual JSON array is a legacy condition list; `null`
	// unmarshals into a nil slice without error and must not be read as
	// an empty list targeting the whole org
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var conditions []legacyCondition
	if err := json.Unmarshal(trimmed, &conditions); err != nil {
		return nil, false
	}
	return conditions, true
}

// resolveLegacyConditions keeps devices for which every condition
// holds. Group memberships for all candidates are fetched in a single
// batched query so the round-trip count stays constant regardless of
// fleet size
func resolveLegacyConditions(ctx context.Context, store Store, orgId string, conditions []legacyCondition) ([]string, error) {
	devices, err := store.ListOrgDevices(ctx, orgId)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices for org[%s]: %w", orgId, err)
	}
	if len(conditions) == 0 {
		ids := make([]string, 0, len(devices))
		for _, device := range devices {
			ids = append(ids, device.Id)
		}
		return dedupeIds(ids), nil
	}

	deviceIds := make([]string, 0, len(devices))
	for _, device := range devices {
		deviceIds = append(deviceIds, device.Id)
	}
	groupsByDevice := map[string][]string{}
	for _, condition := range conditions {
		if condition.Type == "group" {
			groupsByDevice, err = store.GetDeviceGroups(ctx, deviceIds)
			if err != nil {
				return nil, fmt.Errorf("failed to get device group memberships: %w", err)
			}
			break
		}
	}

	matched := []string{}
	for _, device := range devices {
		isMatch := true
		for _, condition := range conditions {
			if !evaluateCondition(condition, device, groupsByDevice[device.Id]) {
				isMatch = false
				break
			}
		}
		if isMatch {
			matched = append(matched, device.Id)
		}
	}
	return dedupeIds(matched), nil
}

// evaluateCondition compares case-insensitively; `contains` and
// `not_contains` use substring semantics. Unknown condition types and
// operators never match
func evaluateCondition(condition legacyCondition, device Device, groupIds []string) bool {
	value := strings.ToLower(condition.Value)
	switch condition.Type {
	case "site":
		return evaluateScalar(condition.Operator, strings.ToLower(device.SiteId), value)
	case "os":
		return evaluateScalar(condition.Operator, strings.ToLower(device.OsType), value)
	case "group":
		return evaluateSet(condition.Operator, groupIds, value)
	case "tag":
		return evaluateSet(condition.Operator, device.Tags, value)
	default:
		return false
	}
}

func evaluateScalar(operator, have, want string) bool {
	switch operator {
	case "is":
		return have == want
	case "is_not":
		return have != want
	case "contains":
		return strings.Contains(have, want)
	case "not_contains":
		return !strings.Contains(have, want)
	default:
		return false
	}
}

func evaluateSet(operator string, haves []string, want string) bool {
	switch operator {
	case "is":
		for _, have := range haves {
			if strings.ToLower(have) == want {
				return true
			}
		}
		return false
	case "is_not":
		for _, have := range haves {
			if strings.ToLower(have) == want {
				return false
			}
		}
		return true
	case "contains":
		for _, have := range haves {
			if strings.Contains(strings.ToLower(have), want) {
				return true
			}
		}
		return false
	case "not_contains":
		for _, have := range haves {
			if strings.Contains(strings.ToLower(have), want) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func dedupeIds(ids []string) []string {
	seen := map[string]bool{}
	deduped := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, id)
	}
	return deduped
}
