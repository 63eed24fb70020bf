package automations

import (
	"context"
	"fmt"
	"strings"
)

// ChannelDispatcher routes a normalized notification payload to the
// sender matching the channel's type. Dispatch never returns an
// error: failures come back as an unsuccessful SendResult
type ChannelDispatcher struct {
	Email   EmailSender
	Webhook WebhookSender
}

type DispatchChannelOpts struct {
	Channel    Channel
	Title      string
	Message    string
	Severity   string
	OrgId      string
	AlertId    string
	DeviceId   string
	DeviceName string
}

func (d *ChannelDispatcher) Dispatch(ctx context.Context, opts DispatchChannelOpts) SendResult {
	channel := opts.Channel
	switch strings.ToLower(channel.Type) {
	case "email":
		recipients := configStringList(channel.Config, "recipients")
		if len(recipients) == 0 {
			return SendResult{Error: fmt.Sprintf("channel[%s] has no recipients configured", channel.Id)}
		}
		return d.Email.SendEmailNotification(ctx, EmailNotificationOpts{
			Recipients: recipients,
			Title:      opts.Title,
			Message:    opts.Message,
			Severity:   opts.Severity,
		})
	case "webhook":
		url := configString(channel.Config, "url")
		if url == "" {
			return SendResult{Error: fmt.Sprintf("channel[%s] has no webhook url configured", channel.Id)}
		}
		return d.Webhook.SendWebhookNotification(ctx, WebhookNotificationOpts{
			Url:     url,
			Method:  configString(channel.Config, "method"),
			Headers: configStringMap(channel.Config, "headers"),
			Payload: d.webhookPayload(opts),
		})
	case "slack", "teams":
		url := configString(channel.Config, "webhookUrl")
		if url == "" {
			url = configString(channel.Config, "url")
		}
		if url == "" {
			return SendResult{Error: fmt.Sprintf("channel[%s] of type[%s] has no webhook url configured", channel.Id, channel.Type)}
		}
		return d.Webhook.SendWebhookNotification(ctx, WebhookNotificationOpts{
			Url:     url,
			Payload: d.webhookPayload(opts),
		})
	default:
		return SendResult{Error: fmt.Sprintf("channel type[%s] is not implemented", channel.Type)}
	}
}

func (d *ChannelDispatcher) webhookPayload(opts DispatchChannelOpts) map[string]any {
	return map[string]any{
		"title":      opts.Title,
		"message":    opts.Message,
		"severity":   opts.Severity,
		"orgId":      opts.OrgId,
		"alertId":    opts.AlertId,
		"deviceId":   opts.DeviceId,
		"deviceName": opts.DeviceName,
	}
}

func configString(config map[string]any, key string) string {
	if config == nil {
		return ""
	}
	if value, ok := config[key].(string); ok {
		return value
	}
	return ""
}

func configStringList(config map[string]any, key string) []string {
	if config == nil {
		return nil
	}
	values := []string{}
	switch raw := config[key].(type) {
	case []string:
		values = append(values, raw...)
	case []any:
		for _, item := range raw {
			if value, ok := item.(string); ok && value != "" {
				values = append(values, value)
			}
		}
	}
	return values
}

func configStringMap(config map[string]any, key string) map[string]string {
	if config == nil {
		return nil
	}
	raw, ok := config[key].(map[string]any)
	if !ok {
		return nil
	}
	values := map[string]string{}
	for k, v := range raw {
		if value, ok := v.(string); ok {
			values[k] = value
		}
	}
	return values
}
