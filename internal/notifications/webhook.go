package notifications

import (
	"breeze/internal/automations"
	"breeze/internal/common"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const DefaultWebhookTimeout = 10 * time.Second

// WebhookSender posts notification payloads to arbitrary webhook
// endpoints; slack and teams channels go through here too since both
// accept a json post to their webhook url
type WebhookSender struct {
	Client      *http.Client
	ServiceLogs chan<- common.ServiceLog
}

func NewWebhookSender(serviceLogs chan<- common.ServiceLog) *WebhookSender {
	return &WebhookSender{
		Client:      &http.Client{Timeout: DefaultWebhookTimeout},
		ServiceLogs: serviceLogs,
	}
}

func (s *WebhookSender) SendWebhookNotification(ctx context.Context, opts automations.WebhookNotificationOpts) automations.SendResult {
	if opts.Url == "" {
		return automations.SendResult{Error: "missing webhook url"}
	}
	body, err := json.Marshal(opts.Payload)
	if err != nil {
		return automations.SendResult{Error: fmt.Sprintf("failed to marshal payload: %s", err)}
	}

	method := opts.Method
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, opts.Url, bytes.NewReader(body))
	if err != nil {
		return automations.SendResult{Error: fmt.Sprintf("failed to create request: %s", err)}
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range opts.Headers {
		request.Header.Set(key, value)
	}

	response, err := s.Client.Do(request)
	if err != nil {
		if s.ServiceLogs != nil {
			s.ServiceLogs <- common.ServiceLogf(common.LogLevelWarn, "failed to call webhook[%s]: %s", opts.Url, err)
		}
		return automations.SendResult{Error: fmt.Sprintf("failed to call webhook: %s", err)}
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return automations.SendResult{Error: fmt.Sprintf("webhook returned status[%v]", response.StatusCode)}
	}
	return automations.SendResult{Success: true}
}
