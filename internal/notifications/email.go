package notifications

import (
	"breeze/internal/automations"
	"breeze/internal/common"
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type SmtpConfig struct {
	Hostname string
	Port     int
	Username string
	Password string
	Sender   string
}

func (c SmtpConfig) Validate() error {
	errs := []string{}
	if c.Hostname == "" {
		errs = append(errs, "missing smtp hostname")
	}
	if c.Port == 0 {
		errs = append(errs, "missing smtp port")
	}
	if c.Sender == "" {
		errs = append(errs, "missing smtp sender")
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to validate smtp config: %s", strings.Join(errs, ", "))
	}
	return nil
}

// EmailSender delivers notification emails over smtp. Send outcomes
// are reported through the result, never as an error, so callers can
// fold them into per-action outcomes
type EmailSender struct {
	Smtp        SmtpConfig
	ServiceLogs chan<- common.ServiceLog
}

func (s *EmailSender) SendEmailNotification(ctx context.Context, opts automations.EmailNotificationOpts) automations.SendResult {
	if len(opts.Recipients) == 0 {
		return automations.SendResult{Error: "no recipients"}
	}
	if err := s.Smtp.Validate(); err != nil {
		return automations.SendResult{Error: err.Error()}
	}

	subject := opts.Title
	if opts.Severity != "" {
		subject = fmt.Sprintf("[%s] %s", strings.ToUpper(opts.Severity), opts.Title)
	}
	message := strings.Join([]string{
		fmt.Sprintf("From: %s", s.Smtp.Sender),
		fmt.Sprintf("To: %s", strings.Join(opts.Recipients, ", ")),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		opts.Message,
	}, "\r\n")

	var auth smtp.Auth
	if s.Smtp.Username != "" {
		auth = smtp.PlainAuth("", s.Smtp.Username, s.Smtp.Password, s.Smtp.Hostname)
	}
	addr := fmt.Sprintf("%s:%v", s.Smtp.Hostname, s.Smtp.Port)
	if err := smtp.SendMail(addr, auth, s.Smtp.Sender, opts.Recipients, []byte(message)); err != nil {
		if s.ServiceLogs != nil {
			s.ServiceLogs <- common.ServiceLogf(common.LogLevelWarn, "failed to send email to %v recipients: %s", len(opts.Recipients), err)
		}
		return automations.SendResult{Error: fmt.Sprintf("failed to send email: %s", err)}
	}
	return automations.SendResult{Success: true}
}
