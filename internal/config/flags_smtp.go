package config

import "breeze/internal/cli"

const (
	SmtpHostname      = "smtp-hostname"
	SmtpPort          = "smtp-port"
	SmtpUsername      = "smtp-username"
	SmtpPassword      = "smtp-password"
	SmtpSenderAddress = "smtp-sender-address"
	SmtpSenderName    = "smtp-sender-name"
)

func GetSmtpFlags() cli.Flags {
	return cli.Flags{
		{
			Name:         SmtpHostname,
			DefaultValue: "127.0.0.1",
			Usage:        "specifies the hostname of the smtp relay used for email notifications",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         SmtpPort,
			DefaultValue: 587,
			Usage:        "specifies the port which the smtp relay is listening on",
			Type:         cli.FlagTypeInteger,
		},
		{
			Name:         SmtpUsername,
			DefaultValue: "",
			Usage:        "specifies the username to use to login to the smtp relay",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         SmtpPassword,
			DefaultValue: "",
			Usage:        "specifies the password to use to login to the smtp relay",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         SmtpSenderAddress,
			DefaultValue: "notifications@breeze.local",
			Usage:        "specifies the sender address applied to outgoing notifications",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         SmtpSenderName,
			DefaultValue: "Breeze Notifications",
			Usage:        "specifies the sender display name applied to outgoing notifications",
			Type:         cli.FlagTypeString,
		},
	}
}
