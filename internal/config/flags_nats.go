package config

import "breeze/internal/cli"

const (
	NatsAddr     = "nats-addr"
	NatsUsername = "nats-username"
	NatsPassword = "nats-password"
)

func GetNatsFlags() cli.Flags {
	return cli.Flags{
		{
			Name:         NatsAddr,
			DefaultValue: "localhost:4222",
			Usage:        "specifies the hostname (including port) of the NATS server",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         NatsUsername,
			DefaultValue: "breeze",
			Usage:        "specifies the username used to login to NATS",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         NatsPassword,
			DefaultValue: "password",
			Usage:        "specifies the password used to login to NATS",
			Type:         cli.FlagTypeString,
		},
	}
}
