package config

import "breeze/internal/cli"

const (
	OpsListenAddr = "ops-listen-addr"
)

func GetOpsFlags() cli.Flags {
	return cli.Flags{
		{
			Name:         OpsListenAddr,
			DefaultValue: "0.0.0.0:9090",
			Usage:        "specifies the listen address of the health/metrics server",
			Type:         cli.FlagTypeString,
		},
	}
}
