package config

import "breeze/internal/cli"

const (
	MongoHost     = "mongo-host"
	MongoUsername = "mongo-user"
	MongoPassword = "mongo-password"
)

func GetMongoFlags() cli.Flags {
	return cli.Flags{
		{
			Name:         MongoHost,
			DefaultValue: []string{"127.0.0.1:27017"},
			Usage:        "specifies the hostname(s) of the MongoDB instance used for audit logs",
			Type:         cli.FlagTypeStringSlice,
		},
		{
			Name:         MongoUsername,
			DefaultValue: "breeze",
			Usage:        "specifies the username to use to login to the MongoDB instance",
			Type:         cli.FlagTypeString,
		},
		{
			Name:         MongoPassword,
			DefaultValue: "password",
			Usage:        "specifies the password to use to login to the MongoDB instance",
			Type:         cli.FlagTypeString,
		},
	}
}
