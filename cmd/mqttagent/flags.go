package main

import "github.com/urfave/cli/v2"

var FlagConfig = &cli.StringFlag{
	Name:     "config",
	Usage:    "path to the YAML configuration file",
	EnvVars:  []string{"MQTTAGENT_CONFIG"},
	Required: false,
}

var FlagLogLevel = &cli.StringFlag{
	Name:     "log-level",
	Usage:    "overrides logging.level",
	EnvVars:  []string{"LOG_LEVEL"},
	Required: false,
}

var FlagLogWriter = &cli.StringFlag{
	Name:     "log-writer",
	Usage:    "one of: [console, json]",
	EnvVars:  []string{"LOG_WRITER"},
	Required: false,
}

var FlagBrokerURL = &cli.StringFlag{
	Name:     "broker",
	Usage:    "tcp://broker:port, overrides broker.url",
	Required: false,
}

var FlagClientID = &cli.StringFlag{
	Name:     "client-id",
	Usage:    "overrides broker.client_id",
	Required: false,
}
