// Package flags defines the command line flags of the relay binary.
package flags

import (
	"github.com/urfave/cli/v2"
)

var (
	// ConfigFileFlag points at the relay yaml configuration.
	ConfigFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to the relay yaml configuration file",
		Value: "config/relay.yaml",
	}
	// VerbosityFlag defines the logrus level.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info, warn, error, fatal, panic)",
		Value: "info",
	}
	// LogFormatFlag specifies the log output encoding.
	LogFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Specify log formatting. Supports: text, json",
		Value: "text",
	}
	// MonitoringHostFlag defines the host of the metrics server.
	MonitoringHostFlag = &cli.StringFlag{
		Name:  "monitoring-host",
		Usage: "Host used for listening and responding to metrics requests",
		Value: "127.0.0.1",
	}
	// MonitoringPortFlag defines the port of the metrics server.
	MonitoringPortFlag = &cli.IntFlag{
		Name:  "monitoring-port",
		Usage: "Port used for listening and responding to metrics requests",
		Value: 9100,
	}
	// DisableMonitoringFlag disables the metrics server.
	DisableMonitoringFlag = &cli.BoolFlag{
		Name:  "disable-monitoring",
		Usage: "Disable the metrics and health endpoints",
	}
	// WatchConfigFlag reloads the configuration on file change.
	WatchConfigFlag = &cli.BoolFlag{
		Name:  "watch-config",
		Usage: "Reload the configuration file when it changes on disk",
	}
)
