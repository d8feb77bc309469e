// Package main defines the relay server binary: a gRPC intermediary
// that lets applications and drivers on one permissioned ledger query
// state, subscribe to events and transfer assets across other ledgers
// through peer relays.
package main

import (
	"os"

	"github.com/dlt-interop/relay/cmd/relay/flags"
	"github.com/dlt-interop/relay/relay/node"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var log = logrus.WithField("prefix", "main")

var appFlags = []cli.Flag{
	flags.ConfigFileFlag,
	flags.VerbosityFlag,
	flags.LogFormatFlag,
	flags.MonitoringHostFlag,
	flags.MonitoringPortFlag,
	flags.DisableMonitoringFlag,
	flags.WatchConfigFlag,
}

func startRelay(cliCtx *cli.Context) error {
	verbosity := cliCtx.String(flags.VerbosityFlag.Name)
	level, err := logrus.ParseLevel(verbosity)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	relay, err := node.New(cliCtx)
	if err != nil {
		return err
	}
	relay.Start()
	return nil
}

func main() {
	app := cli.App{}
	app.Name = "relay"
	app.Usage = "launches a cross-ledger relay server for state sharing, event delivery and asset transfer"
	app.Flags = appFlags
	app.Action = startRelay
	app.Before = func(ctx *cli.Context) error {
		switch format := ctx.String(flags.LogFormatFlag.Name); format {
		case "text":
			formatter := new(prefixed.TextFormatter)
			formatter.TimestampFormat = "2006-01-02 15:04:05"
			formatter.FullTimestamp = true
			logrus.SetFormatter(formatter)
		case "json":
			logrus.SetFormatter(&logrus.JSONFormatter{})
		default:
			log.Fatalf("unknown log format %s", format)
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
