package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/urfave/cli/v3"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}
	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	flags := &Flags{}
	app := newApp(flags)

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newApp(flags *Flags) *cli.Command {
	app := &cli.Command{
		Name:      "httfy",
		Usage:     "Publish and receive topic push notifications",
		UsageText: "httfy [global options] command [command options]",
		Description: `httfy runs a small push notification service and its clients.

Run 'httfy serve' to start the HTTP API and websocket relay.
Run 'httfy publish' to send a notification to a topic.
Run 'httfy listen' to subscribe to topics and print what arrives.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("HTTFY_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "log format (text, json)",
				Sources:     cli.EnvVars("HTTFY_LOG_FORMAT"),
				Value:       "text",
				Destination: &flags.LogFormat,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to a JSON config file",
				Sources:     cli.EnvVars("HTTFY_CONFIG"),
				Destination: &flags.ConfigPath,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := loadConfig(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			if c.IsSet("log-level") {
				cfg.Logging.Level = flags.LogLevel
			}
			if c.IsSet("log-format") {
				cfg.Logging.Format = flags.LogFormat
			}
			if err := cfg.Validate(); err != nil {
				return ctx, fmt.Errorf("config: %w", err)
			}

			l, err := newLogger(cfg.Logging)
			if err != nil {
				return ctx, err
			}
			flags.Config = &cfg
			flags.Logger = l
			return ctx, nil
		},
	}

	app = NewServeCmd(flags).Register(app)
	app = NewPublishCmd(flags).Register(app)
	app = NewListenCmd(flags).Register(app)
	return app
}
