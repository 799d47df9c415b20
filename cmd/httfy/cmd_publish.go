package main

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-httfy/pkg/client"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
)

const defaultAPIURL = "http://localhost:8080"

type PublishCmd struct {
	flags  *Flags
	apiURL string
	input  client.PublishInput
	asJSON bool
}

func NewPublishCmd(flags *Flags) *PublishCmd {
	return &PublishCmd{flags: flags}
}

func apiURLFlag(dst *string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "api-url",
		Usage:       "base URL of the httfy API",
		Sources:     cli.EnvVars("HTTFY_API_URL"),
		Value:       defaultAPIURL,
		Destination: dst,
	}
}

func (cmd *PublishCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "publish",
		Usage:     "Send a notification to a topic",
		UsageText: "httfy publish --topic alerts --title Hi --message 'Hello there' [options]",
		Flags: []cli.Flag{
			apiURLFlag(&cmd.apiURL),
			&cli.StringFlag{Name: "topic", Aliases: []string{"t"}, Usage: "target topic", Required: true, Destination: &cmd.input.Topic},
			&cli.StringFlag{Name: "title", Usage: "notification title", Required: true, Destination: &cmd.input.Title},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "notification body", Required: true, Destination: &cmd.input.Message},
			&cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Usage: "priority 1 (min) to 5 (max)", Value: "3", Destination: &cmd.input.Priority},
			&cli.StringFlag{Name: "tags", Usage: "comma separated tags", Destination: &cmd.input.Tags},
			&cli.StringFlag{Name: "link", Usage: "click-through URL", Destination: &cmd.input.Link},
			&cli.StringFlag{Name: "icon", Usage: "icon URL", Destination: &cmd.input.Icon},
			&cli.BoolFlag{Name: "json", Usage: "print the receipt as JSON", Destination: &cmd.asJSON},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *PublishCmd) run(ctx context.Context, c *cli.Command) error {
	cl, err := client.New(cmd.apiURL, client.WithLogger(cmd.flags.Logger.With(logger.F("component", "client"))))
	if err != nil {
		return err
	}
	receipt, err := cl.Publish(ctx, cmd.input)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", cmd.input.Topic, err)
	}

	out := c.Root().Writer
	if cmd.asJSON {
		return json.NewEncoder(out).Encode(receipt)
	}
	_, err = fmt.Fprintf(out, "sent to %s: %s\n", cmd.input.Topic, receipt.MessageID)
	return err
}
