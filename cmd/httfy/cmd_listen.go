package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-httfy/internal/api"
	"github.com/goliatone/go-httfy/internal/feed"
	"github.com/goliatone/go-httfy/internal/relay"
	"github.com/goliatone/go-httfy/pkg/client"
	"github.com/goliatone/go-httfy/pkg/commands"
	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
	"github.com/goliatone/go-httfy/pkg/provider"
	"github.com/goliatone/go-httfy/pkg/session"
)

type ListenCmd struct {
	flags    *Flags
	apiURL   string
	relayURL string
	token    string
	topics   []string
	asJSON   bool
}

func NewListenCmd(flags *Flags) *ListenCmd {
	return &ListenCmd{flags: flags}
}

func (cmd *ListenCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "listen",
		Usage:       "Subscribe to topics and print incoming notifications",
		UsageText:   "httfy listen --topic alerts [--topic builds] [options]",
		Description: "Binds a delivery token to each topic and prints every notification relayed by the server until interrupted.",
		Flags: []cli.Flag{
			apiURLFlag(&cmd.apiURL),
			&cli.StringFlag{
				Name:        "relay-url",
				Usage:       "websocket stream URL (defaults to <api-url>/api/stream)",
				Sources:     cli.EnvVars("HTTFY_RELAY_URL"),
				Destination: &cmd.relayURL,
			},
			&cli.StringFlag{
				Name:        "token",
				Usage:       "delivery token to bind (a random one is generated when empty)",
				Sources:     cli.EnvVars("HTTFY_TOKEN"),
				Destination: &cmd.token,
			},
			&cli.StringSliceFlag{
				Name:        "topic",
				Aliases:     []string{"t"},
				Usage:       "topic to subscribe to (repeatable)",
				Required:    true,
				Destination: &cmd.topics,
			},
			&cli.BoolFlag{Name: "json", Usage: "print notifications as JSON lines", Destination: &cmd.asJSON},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ListenCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := *cmd.flags.Config
	l := cmd.flags.Logger.With(logger.F("component", "listen"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl, err := client.New(cmd.apiURL, client.WithLogger(cmd.flags.Logger.With(logger.F("component", "client"))))
	if err != nil {
		return err
	}

	streamURL := cmd.relayURL
	if streamURL == "" {
		streamURL = cfg.Relay.URL
	}
	if streamURL == "" {
		streamURL = strings.TrimRight(cmd.apiURL, "/") + api.PathStream
	}
	src := relay.NewSource(streamURL, cmd.flags.Logger.With(logger.F("component", "relay")),
		relay.WithReconnect(time.Second, cfg.Relay.ReconnectMax),
		relay.WithConnected(func() { l.Info("relay connected", logger.F("url", relay.StreamURL(streamURL))) }),
	)

	tok := cmd.token
	if tok == "" {
		tok = "cli-" + uuid.NewString()
	}

	backoff, err := cfg.Token.Backoff()
	if err != nil {
		return err
	}

	p := &printer{out: c.Root().Writer, json: cmd.asJSON, logger: l}
	sess, err := session.New(session.Options{
		Bindings:   cl,
		Tokens:     provider.StaticToken(tok),
		VAPIDKey:   cfg.Token.VAPIDKey,
		MaxRetries: cfg.Token.MaxRetries,
		Backoff:    backoff,
		Sources:    []session.Source{src},
		Alerts:     broadcaster.OnlyTopics(broadcaster.Func(p.Broadcast), domain.EventNotificationStored, "toast."),
		Logger:     cmd.flags.Logger.With(logger.F("component", "session")),
	})
	if err != nil {
		return err
	}
	p.topics = sess.Topics

	reg, err := commands.New(commands.Dependencies{Session: sess, Publisher: cl, Logger: l})
	if err != nil {
		return err
	}

	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.Err(); err != nil {
		return fmt.Errorf("delivery token: %w", err)
	}

	subscribed := 0
	for _, topic := range cmd.topics {
		if err := reg.Subscribe.Execute(ctx, commands.SubscribeTopic{Topic: topic}); err != nil {
			l.Warn("subscribe failed", logger.F("topic", topic), logger.Err(err))
			continue
		}
		subscribed++
	}
	if subscribed == 0 {
		return fmt.Errorf("no topic could be subscribed")
	}

	<-ctx.Done()

	// The session is ending, so let the server drop the bindings too.
	cleanup, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, topic := range sess.Topics() {
		if err := reg.Unsubscribe.Execute(cleanup, commands.UnsubscribeTopic{Topic: topic}); err != nil {
			l.Warn("unsubscribe failed", logger.F("topic", topic), logger.Err(err))
		}
	}
	return nil
}

// printer renders visible notifications and alerts for the terminal.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	json   bool
	logger logger.Logger
	topics func() []string
}

func (p *printer) Broadcast(ctx context.Context, evt broadcaster.Event) error {
	switch payload := evt.Payload.(type) {
	case domain.Notification:
		if evt.Topic != domain.EventNotificationStored {
			return nil
		}
		if p.topics != nil && !feed.Matches(payload.Topic, p.topics()) {
			return nil
		}
		return p.notification(payload)
	case domain.Alert:
		fields := []logger.Field{logger.F("title", payload.Title)}
		if payload.Description != "" {
			fields = append(fields, logger.F("detail", payload.Description))
		}
		if payload.Level == domain.AlertError {
			p.logger.Error("alert", fields...)
		} else {
			p.logger.Info("alert", fields...)
		}
	}
	return nil
}

func (p *printer) notification(n domain.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		return json.NewEncoder(p.out).Encode(n)
	}
	line := fmt.Sprintf("%s [%s] %s (%s): %s", n.Timestamp.Format(time.RFC3339), n.Topic, n.Title, n.Priority.Label(), n.Message)
	if tags := n.TagList(); len(tags) > 0 {
		line += " #" + strings.Join(tags, " #")
	}
	if n.Link != "" {
		line += " " + n.Link
	}
	_, err := fmt.Fprintln(p.out, line)
	return err
}
