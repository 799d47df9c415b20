package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-httfy/internal/api"
	"github.com/goliatone/go-httfy/internal/relay"
	"github.com/goliatone/go-httfy/internal/telemetry"
	"github.com/goliatone/go-httfy/pkg/client"
	"github.com/goliatone/go-httfy/pkg/config"
	"github.com/goliatone/go-httfy/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
	"github.com/goliatone/go-httfy/pkg/provider"
	"github.com/goliatone/go-httfy/pkg/provider/firebase"
	"github.com/goliatone/go-httfy/pkg/provider/memory"
	"github.com/goliatone/go-httfy/pkg/secrets"
)

const shutdownTimeout = 5 * time.Second

type ServeCmd struct {
	flags *Flags
	addr  string
}

func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "serve",
		Usage:       "Run the HTTP API and websocket relay",
		UsageText:   "httfy serve [options]",
		Description: "Serves the publish and topic binding routes, relaying every accepted send to connected stream clients.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (overrides api.addr)",
				Destination: &cmd.addr,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := *cmd.flags.Config
	if cmd.addr != "" {
		cfg.API.Addr = cmd.addr
	}
	log := cmd.flags.Logger.With(logger.F("component", "serve"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if summary := credentialSummary(cfg.Provider); summary != nil {
		log.Info("provider credentials loaded", logger.F("provider", cfg.Provider.Name), logger.F("credential_hints", summary))
	}
	messenger, err := newMessenger(ctx, cfg.Provider, cmd.flags.Logger)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}

	deps := api.Dependencies{
		Provider:     messenger,
		Logger:       cmd.flags.Logger.With(logger.F("component", "api")),
		Telemetry:    telemetry.New(),
		MaxBodyBytes: cfg.API.MaxBodyBytes,
	}
	if cfg.API.RatePerSecond > 0 {
		deps.Limiter = rate.NewLimiter(rate.Limit(cfg.API.RatePerSecond), cfg.API.RateBurst)
	}

	var hub *relay.Hub
	if cfg.Relay.IsEnabled() {
		hub = relay.NewHub(
			cmd.flags.Logger.With(logger.F("component", "relay")),
			relay.WithOriginPatterns(cfg.API.OriginPatterns...),
		)
		deps.Relay = broadcaster.NewFanout(hub)
		deps.Stream = hub
	}

	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           api.New(deps).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg conc.WaitGroup
	if hub != nil {
		wg.Go(func() { hub.Run(ctx) })
	}
	serveErr := make(chan error, 1)
	wg.Go(func() {
		log.Info("api listening", logger.F("addr", cfg.API.Addr), logger.F("provider", cfg.Provider.Name))
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	})

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-serveErr:
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	wg.Wait()
	return runErr
}

// credentialSummary masks the configured provider credentials for the startup log.
func credentialSummary(cfg config.ProviderConfig) map[string]string {
	values := map[string]string{}
	for key, value := range map[string]string{
		"project_id":       cfg.ProjectID,
		"client_email":     cfg.ClientEmail,
		"private_key":      cfg.PrivateKey,
		"credentials_file": cfg.CredentialsFile,
	} {
		if value != "" {
			values[key] = value
		}
	}
	return secrets.MaskValues(values)
}

// newMessenger builds the provider named by cfg.
func newMessenger(ctx context.Context, cfg config.ProviderConfig, l logger.Logger) (provider.Messenger, error) {
	switch cfg.Name {
	case config.ProviderFirebase:
		adapter, err := firebase.New(ctx, l.With(logger.F("provider", cfg.Name)), firebase.WithConfig(firebase.Config{
			ProjectID:       cfg.ProjectID,
			ClientEmail:     cfg.ClientEmail,
			PrivateKey:      cfg.PrivateKey,
			CredentialsFile: cfg.CredentialsFile,
			Timeout:         cfg.Timeout,
			DryRun:          cfg.DryRun,
		}))
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case config.ProviderRemote:
		remote, err := client.New(cfg.RemoteURL,
			client.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			client.WithLogger(l.With(logger.F("provider", cfg.Name))),
		)
		if err != nil {
			return nil, err
		}
		return remote, nil
	default:
		return memory.New(l.With(logger.F("provider", cfg.Name))), nil
	}
}
