package commands

import (
	command "github.com/goliatone/go-command"

	internalcommands "github.com/goliatone/go-httfy/internal/commands"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
	"github.com/goliatone/go-httfy/pkg/provider"
	"github.com/goliatone/go-httfy/pkg/session"
)

// Re-export request types so consumers need not import internal packages.
type (
	SubscribeTopic      = internalcommands.SubscribeTopic
	UnsubscribeTopic    = internalcommands.UnsubscribeTopic
	SwitchTopic         = internalcommands.SwitchTopic
	PublishNotification = internalcommands.PublishNotification
)

// Registry exposes go-command compatible handlers backed by a session.
type Registry struct {
	Catalog     *internalcommands.Catalog
	Subscribe   command.Commander[SubscribeTopic]
	Unsubscribe command.Commander[UnsubscribeTopic]
	Switch      command.Commander[SwitchTopic]
	Publish     command.Commander[PublishNotification]
}

// Dependencies mirror the internal command dependencies but keep them public.
type Dependencies struct {
	Session   *session.Session
	Publisher provider.Publisher
	Logger    logger.Logger
}

// New builds the registry using the provided dependencies.
func New(deps Dependencies) (*Registry, error) {
	internalDeps := internalcommands.Dependencies{
		Publisher: deps.Publisher,
		Logger:    deps.Logger,
	}
	if deps.Session != nil {
		internalDeps.Subscriptions = deps.Session
	}
	catalog, err := internalcommands.NewCatalog(internalDeps)
	if err != nil {
		return nil, err
	}
	return &Registry{
		Catalog:     catalog,
		Subscribe:   catalog.Subscribe,
		Unsubscribe: catalog.Unsubscribe,
		Switch:      catalog.Switch,
		Publish:     catalog.Publish,
	}, nil
}

// Commanders returns every handler so callers can register them with go-command registries.
func (r *Registry) Commanders() []any {
	if r == nil {
		return nil
	}
	return []any{
		r.Subscribe,
		r.Unsubscribe,
		r.Switch,
		r.Publish,
	}
}
