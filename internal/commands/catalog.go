package commands

import (
	"context"
	"errors"
	"strings"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
	"github.com/goliatone/go-httfy/pkg/provider"
)

// Catalog exposes go-command compatible handlers for host transports.
type Catalog struct {
	Subscribe   command.Commander[SubscribeTopic]
	Unsubscribe command.Commander[UnsubscribeTopic]
	Switch      command.Commander[SwitchTopic]
	Publish     command.Commander[PublishNotification]
}

type subscriptionService interface {
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error
	Switch(ctx context.Context, from, to string) error
}

// Dependencies wires the session and publisher into the command catalog.
type Dependencies struct {
	Subscriptions subscriptionService
	Publisher     provider.Publisher
	Logger        logger.Logger
}

// NewCatalog builds the command catalog using the supplied dependencies.
func NewCatalog(deps Dependencies) (*Catalog, error) {
	if deps.Subscriptions == nil {
		return nil, errors.New("commands: subscription service is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("commands: publisher is required")
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	return &Catalog{
		Subscribe:   subscribeCommand{svc: deps.Subscriptions},
		Unsubscribe: unsubscribeCommand{svc: deps.Subscriptions},
		Switch:      switchCommand{svc: deps.Subscriptions},
		Publish:     publishCommand{publisher: deps.Publisher, logger: deps.Logger},
	}, nil
}

// SubscribeTopic adds a topic to the session subscription set.
type SubscribeTopic struct {
	Topic string `json:"topic"`
}

type subscribeCommand struct {
	svc subscriptionService
}

func (c subscribeCommand) Execute(ctx context.Context, msg SubscribeTopic) error {
	return c.svc.Subscribe(ctx, msg.Topic)
}

// UnsubscribeTopic removes a topic from the session subscription set.
type UnsubscribeTopic struct {
	Topic string `json:"topic"`
}

type unsubscribeCommand struct {
	svc subscriptionService
}

func (c unsubscribeCommand) Execute(ctx context.Context, msg UnsubscribeTopic) error {
	return c.svc.Unsubscribe(ctx, msg.Topic)
}

// SwitchTopic replaces one subscription with another.
type SwitchTopic struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type switchCommand struct {
	svc subscriptionService
}

func (c switchCommand) Execute(ctx context.Context, msg SwitchTopic) error {
	if strings.TrimSpace(msg.From) == "" {
		return c.svc.Subscribe(ctx, msg.To)
	}
	return c.svc.Switch(ctx, msg.From, msg.To)
}

// PublishNotification is the publish form.
type PublishNotification struct {
	Topic    string `json:"topic"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
	Tags     string `json:"tags"`
	Link     string `json:"link,omitempty"`

	// MessageID is filled with the provider receipt after a successful send.
	MessageID *string `json:"-"`
}

type publishCommand struct {
	publisher provider.Publisher
	logger    logger.Logger
}

func (c publishCommand) Execute(ctx context.Context, msg PublishNotification) error {
	topic := domain.NormalizeTopic(msg.Topic)
	if topic == "" || strings.TrimSpace(msg.Title) == "" || strings.TrimSpace(msg.Message) == "" {
		return errors.New("commands: topic, title and message are required")
	}
	priority, err := domain.ParsePriority(msg.Priority)
	if err != nil {
		return err
	}
	data := map[string]string{
		"priority": priority.String(),
		"tags":     msg.Tags,
	}
	if link := strings.TrimSpace(msg.Link); link != "" {
		data["link"] = link
	}
	receipt, err := c.publisher.Send(ctx, topic, provider.Notification{Title: msg.Title, Body: msg.Message}, data)
	if err != nil {
		return domain.NewProviderError("send", topic, err)
	}
	if msg.MessageID != nil {
		*msg.MessageID = receipt.MessageID
	}
	c.logger.Info("notification published", logger.F("topic", topic), logger.F("message_id", receipt.MessageID))
	return nil
}
