package firebase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/goccy/go-json"
	"google.golang.org/api/option"

	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
	"github.com/goliatone/go-httfy/pkg/provider"
)

// Client is the subset of *messaging.Client used by the adapter.
type Client interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendDryRun(ctx context.Context, message *messaging.Message) (string, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
}

var _ Client = (*messaging.Client)(nil)

// Adapter delivers push notifications through the Firebase Admin SDK (FCM HTTP v1)
// and manages topic membership for client delivery tokens.
type Adapter struct {
	name   string
	logger logger.Logger
	cfg    Config
	client Client
}

var _ provider.Messenger = (*Adapter)(nil)

// Config holds service account settings. CredentialsFile wins over the inline fields.
type Config struct {
	ProjectID       string
	ClientEmail     string
	PrivateKey      string
	CredentialsFile string
	Timeout         time.Duration
	DryRun          bool
}

type Option func(*Adapter)

// WithName overrides the adapter name.
func WithName(name string) Option {
	return func(a *Adapter) {
		if strings.TrimSpace(name) != "" {
			a.name = name
		}
	}
}

// WithConfig sets the service account configuration.
func WithConfig(cfg Config) Option {
	return func(a *Adapter) {
		a.cfg = cfg
	}
}

// WithClient injects a messaging client, skipping SDK initialisation.
func WithClient(c Client) Option {
	return func(a *Adapter) {
		if c != nil {
			a.client = c
		}
	}
}

var ErrCredentialsRequired = errors.New("firebase: project id plus client email and private key, or a credentials file, are required")

// New constructs the Firebase adapter.
func New(ctx context.Context, l logger.Logger, opts ...Option) (*Adapter, error) {
	if l == nil {
		l = &logger.Nop{}
	}
	adapter := &Adapter{
		name:   "firebase",
		logger: l,
		cfg: Config{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	if adapter.cfg.Timeout <= 0 {
		adapter.cfg.Timeout = 10 * time.Second
	}
	if adapter.client != nil {
		return adapter, nil
	}

	clientOpts, err := credentialOptions(adapter.cfg)
	if err != nil {
		return nil, err
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: adapter.cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firebase: initialise app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: messaging client: %w", err)
	}
	adapter.client = client
	return adapter, nil
}

func (a *Adapter) Name() string { return a.name }

// Send publishes to topic. The receipt carries the provider message name.
func (a *Adapter) Send(ctx context.Context, topic string, n provider.Notification, data map[string]string) (provider.Receipt, error) {
	if err := provider.ValidateSend(topic, n); err != nil {
		return provider.Receipt{}, err
	}
	topic = domain.NormalizeTopic(topic)
	msg := &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: cloneData(data),
	}
	if n.Icon != "" {
		msg.Webpush = &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{Icon: n.Icon},
		}
	}
	if link := data["link"]; link != "" {
		if msg.Webpush == nil {
			msg.Webpush = &messaging.WebpushConfig{}
		}
		msg.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: link}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	send := a.client.Send
	if a.cfg.DryRun {
		send = a.client.SendDryRun
	}
	id, err := send(ctx, msg)
	if err != nil {
		a.logger.Error("firebase send failed",
			logger.Field{Key: "topic", Value: topic},
			logger.Field{Key: "error", Value: err},
		)
		return provider.Receipt{}, domain.NewProviderError("send", topic, err)
	}
	a.logger.Info("firebase send delivered",
		logger.Field{Key: "topic", Value: topic},
		logger.Field{Key: "message_id", Value: id},
		logger.Field{Key: "dry_run", Value: a.cfg.DryRun},
	)
	return provider.Receipt{MessageID: id}, nil
}

// SubscribeToken adds token to topic.
func (a *Adapter) SubscribeToken(ctx context.Context, token, topic string) error {
	return a.manage(ctx, "subscribe", token, topic, a.client.SubscribeToTopic)
}

// UnsubscribeToken removes token from topic.
func (a *Adapter) UnsubscribeToken(ctx context.Context, token, topic string) error {
	return a.manage(ctx, "unsubscribe", token, topic, a.client.UnsubscribeFromTopic)
}

type topicCall func(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)

func (a *Adapter) manage(ctx context.Context, op, token, topic string, call topicCall) error {
	if err := provider.ValidateBinding(token, topic); err != nil {
		return err
	}
	topic = domain.NormalizeTopic(topic)

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	resp, err := call(ctx, []string{token}, topic)
	if err == nil {
		err = responseError(resp)
	}
	if err != nil {
		a.logger.Error("firebase topic management failed",
			logger.Field{Key: "op", Value: op},
			logger.Field{Key: "topic", Value: topic},
			logger.Field{Key: "error", Value: err},
		)
		return domain.NewProviderError(op, topic, err)
	}
	a.logger.Info("firebase topic management succeeded",
		logger.Field{Key: "op", Value: op},
		logger.Field{Key: "topic", Value: topic},
	)
	return nil
}

func responseError(resp *messaging.TopicManagementResponse) error {
	if resp == nil || resp.FailureCount == 0 {
		return nil
	}
	for _, info := range resp.Errors {
		if info != nil && info.Reason != "" {
			return errors.New(info.Reason)
		}
	}
	return fmt.Errorf("%d token(s) rejected", resp.FailureCount)
}

func credentialOptions(cfg Config) ([]option.ClientOption, error) {
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}, nil
	}
	if cfg.ProjectID == "" || cfg.ClientEmail == "" || cfg.PrivateKey == "" {
		return nil, ErrCredentialsRequired
	}
	raw, err := json.Marshal(serviceAccount{
		Type:        "service_account",
		ProjectID:   cfg.ProjectID,
		ClientEmail: cfg.ClientEmail,
		PrivateKey:  NormalizePrivateKey(cfg.PrivateKey),
		TokenURI:    "https://oauth2.googleapis.com/token",
	})
	if err != nil {
		return nil, fmt.Errorf("firebase: encode credentials: %w", err)
	}
	return []option.ClientOption{option.WithCredentialsJSON(raw)}, nil
}

type serviceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// NormalizePrivateKey expands literal "\n" sequences, as env files store PEM keys on one line.
func NormalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

func cloneData(data map[string]string) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
