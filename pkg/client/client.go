// Package client calls the httfy HTTP API. Client satisfies provider.Messenger,
// so a remote server can stand in for a direct provider connection.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
	"github.com/goliatone/go-httfy/pkg/provider"
)

const (
	defaultTimeout     = 15 * time.Second
	genericFailure     = "API call failed"
	pathSend           = "/api/send-notification"
	pathSubscribe      = "/api/subscribe"
	pathUnsubscribe    = "/api/unsubscribe"
	maxErrorBodyBuffer = 64 << 10
)

var ErrBaseURLRequired = errors.New("client: base url is required")

// Client is a thin JSON client for the publish and binding routes.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logger.Logger
}

var _ provider.Messenger = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient swaps the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds a client for baseURL (for example http://localhost:8080).
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  &logger.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// PublishInput is the publish form.
type PublishInput struct {
	Topic    string `json:"topic"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority,omitempty"`
	Tags     string `json:"tags,omitempty"`
	Link     string `json:"link,omitempty"`
	Icon     string `json:"icon,omitempty"`
}

type sendResponse struct {
	Message  string `json:"message"`
	Response string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Publish sends a notification to a topic and returns the provider message id.
func (c *Client) Publish(ctx context.Context, in PublishInput) (provider.Receipt, error) {
	var out sendResponse
	if err := c.post(ctx, "send", in.Topic, pathSend, in, &out); err != nil {
		return provider.Receipt{}, err
	}
	return provider.Receipt{MessageID: out.Response}, nil
}

// Send implements provider.Publisher on top of Publish.
func (c *Client) Send(ctx context.Context, topic string, n provider.Notification, data map[string]string) (provider.Receipt, error) {
	return c.Publish(ctx, PublishInput{
		Topic:    topic,
		Title:    n.Title,
		Message:  n.Body,
		Icon:     n.Icon,
		Priority: data["priority"],
		Tags:     data["tags"],
		Link:     data["link"],
	})
}

// SubscribeToken binds token to topic.
func (c *Client) SubscribeToken(ctx context.Context, token, topic string) error {
	body := map[string]string{"token": token, "topic": topic}
	return c.post(ctx, "subscribe", topic, pathSubscribe, body, nil)
}

// UnsubscribeToken unbinds token from topic.
func (c *Client) UnsubscribeToken(ctx context.Context, token, topic string) error {
	body := map[string]string{"token": token, "topic": topic}
	return c.post(ctx, "unsubscribe", topic, pathUnsubscribe, body, nil)
}

func (c *Client) post(ctx context.Context, op, topic, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("client: encode %s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("client: build %s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NewProviderError(op, topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := decodeError(resp.Body)
		c.logger.Warn("api call failed",
			logger.F("op", op),
			logger.F("status", resp.StatusCode),
			logger.F("error", msg),
		)
		return &domain.ProviderError{Op: op, Topic: topic, Err: &StatusError{Code: resp.StatusCode, Message: msg}}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s response: %w", op, err)
	}
	return nil
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string { return e.Message }

func decodeError(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBuffer))
	if err != nil || len(data) == 0 {
		return genericFailure
	}
	var body errorResponse
	if err := json.Unmarshal(data, &body); err != nil || strings.TrimSpace(body.Error) == "" {
		return genericFailure
	}
	return body.Error
}
