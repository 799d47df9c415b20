// Package api exposes the publish and topic binding routes over HTTP and proxies
// them to the messaging provider.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-httfy/internal/telemetry"
	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
	"github.com/goliatone/go-httfy/pkg/provider"
)

const (
	PathSend        = "/api/send-notification"
	PathSubscribe   = "/api/subscribe"
	PathUnsubscribe = "/api/unsubscribe"
	PathStream      = "/api/stream"
	PathHealth      = "/healthz"

	defaultMaxBody = 64 << 10
)

// Error messages returned in the {error} body.
const (
	msgProviderMissing = "Messaging provider not initialized."
	msgSendFields      = "Missing required fields: topic, title, message"
	msgBindingFields   = "Missing required fields: token, topic"
	msgRateLimited     = "Too many requests, try again shortly."
	msgBadBody         = "Request body must be a JSON object."
)

// SendRequest is the publish form body.
type SendRequest struct {
	Topic    string `json:"topic"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority,omitempty"`
	Tags     string `json:"tags,omitempty"`
	Link     string `json:"link,omitempty"`
	Icon     string `json:"icon,omitempty"`
}

// BindingRequest is the subscribe/unsubscribe body.
type BindingRequest struct {
	Token string `json:"token"`
	Topic string `json:"topic"`
}

// Response is the success body.
type Response struct {
	Message  string `json:"message"`
	Response string `json:"response,omitempty"`
}

// ErrorResponse is the failure body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Dependencies wires the server.
type Dependencies struct {
	Provider     provider.Messenger
	Relay        broadcaster.Broadcaster
	Stream       http.Handler
	Limiter      *rate.Limiter
	Logger       logger.Logger
	Telemetry    *telemetry.Instruments
	MaxBodyBytes int64
	Clock        func() time.Time
}

// Server holds the route handlers.
type Server struct {
	provider  provider.Messenger
	relay     broadcaster.Broadcaster
	stream    http.Handler
	limiter   *rate.Limiter
	logger    logger.Logger
	telemetry *telemetry.Instruments
	maxBody   int64
	clock     func() time.Time
}

// New constructs a Server. A nil provider is allowed; provider routes then
// answer 500 the way an uninitialised SDK would.
func New(deps Dependencies) *Server {
	if deps.Relay == nil {
		deps.Relay = &broadcaster.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBody
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Server{
		provider:  deps.Provider,
		relay:     deps.Relay,
		stream:    deps.Stream,
		limiter:   deps.Limiter,
		logger:    deps.Logger,
		telemetry: deps.Telemetry,
		maxBody:   deps.MaxBodyBytes,
		clock:     deps.Clock,
	}
}

// Routes registers every handler on a fresh router.
func (s *Server) Routes() *httprouter.Router {
	router := httprouter.New()
	router.POST(PathSend, s.SendNotification)
	router.POST(PathSubscribe, s.Subscribe)
	router.POST(PathUnsubscribe, s.Unsubscribe)
	router.GET(PathHealth, s.Health)
	if s.stream != nil {
		router.Handler(http.MethodGet, PathStream, s.stream)
	}
	return router
}

// SendNotification publishes to a topic.
func (s *Server) SendNotification(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	start := s.clock()
	if s.provider == nil {
		writeError(w, http.StatusInternalServerError, msgProviderMissing)
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, msgRateLimited)
		return
	}
	var req SendRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	topic := domain.NormalizeTopic(req.Topic)
	if topic == "" || strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, msgSendFields)
		return
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data := map[string]string{
		"priority": priority.String(),
		"tags":     req.Tags,
	}
	if link := strings.TrimSpace(req.Link); link != "" {
		data["link"] = link
	}
	n := provider.Notification{Title: req.Title, Body: req.Message, Icon: req.Icon}

	receipt, err := s.provider.Send(r.Context(), topic, n, data)
	s.telemetry.ProviderCall(r.Context(), "send", err)
	if err != nil {
		s.logger.Error("send notification failed", logger.F("topic", topic), logger.F("error", err))
		writeError(w, http.StatusInternalServerError, providerMessage(err))
		return
	}

	payload := domain.TopicPayload(topic, receipt.MessageID,
		domain.PayloadNotification{Title: n.Title, Body: n.Body, Icon: n.Icon}, data)
	if err := s.relay.Broadcast(r.Context(), broadcaster.Event{Topic: domain.EventPayloadRelayed, Payload: payload}); err != nil {
		s.logger.Warn("relay broadcast failed", logger.F("topic", topic), logger.F("error", err))
	}

	s.logger.Info("notification sent",
		logger.F("topic", topic),
		logger.F("message_id", receipt.MessageID),
		logger.F("priority", priority.String()),
		logger.F("duration", s.clock().Sub(start).String()),
	)
	writeJSON(w, http.StatusOK, Response{Message: "Notification sent successfully", Response: receipt.MessageID})
}

// Subscribe binds a token to a topic.
func (s *Server) Subscribe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.binding(w, r, "subscribe", func(ctx context.Context, token, topic string) error {
		return s.provider.SubscribeToken(ctx, token, topic)
	}, "Subscribed to topic: %s")
}

// Unsubscribe unbinds a token from a topic.
func (s *Server) Unsubscribe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.binding(w, r, "unsubscribe", func(ctx context.Context, token, topic string) error {
		return s.provider.UnsubscribeToken(ctx, token, topic)
	}, "Unsubscribed from topic: %s")
}

func (s *Server) binding(w http.ResponseWriter, r *http.Request, op string, call func(context.Context, string, string) error, okFormat string) {
	if s.provider == nil {
		writeError(w, http.StatusInternalServerError, msgProviderMissing)
		return
	}
	var req BindingRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	token := strings.TrimSpace(req.Token)
	topic := domain.NormalizeTopic(req.Topic)
	if token == "" || topic == "" {
		writeError(w, http.StatusBadRequest, msgBindingFields)
		return
	}
	err := call(r.Context(), token, topic)
	s.telemetry.ProviderCall(r.Context(), op, err)
	if err != nil {
		s.logger.Error(op+" failed", logger.F("topic", topic), logger.F("error", err))
		writeError(w, http.StatusInternalServerError, providerMessage(err))
		return
	}
	s.logger.Info(op+" ok", logger.F("topic", topic))
	writeJSON(w, http.StatusOK, Response{Message: fmt.Sprintf(okFormat, topic)})
}

// Health reports liveness and whether a provider is wired.
func (s *Server) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": s.provider != nil,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("api: empty body")
	}
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	defer body.Close()
	return json.NewDecoder(body).Decode(dst)
}

func providerMessage(err error) string {
	var pe *domain.ProviderError
	if errors.As(err, &pe) && pe.Message() != "" {
		return pe.Message()
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
