package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Error taxonomy shared by the session pipeline.
var (
	ErrPermissionDenied         = errors.New("notification permission denied")
	ErrNotificationsUnsupported = errors.New("notifications are not supported by this runtime")
	ErrTokenFetchFailed         = errors.New("delivery token fetch failed")
	ErrTokenConfiguration       = errors.New("unable to load delivery token, check the provider configuration")
	ErrTokenUnavailable         = errors.New("delivery token not available")
	ErrAlreadySubscribed        = errors.New("already subscribed to topic")
	ErrProviderRequestFailed    = errors.New("provider request failed")
	ErrInvalidTopic             = errors.New("invalid topic name")
	ErrInvalidPriority          = errors.New("priority must be between 1 and 5")
)

// ProviderError describes a failed provider call.
type ProviderError struct {
	Op    string
	Topic string
	Err   error
}

func (e *ProviderError) Error() string {
	msg := "provider request failed"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Topic != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Topic, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProviderRequestFailed) match every ProviderError.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderRequestFailed
}

// Message returns the cause text without the operation prefix.
func (e *ProviderError) Message() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// NewProviderError wraps err unless it is already a ProviderError.
func NewProviderError(op, topic string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Op: op, Topic: topic, Err: err}
}

var topicPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_.~%]{1,900}$`)

// NormalizeTopic trims the topic and strips the provider routing prefix.
func NormalizeTopic(topic string) string {
	return strings.TrimPrefix(strings.TrimSpace(topic), TopicPrefix)
}

// ValidateTopic checks the provider topic naming rules.
func ValidateTopic(topic string) error {
	topic = NormalizeTopic(topic)
	if topic == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidTopic)
	}
	if !topicPattern.MatchString(topic) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return nil
}
