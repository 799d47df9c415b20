// Package token acquires the delivery token the provider needs to bind this
// client to topics. Acquisition is a small state machine with bounded retries.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-httfy/internal/telemetry"
	"github.com/goliatone/go-httfy/pkg/domain"
	"github.com/goliatone/go-httfy/pkg/interfaces/logger"
	"github.com/goliatone/go-httfy/pkg/provider"
	"github.com/goliatone/go-httfy/pkg/retry"
	"github.com/goliatone/go-httfy/pkg/secrets"
)

// Permission is the notification permission reported by the runtime.
type Permission string

const (
	PermissionGranted     Permission = "granted"
	PermissionDenied      Permission = "denied"
	PermissionDefault     Permission = "default"
	PermissionUnsupported Permission = "unsupported"
)

// Permissions exposes the runtime permission prompt.
type Permissions interface {
	State() Permission
	Request(ctx context.Context) (Permission, error)
}

// Granted is a Permissions implementation for runtimes without a prompt.
type Granted struct{}

func (Granted) State() Permission                               { return PermissionGranted }
func (Granted) Request(ctx context.Context) (Permission, error) { return PermissionGranted, nil }

// State is the acquirer lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateRetryWait State = "retry_wait"
	StateSuccess   State = "success"
	StateFailed    State = "failed"
)

// DefaultMaxRetries is the number of extra fetch attempts after the first.
const DefaultMaxRetries = 2

// ErrAcquireInFlight is returned when Acquire is called while another call runs.
var ErrAcquireInFlight = errors.New("token: acquisition already in progress")

// WaitFunc pauses between attempts.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Dependencies wires the acquirer.
type Dependencies struct {
	Permissions Permissions
	Requester   provider.TokenRequester
	VAPIDKey    string
	MaxRetries  int
	Backoff     retry.Backoff
	Wait        WaitFunc
	Logger      logger.Logger
	Telemetry   *telemetry.Instruments
}

// Acquirer fetches and caches the delivery token.
type Acquirer struct {
	permissions Permissions
	requester   provider.TokenRequester
	vapidKey    string
	maxRetries  int
	backoff     retry.Backoff
	wait        WaitFunc
	logger      logger.Logger
	telemetry   *telemetry.Instruments

	mu       sync.Mutex
	inFlight bool
	state    State
	token    string
	err      error
	retries  int
}

var errRequesterRequired = errors.New("token: requester is required")

// New constructs an Acquirer. MaxRetries below zero is treated as zero.
func New(deps Dependencies) (*Acquirer, error) {
	if deps.Requester == nil {
		return nil, errRequesterRequired
	}
	if deps.Permissions == nil {
		deps.Permissions = Granted{}
	}
	if deps.MaxRetries < 0 {
		deps.MaxRetries = 0
	}
	if deps.Backoff == nil {
		deps.Backoff = retry.DefaultBackoff()
	}
	if deps.Wait == nil {
		deps.Wait = retry.Wait
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	return &Acquirer{
		permissions: deps.Permissions,
		requester:   deps.Requester,
		vapidKey:    strings.TrimSpace(deps.VAPIDKey),
		maxRetries:  deps.MaxRetries,
		backoff:     deps.Backoff,
		wait:        deps.Wait,
		logger:      deps.Logger,
		telemetry:   deps.Telemetry,
		state:       StateIdle,
	}, nil
}

// Acquire returns the delivery token, fetching it if needed. A successful
// token is cached; a call after a failure starts over.
func (a *Acquirer) Acquire(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.inFlight {
		a.mu.Unlock()
		return "", ErrAcquireInFlight
	}
	if a.state == StateSuccess && a.token != "" {
		token := a.token
		a.mu.Unlock()
		return token, nil
	}
	a.inFlight = true
	a.token = ""
	a.err = nil
	a.retries = 0
	a.state = StateFetching
	a.mu.Unlock()

	token, err := a.run(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.inFlight = false
	if err != nil {
		a.state = StateFailed
		a.token = ""
		a.err = err
		return "", err
	}
	a.state = StateSuccess
	a.token = token
	a.err = nil
	return token, nil
}

func (a *Acquirer) run(ctx context.Context) (string, error) {
	switch a.permissions.State() {
	case PermissionUnsupported:
		return "", domain.ErrNotificationsUnsupported
	case PermissionDenied:
		return "", domain.ErrPermissionDenied
	case PermissionGranted:
	default:
		result, err := a.permissions.Request(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
		}
		switch result {
		case PermissionGranted:
		case PermissionUnsupported:
			return "", domain.ErrNotificationsUnsupported
		default:
			return "", domain.ErrPermissionDenied
		}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		token, err := a.requester.RequestToken(ctx, a.vapidKey)
		token = strings.TrimSpace(token)
		if err == nil && token != "" {
			a.telemetry.TokenAttempt(ctx, "success")
			a.logger.Info("delivery token acquired",
				logger.F("token_hint", secrets.Mask(token)),
				logger.F("attempt", attempt+1),
			)
			return token, nil
		}
		if err == nil {
			err = errors.New("provider returned an empty token")
		}
		lastErr = err
		a.telemetry.TokenAttempt(ctx, "failure")
		a.logger.Warn("delivery token fetch failed",
			logger.F("attempt", attempt+1),
			logger.F("error", err),
		)
		if attempt >= a.maxRetries {
			break
		}
		a.setRetryWait(attempt + 1)
		if werr := a.wait(ctx, a.backoff.Next(attempt+1)); werr != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrTokenFetchFailed, werr)
		}
		a.setState(StateFetching)
	}
	return "", fmt.Errorf("%w: %w: %v", domain.ErrTokenConfiguration, domain.ErrTokenFetchFailed, lastErr)
}

func (a *Acquirer) setRetryWait(retries int) {
	a.mu.Lock()
	a.state = StateRetryWait
	a.retries = retries
	a.mu.Unlock()
}

func (a *Acquirer) setState(state State) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
}

// Token returns the cached token, or "" when none is held.
func (a *Acquirer) Token() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token
}

// Err returns the error recorded by the last failed acquisition.
func (a *Acquirer) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// State reports the current lifecycle state.
func (a *Acquirer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Retries reports how many retries the current or last acquisition used.
func (a *Acquirer) Retries() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.retries
}

// Reset drops the cached token and error. It is a no-op while a fetch runs.
func (a *Acquirer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inFlight {
		return
	}
	a.state = StateIdle
	a.token = ""
	a.err = nil
	a.retries = 0
}
