package session

import (
	"context"
	"errors"

	"github.com/lazyops/lazyops/pkg/api"
	"go.uber.org/zap"
)

const (
	// CodeExpired is the envelope code the backend sends for an expired token.
	CodeExpired = "JWT_EXPIRED"
	// CodeInvalid marks a malformed or unknown token.
	CodeInvalid = "JWT_INVALID"

	fallbackMessage = "Unexpected server error"
	timeoutMessage  = "Request timed out"
)

// Notice is what the operator is shown for one error.
type Notice struct {
	Message string
	Expired bool
}

// Classify maps any client error onto a user-facing notice. A cancelled
// request was abandoned by the operator and yields an empty notice.
func Classify(err error) Notice {
	if err == nil || errors.Is(err, context.Canceled) {
		return Notice{}
	}
	var apiErr api.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fallbackMessage
		}
		return Notice{Message: msg, Expired: apiErr.Code == CodeExpired}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Notice{Message: timeoutMessage}
	}
	return Notice{Message: fallbackMessage}
}

// Notifier shows a transient message to the operator.
type Notifier interface {
	Toast(msg string)
}

// Interceptor surfaces every reported error as a toast and forces a session
// reset when the backend says the credential expired. It implements
// api.Interceptor and is independent of whoever issued the request.
type Interceptor struct {
	store     *Store
	notifier  Notifier
	onExpired func()
	logger    *zap.Logger
}

// NewInterceptor wires the store, the toast sink and the login entry point.
func NewInterceptor(store *Store, notifier Notifier, onExpired func(), logger *zap.Logger) *Interceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interceptor{store: store, notifier: notifier, onExpired: onExpired, logger: logger}
}

func (i *Interceptor) OnResponse(env api.Envelope) {
	if env.Error == "" {
		return
	}
	i.toast(env.Error)
	if env.Code == CodeExpired {
		i.expire()
	}
}

func (i *Interceptor) OnError(err error) {
	n := Classify(err)
	i.logger.Debug("request failed", zap.Error(err), zap.Bool("expired", n.Expired))
	i.toast(n.Message)
	if n.Expired {
		i.expire()
	}
}

func (i *Interceptor) toast(msg string) {
	if msg != "" && i.notifier != nil {
		i.notifier.Toast(msg)
	}
}

func (i *Interceptor) expire() {
	if i.store == nil {
		return
	}
	had, err := i.store.Clear()
	if err != nil {
		i.logger.Warn("clear expired token", zap.Error(err))
	}
	if !had {
		return
	}
	i.logger.Info("session expired, forcing re-login")
	if i.onExpired != nil {
		i.onExpired()
	}
}
