package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	// KindVerificationState reports a published verification state.
	KindVerificationState = "verification_state"
	// KindAuthorization reports the outcome of an authorization.
	KindAuthorization = "authorization"
	// KindSessionClosed reports that a session was released.
	KindSessionClosed = "session_closed"

	// DefaultChannel is the Redis channel session events are published on.
	DefaultChannel = "payguard:events"
)

// Message describes a session event.
type Message struct {
	Kind      string `json:"kind"`
	SessionID string `json:"session_id"`
	// Destination is the caller the event concerns, empty when unknown.
	Destination string `json:"destination,omitempty"`
	Body        string `json:"body"`
}

// Notifier delivers session events to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("session_id", message.SessionID),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body),
	)
	return nil
}

// RedisNotifier publishes events as JSON on a Redis channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier publishes on channel, or DefaultChannel when empty.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

// Send publishes the message.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

// Send delivers to all notifiers even when some fail.
func (m Multi) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
