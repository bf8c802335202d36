package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Notification is one message off the transport.
type Notification struct {
	Channel string
	Payload string
}

// Transport is a connected subscription to the change-notification channel
// set. Implementations are single-use: after a fatal error the caller dials
// a fresh one.
type Transport interface {
	Listen(ctx context.Context, channel string) error
	WaitForNotification(ctx context.Context) (Notification, error)
	Close(ctx context.Context)
}

// Dialer opens a fresh Transport.
type Dialer func(ctx context.Context) (Transport, error)

// Listener owns the consumption loop: subscribe to every registered channel,
// then decode and dispatch inbound messages forever. A bad payload or a
// failing handler is logged and skipped; one poisoned message can never
// starve the pipeline. Only transport loss or shutdown ends the loop; the
// caller restarts it with backoff.
type Listener struct {
	dial     Dialer
	registry *Registry
	logger   *zap.Logger
}

func NewListener(dial Dialer, registry *Registry, logger *zap.Logger) *Listener {
	return &Listener{dial: dial, registry: registry, logger: logger}
}

// Run blocks until the context is cancelled or the transport is lost.
func (l *Listener) Run(ctx context.Context) error {
	channels := l.registry.Channels()
	if len(channels) == 0 {
		l.logger.Warn("No channels registered, listener idle")
		<-ctx.Done()
		return ctx.Err()
	}

	transport, err := l.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial event transport: %w", err)
	}
	defer transport.Close(ctx)

	for _, ch := range channels {
		if err := transport.Listen(ctx, string(ch)); err != nil {
			return fmt.Errorf("listen on %s: %w", ch, err)
		}
	}
	l.logger.Info("Listening for events", zap.Any("channels", channels))

	for {
		notification, err := transport.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("event transport lost: %w", err)
		}

		l.logger.Debug("Received notification",
			zap.String("channel", notification.Channel))

		if err := l.registry.Dispatch(ctx, Channel(notification.Channel), []byte(notification.Payload)); err != nil {
			l.logger.Error("Error handling notification",
				zap.String("channel", notification.Channel),
				zap.Error(err))
		}
	}
}
