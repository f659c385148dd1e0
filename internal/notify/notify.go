package notify

import (
	"context"
	"errors"
	"log/slog"

	"snapdiff/internal/config"
	"snapdiff/internal/logging"
)

// EventUpdateScreenshots carries the full page list of a site after any
// screenshot entry changed.
const EventUpdateScreenshots = "UPDATE_SCREENSHOTS"

// Broadcaster publishes an event with its payload to observers of scope.
type Broadcaster interface {
	Broadcast(ctx context.Context, event string, payload any, scope string) error
}

// Fanout broadcasts to every member and joins their errors.
type Fanout []Broadcaster

func (f Fanout) Broadcast(ctx context.Context, event string, payload any, scope string) error {
	var errs []error
	for _, b := range f {
		if b == nil {
			continue
		}
		if err := b.Broadcast(ctx, event, payload, scope); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(context.Context, string, any, string) error { return nil }

// Noop returns a Broadcaster that drops every event.
func Noop() Broadcaster { return noopBroadcaster{} }

// NewBroadcaster returns hub, fanned out to RabbitMQ when an AMQP URL is
// configured. The returned close function releases the broker connection.
// An unreachable broker is logged and the hub alone is returned.
func NewBroadcaster(cfg *config.Config, hub *Hub, logger *slog.Logger) (Broadcaster, func() error) {
	noClose := func() error { return nil }
	if cfg == nil || cfg.Notifications.AMQPURL == "" {
		return hub, noClose
	}
	publisher, err := DialAMQP(cfg.Notifications.AMQPURL, cfg.Notifications.AMQPExchange, logger)
	if err != nil {
		logging.WarnWithContext(logger, "amqp broker unavailable; notifications stay in-process", "amqp_unavailable",
			logging.Error(err),
			logging.String("exchange", cfg.Notifications.AMQPExchange),
			logging.String(logging.FieldErrorHint, "check notifications.amqp_url and that RabbitMQ is running"),
			logging.String(logging.FieldImpact, "external subscribers will not receive screenshot updates"),
		)
		return hub, noClose
	}
	return Fanout{hub, publisher}, publisher.Close
}
