package alerting

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/bus"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/event"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/sla"
)

// Forwarder subscribes to alert transitions on the broadcaster and pushes
// critical ones to the external channel. It is just another subscriber: a
// slow Telegram API degrades only this forwarder, never the engine.
type Forwarder struct {
	broker   *bus.Broker
	notifier Notifier
	logger   zerolog.Logger
}

// NewForwarder constructs the forwarder.
func NewForwarder(broker *bus.Broker, notifier Notifier, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		broker:   broker,
		notifier: notifier,
		logger:   logger.With().Str("component", "alert_forwarder").Logger(),
	}
}

// Run consumes the alert-changed topic until ctx is cancelled.
func (f *Forwarder) Run(ctx context.Context) error {
	sub := f.broker.Subscribe(event.TopicAlertChanged)
	defer f.broker.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sub.Events():
			if !ok {
				return nil
			}
			f.handle(ctx, evt)
		}
	}
}

func (f *Forwarder) handle(ctx context.Context, evt bus.Event) {
	alert, ok := evt.Payload.(sla.Alert)
	if !ok {
		return
	}
	if alert.State != sla.StateActive || alert.Severity != sla.SeverityCritical {
		return
	}

	note := Notification{
		AlertID:   alert.ID,
		EntityRef: alert.EntityRef,
		Severity:  string(alert.Severity),
		Category:  string(alert.Category),
		State:     string(alert.State),
		CreatedAt: alert.CreatedAt,
	}
	if err := f.notifier.Notify(ctx, note); err != nil {
		f.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to dispatch alert")
	}
}
