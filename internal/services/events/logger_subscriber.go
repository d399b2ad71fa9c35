package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/interfaces"
)

// NewLoggerSubscriber creates an event handler that logs all events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		if payload, ok := event.Payload.(map[string]interface{}); ok {
			for _, key := range []string{"run_id", "state", "previous", "method", "status"} {
				if value, ok := payload[key].(string); ok && value != "" {
					logEvent = logEvent.Str(key, value)
				}
			}
			if index, ok := payload["index"].(int); ok {
				logEvent = logEvent.Int("index", index)
			}
		}

		logEvent.Msg("Event published")

		return nil
	}
}

// AllEventTypes lists every event type published on the bus
var AllEventTypes = []interfaces.EventType{
	interfaces.EventAuthStateChanged,
	interfaces.EventRunStarted,
	interfaces.EventRecordProcessed,
	interfaces.EventRunFinished,
	interfaces.EventStatusChanged,
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	for _, eventType := range AllEventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	logger.Debug().
		Int("event_type_count", len(AllEventTypes)).
		Msg("Logger subscribed to all event types")

	return nil
}
