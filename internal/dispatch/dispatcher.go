package dispatch

import (
	"context"
	"encoding/json"
	"log"

	"chat-backend/internal/models"
	"chat-backend/internal/observability"
	"chat-backend/internal/presence"
)

// LocalHub pushes payloads to a user's connections held by this process.
type LocalHub interface {
	Push(userID string, payload []byte)
}

// DeliveryMarker settles the sent-to-delivered transition when a message
// reaches a live receiver.
type DeliveryMarker interface {
	MarkDelivered(ctx context.Context, messageID int64) (models.Message, error)
}

// Dispatcher fans events out to users. A target with live connections
// anywhere in the cluster gets the event over the cross-process bus; a
// target with none gets it queued in the offline outbox.
type Dispatcher struct {
	registry presence.Registry
	outbox   presence.Outbox
	bus      presence.Bus
	marker   DeliveryMarker
	hub      LocalHub
}

// New wires a Dispatcher.
func New(registry presence.Registry, outbox presence.Outbox, bus presence.Bus, marker DeliveryMarker, hub LocalHub) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		outbox:   outbox,
		bus:      bus,
		marker:   marker,
		hub:      hub,
	}
}

// Run subscribes to the cross-process bus and pushes incoming envelopes to
// this process's local connections. It returns once the subscription is
// established; delivery continues until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	return d.bus.Subscribe(ctx, func(env presence.Envelope) {
		d.hub.Push(env.UserID, env.Payload)
	})
}

// DeliverMessage routes a freshly stored message. A live receiver gets the
// message pushed and the delivery transition settled by this process, once,
// before the push fans out. An offline receiver gets it queued.
func (d *Dispatcher) DeliverMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	online, err := d.registry.IsOnline(ctx, msg.ReceiverID)
	if err != nil {
		return models.Message{}, err
	}
	if !online {
		event := models.Event{Type: models.EventMessage, Message: &msg}
		if err := d.enqueue(ctx, msg.ReceiverID, event); err != nil {
			return models.Message{}, err
		}
		return msg, nil
	}

	msg, err = d.marker.MarkDelivered(ctx, msg.ID)
	if err != nil {
		return models.Message{}, err
	}
	observability.IncDeliveryTransition(string(models.StatusDelivered))

	d.Notify(ctx, []string{msg.ReceiverID}, models.Event{Type: models.EventMessage, Message: &msg})
	d.Notify(ctx, []string{msg.SenderID}, models.Event{
		Type:           models.EventDelivered,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         msg.ReceiverID,
		At:             msg.DeliveredAt,
	})
	return msg, nil
}

// Notify sends an event to each target, live or queued. Failures are
// logged per target so one bad target does not starve the rest.
func (d *Dispatcher) Notify(ctx context.Context, userIDs []string, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("dispatch: marshal event: %v", err)
		return
	}
	for _, userID := range userIDs {
		online, err := d.registry.IsOnline(ctx, userID)
		if err != nil {
			log.Printf("dispatch: presence lookup for %s: %v", userID, err)
			continue
		}
		if online {
			if err := d.bus.Publish(ctx, presence.Envelope{UserID: userID, Payload: payload}); err != nil {
				log.Printf("dispatch: publish to %s: %v", userID, err)
			}
			continue
		}
		if err := d.outbox.Enqueue(ctx, userID, payload); err != nil {
			log.Printf("dispatch: enqueue for %s: %v", userID, err)
			continue
		}
		observability.IncOutboxEvent("enqueue")
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, userID string, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := d.outbox.Enqueue(ctx, userID, payload); err != nil {
		return err
	}
	observability.IncOutboxEvent("enqueue")
	return nil
}
