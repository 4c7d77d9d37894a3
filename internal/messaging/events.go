package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// EventType names an order lifecycle event
type EventType string

// Event types
const (
	EventOrderCreated       EventType = "order.created"
	EventOrderUpdated       EventType = "order.updated"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventMilestonesChanged  EventType = "milestones.changed"
	EventMessageSent        EventType = "message.sent"
	EventDeliverySubmitted  EventType = "delivery.submitted"
	// EventDeliveryCompleted asks the client to confirm a delivery marked complete
	EventDeliveryCompleted EventType = "delivery.completed"
	EventReviewCreated     EventType = "review.created"
)

// Event is published for every order mutation
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Type       EventType         `json:"type"`
	OrderID    uuid.UUID         `json:"order_id"`
	ActorID    uuid.UUID         `json:"actor_id,omitempty"`
	Status     string            `json:"status,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Data       map[string]string `json:"data,omitempty"`
}

// NewEvent creates an event with a fresh id and the current time
func NewEvent(eventType EventType, orderID, actorID uuid.UUID, status string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OrderID:    orderID,
		ActorID:    actorID,
		Status:     status,
		OccurredAt: time.Now().UTC(),
	}
}

// With returns a copy of e carrying key=value in Data
func (e Event) With(key, value string) Event {
	data := make(map[string]string, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}

// DecodeEvent parses a message body written by the publisher
func DecodeEvent(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, errors.Wrap(err, "failed to decode event")
	}
	if e.Type == "" || e.OrderID == uuid.Nil {
		return Event{}, errors.New("event is missing type or order id")
	}
	return e, nil
}
