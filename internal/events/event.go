// Package events describes order lifecycle events and the notifiers that
// publish them once a write has committed.
package events

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	OrderCreated      Type = "order.created"
	DeliveryRecorded  Type = "delivery.recorded"
	DeliveryConfirmed Type = "delivery.confirmed"
	OrderDelivered    Type = "order.delivered"
	OrderConfirmed    Type = "order.confirmed"
	LineCancelled     Type = "line.cancelled"
	OrderDeleted      Type = "order.deleted"
)

// Event is the message body published to the events queue.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	OrderCode   string    `json:"order_code"`
	RequesterID string    `json:"requester_id,omitempty"`
	Part        string    `json:"part,omitempty"`
	Serial      string    `json:"serial,omitempty"`
	Quantity    int       `json:"quantity,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// New returns an event with a fresh id.
func New(t Type, orderCode string, at time.Time) Event {
	return Event{ID: uuid.NewString(), Type: t, OrderCode: orderCode, OccurredAt: at.UTC()}
}

func (e Event) WithPart(part, serial string) Event {
	e.Part = part
	e.Serial = serial
	return e
}
