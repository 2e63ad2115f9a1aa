// README: Order lifecycle events and publishers (RabbitMQ fanout or no-op).
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fluentops/internal/types"
)

type Type string

const (
	OrderNew       Type = "order.new"
	OrderAssigned  Type = "order.assigned"
	OrderDelivered Type = "order.delivered"
	OrderCancelled Type = "order.cancelled"
	RiderReleased  Type = "rider.released"
)

type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	OrderID    types.ID  `json:"order_id,omitempty"`
	RiderID    types.ID  `json:"rider_id,omitempty"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New stamps an event with a fresh id and the current time.
func New(t Type, orderID, riderID types.ID) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OrderID:    orderID,
		RiderID:    riderID,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// OrNop lets callers pass a nil publisher.
func OrNop(p Publisher) Publisher {
	if p == nil {
		return Nop{}
	}
	return p
}
