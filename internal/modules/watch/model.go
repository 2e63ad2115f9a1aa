// README: New-order alert model and the sinks the watch loop reports to.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fluentops/internal/modules/order"
	"fluentops/internal/types"
)

// Alert is a persistent notification. It stays until an operator dismisses it.
type Alert struct {
	ID           string    `json:"id"`
	OrderID      types.ID  `json:"order_id"`
	CustomerName string    `json:"customer_name"`
	Message      string    `json:"message"`
	Sound        string    `json:"sound,omitempty"`
	RaisedAt     time.Time `json:"raised_at"`
}

func newAlert(o *order.Order, sound string, now time.Time) Alert {
	msg := fmt.Sprintf("New order from %s", o.CustomerName)
	if o.CustomerName == "" {
		msg = fmt.Sprintf("New order %s", o.ID)
	}
	return Alert{
		ID:           uuid.NewString(),
		OrderID:      o.ID,
		CustomerName: o.CustomerName,
		Message:      msg,
		Sound:        sound,
		RaisedAt:     now.UTC(),
	}
}

type LatestFetcher interface {
	Latest(ctx context.Context) (*order.Order, error)
}

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Chime plays the audible cue for an alert.
type Chime interface {
	Play(ctx context.Context, a Alert) error
}

// Refresher is the board trigger.
type Refresher interface {
	RefreshNow()
}
