// README: Order aggregate, line items and status definitions.
package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fluentops/internal/types"
)

type Status string

const (
	StatusKitchen        Status = "kitchen"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusEnRoute        Status = "en_route"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// Statuses lists every known status in workflow order.
var Statuses = []Status{StatusKitchen, StatusReadyForPickup, StatusEnRoute, StatusDelivered, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Pending reports whether the order is still being worked on.
func (s Status) Pending() bool {
	return s == StatusKitchen || s == StatusReadyForPickup || s == StatusEnRoute
}

type Order struct {
	ID              types.ID  `json:"id"`
	CustomerName    string    `json:"customer_name"`
	CustomerPhone   string    `json:"customer_phone"`
	DeliveryAddress string    `json:"delivery_address"`
	Status          Status    `json:"status"`
	Items           []Item    `json:"items"`
	RiderID         *types.ID `json:"assigned_rider,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasRider reports whether a rider reference is attached.
func (o *Order) HasRider() bool {
	return o.RiderID != nil && *o.RiderID != ""
}

// Patch is a partial update; nil fields are left untouched. IfStatus turns the
// write into a compare-and-set on the current status.
type Patch struct {
	Status   *Status
	RiderID  *types.ID
	IfStatus *Status
}

// AllowedTransitions represents the order state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusKitchen:        {StatusReadyForPickup, StatusEnRoute, StatusCancelled},
	StatusReadyForPickup: {StatusEnRoute, StatusCancelled},
	StatusEnRoute:        {StatusDelivered, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Item is a line item. Legacy orders carry free text only; those items have a
// zero Quantity and serialise back to a plain JSON string. Structured input
// must carry a positive quantity so it never collapses into text.
type Item struct {
	Name     string
	Quantity int
}

func (i Item) IsText() bool { return i.Quantity == 0 }

func (i Item) String() string {
	if i.IsText() {
		return i.Name
	}
	return fmt.Sprintf("%s x%d", i.Name, i.Quantity)
}

type structuredItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	// keys written by the legacy CMS integration
	Nombre   string `json:"nombre,omitempty"`
	Cantidad int    `json:"cantidad,omitempty"`
}

func (i Item) MarshalJSON() ([]byte, error) {
	if i.IsText() {
		return json.Marshal(i.Name)
	}
	return json.Marshal(struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
	}{i.Name, i.Quantity})
}

func (i *Item) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("empty order item")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = Item{Name: strings.TrimSpace(s)}
		return nil
	}
	var raw structuredItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("order item: %w", err)
	}
	name, qty := raw.Name, raw.Quantity
	if name == "" {
		name = raw.Nombre
	}
	if qty == 0 {
		qty = raw.Cantidad
	}
	if name == "" {
		return fmt.Errorf("order item without name")
	}
	if qty <= 0 {
		return fmt.Errorf("order item %q: quantity must be positive, got %d", name, qty)
	}
	*i = Item{Name: strings.TrimSpace(name), Quantity: qty}
	return nil
}

// ParseItemList splits the comma separated text typed at intake.
func ParseItemList(text string) []Item {
	parts := strings.Split(text, ",")
	out := make([]Item, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, Item{Name: p})
	}
	return out
}
