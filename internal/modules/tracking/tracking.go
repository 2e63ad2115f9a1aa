// README: Public order tracking view, share links and delivery ETA.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"fluentops/internal/logger"
	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
	"fluentops/internal/types"
)

// RefreshSeconds is how often a tracking page should poll.
const RefreshSeconds = 10

type OrderGetter interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
}

type RiderGetter interface {
	Get(ctx context.Context, id types.ID) (*rider.Rider, error)
}

// Estimator answers how long a ride from origin to destination takes.
type Estimator interface {
	EstimateDelivery(ctx context.Context, origin, destination string) (time.Duration, string, error)
}

type Step struct {
	Status  order.Status `json:"status"`
	Label   string       `json:"label"`
	Done    bool         `json:"done"`
	Current bool         `json:"current"`
}

var steps = []struct {
	status order.Status
	label  string
}{
	{order.StatusKitchen, "Preparing"},
	{order.StatusReadyForPickup, "Ready at the store"},
	{order.StatusEnRoute, "On the way"},
	{order.StatusDelivered, "Delivered"},
}

type RiderContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type ETA struct {
	Minutes  int    `json:"minutes"`
	Distance string `json:"distance"`
}

type View struct {
	OrderID        types.ID      `json:"order_id"`
	CustomerName   string        `json:"customer_name"`
	Status         order.Status  `json:"status"`
	Cancelled      bool          `json:"cancelled"`
	Steps          []Step        `json:"steps"`
	Items          []order.Item  `json:"items"`
	Rider          *RiderContact `json:"rider,omitempty"`
	ETA            *ETA          `json:"eta,omitempty"`
	ShareLink      string        `json:"share_link"`
	WhatsAppLink   string        `json:"whatsapp_link,omitempty"`
	RefreshSeconds int           `json:"refresh_seconds"`
}

type Options struct {
	BaseURL     string
	Origin      string
	Estimator   Estimator
	CallTimeout time.Duration
	Logger      *slog.Logger
}

type Service struct {
	orders    OrderGetter
	riders    RiderGetter
	baseURL   string
	origin    string
	estimator Estimator
	timeout   time.Duration
	log       *slog.Logger
}

func NewService(orders OrderGetter, riders RiderGetter, opts Options) *Service {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}
	return &Service{
		orders:    orders,
		riders:    riders,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		origin:    opts.Origin,
		estimator: opts.Estimator,
		timeout:   opts.CallTimeout,
		log:       logger.OrDefault(opts.Logger).With(slog.String("component", "tracking")),
	}
}

// View builds the public page for one order. Rider and ETA lookups are
// optional; their failures only leave the fields empty.
func (s *Service) View(ctx context.Context, id types.ID) (*View, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	o, err := s.orders.Get(cctx, id)
	cancel()
	if err != nil {
		return nil, err
	}

	v := &View{
		OrderID:        o.ID,
		CustomerName:   o.CustomerName,
		Status:         o.Status,
		Cancelled:      o.Status == order.StatusCancelled,
		Steps:          Steps(o.Status),
		Items:          o.Items,
		ShareLink:      ShareLink(s.baseURL, o.ID),
		WhatsAppLink:   WhatsAppLink(s.baseURL, o),
		RefreshSeconds: RefreshSeconds,
	}
	if v.Items == nil {
		v.Items = []order.Item{}
	}

	if o.HasRider() && o.Status == order.StatusEnRoute {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		r, err := s.riders.Get(cctx, *o.RiderID)
		cancel()
		switch {
		case err == nil:
			v.Rider = &RiderContact{Name: r.Name, Phone: r.Phone}
		case !errors.Is(err, rider.ErrNotFound):
			s.log.Warn("rider lookup failed", slog.String("order_id", string(o.ID)), slog.String("error", err.Error()))
		}
	}

	if o.Status == order.StatusEnRoute && s.estimator != nil && s.origin != "" && o.DeliveryAddress != "" {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		d, dist, err := s.estimator.EstimateDelivery(cctx, s.origin, o.DeliveryAddress)
		cancel()
		if err != nil {
			s.log.Warn("eta unavailable", slog.String("order_id", string(o.ID)), slog.String("error", err.Error()))
		} else {
			v.ETA = &ETA{Minutes: int((d + time.Minute - 1) / time.Minute), Distance: dist}
		}
	}
	return v, nil
}

// Steps marks progress along the delivery path. Unknown and cancelled states
// show the first step as current.
func Steps(s order.Status) []Step {
	active := 0
	for i, st := range steps {
		if st.status == s {
			active = i
		}
	}
	out := make([]Step, len(steps))
	for i, st := range steps {
		out[i] = Step{Status: st.status, Label: st.label, Done: i <= active, Current: i == active}
	}
	return out
}

func ShareLink(baseURL string, id types.ID) string {
	return fmt.Sprintf("%s/tracking/%s", strings.TrimRight(baseURL, "/"), url.PathEscape(string(id)))
}

// WhatsAppLink returns a wa.me link with the tracking message, or "" when the
// order has no usable phone number.
func WhatsAppLink(baseURL string, o *order.Order) string {
	phone := digits(o.CustomerPhone)
	if phone == "" {
		return ""
	}
	msg := fmt.Sprintf("Hi %s, your order is confirmed. Follow it here: %s", o.CustomerName, ShareLink(baseURL, o.ID))
	return fmt.Sprintf("https://wa.me/%s?text=%s", phone, url.QueryEscape(msg))
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
