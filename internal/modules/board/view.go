// README: Board view: filters, priority sort and counts over an order snapshot.
package board

import (
	"sort"
	"time"

	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
)

type Filter string

const (
	FilterAll       Filter = "all"
	FilterPending   Filter = "pending"
	FilterDelivered Filter = "delivered"
	FilterCancelled Filter = "cancelled"
)

var Filters = []Filter{FilterAll, FilterPending, FilterDelivered, FilterCancelled}

// ParseFilter maps query input to a filter. Empty means all.
func ParseFilter(s string) (Filter, bool) {
	if s == "" {
		return FilterAll, true
	}
	for _, f := range Filters {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

func (f Filter) Match(s order.Status) bool {
	switch f {
	case FilterAll:
		return true
	case FilterPending:
		return s.Pending()
	case FilterDelivered:
		return s == order.StatusDelivered
	case FilterCancelled:
		return s == order.StatusCancelled
	default:
		return false
	}
}

// priority: pending first, then delivered, cancelled, anything unknown last.
func priority(s order.Status) int {
	switch {
	case s.Pending():
		return 0
	case s == order.StatusDelivered:
		return 1
	case s == order.StatusCancelled:
		return 2
	default:
		return 3
	}
}

// Snapshot is one consistent read of both stores. It is never mutated after publish.
type Snapshot struct {
	Orders      []order.Order `json:"orders"`
	Riders      []rider.Rider `json:"riders"`
	RefreshedAt time.Time     `json:"refreshed_at"`
}

type Counts map[Filter]int

// View is one filtered rendering of a single snapshot: the listed orders,
// the counts and the riders always come from the same refresh.
type View struct {
	Filter      Filter        `json:"filter"`
	Orders      []order.Order `json:"orders"`
	Counts      Counts        `json:"counts"`
	Riders      []rider.Rider `json:"riders"`
	RefreshedAt time.Time     `json:"refreshed_at"`
}

func (s Snapshot) View(f Filter) View {
	return View{
		Filter:      f,
		Orders:      FilterOrders(s.Orders, f),
		Counts:      CountOrders(s.Orders),
		Riders:      append([]rider.Rider{}, s.Riders...),
		RefreshedAt: s.RefreshedAt,
	}
}

// SortOrders returns a sorted copy: priority bucket, then newest first.
func SortOrders(in []order.Order) []order.Order {
	out := append([]order.Order(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priority(out[i].Status), priority(out[j].Status)
		if pi != pj {
			return pi < pj
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// FilterOrders keeps the orders matching f, preserving order.
func FilterOrders(in []order.Order, f Filter) []order.Order {
	out := make([]order.Order, 0, len(in))
	for _, o := range in {
		if f.Match(o.Status) {
			out = append(out, o)
		}
	}
	return out
}

func CountOrders(in []order.Order) Counts {
	c := Counts{}
	for _, f := range Filters {
		c[f] = 0
	}
	for _, o := range in {
		for _, f := range Filters {
			if f.Match(o.Status) {
				c[f]++
			}
		}
	}
	return c
}
