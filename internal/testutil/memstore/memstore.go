// README: In-memory order and rider stores with failure injection for unit tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
	"fluentops/internal/types"
)

// base is the synthetic creation time of the first stored order.
var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// Orders mimics order.Store. Each added order is one minute newer than the previous one.
type Orders struct {
	mu       sync.Mutex
	items    map[types.ID]*order.Order
	seq      int
	patchErr func(id types.ID, p order.Patch) error
	readErr  error
	calls    map[string]int
}

func NewOrders() *Orders {
	return &Orders{items: make(map[types.ID]*order.Order), calls: make(map[string]int)}
}

// Add stores a copy of o, stamping CreatedAt when it is zero.
func (m *Orders) Add(o order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(&o)
}

func (m *Orders) add(o *order.Order) {
	m.seq++
	if o.CreatedAt.IsZero() {
		o.CreatedAt = base.Add(time.Duration(m.seq) * time.Minute)
	}
	o.UpdatedAt = o.CreatedAt
	m.items[o.ID] = cloneOrder(o)
}

// FailPatch makes Patch return the hook's error when it is non-nil.
func (m *Orders) FailPatch(fn func(id types.ID, p order.Patch) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patchErr = fn
}

// FailReads makes Get, List and Latest return err (nil restores them).
func (m *Orders) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *Orders) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Peek returns a copy of the stored order without counting a call.
func (m *Orders) Peek(id types.ID) (order.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[id]
	if !ok {
		return order.Order{}, false
	}
	return *cloneOrder(o), true
}

func (m *Orders) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["create"]++
	m.add(o)
	stored := m.items[o.ID]
	o.CreatedAt, o.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	return nil
}

func (m *Orders) Get(_ context.Context, id types.ID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["get"]++
	if m.readErr != nil {
		return nil, m.readErr
	}
	o, ok := m.items[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *Orders) List(_ context.Context) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["list"]++
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.sorted(), nil
}

func (m *Orders) Latest(_ context.Context) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["latest"]++
	if m.readErr != nil {
		return nil, m.readErr
	}
	all := m.sorted()
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func (m *Orders) Patch(_ context.Context, id types.ID, p order.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["patch"]++
	if m.patchErr != nil {
		if err := m.patchErr(id, p); err != nil {
			return err
		}
	}
	o, ok := m.items[id]
	if !ok {
		return order.ErrNotFound
	}
	if p.IfStatus != nil && o.Status != *p.IfStatus {
		return order.ErrConflict
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.RiderID != nil {
		r := *p.RiderID
		o.RiderID = &r
	}
	o.UpdatedAt = o.UpdatedAt.Add(time.Second)
	return nil
}

func (m *Orders) sorted() []order.Order {
	out := make([]order.Order, 0, len(m.items))
	for _, o := range m.items {
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	if o.Items != nil {
		cp.Items = append([]order.Item(nil), o.Items...)
	}
	if o.RiderID != nil {
		r := *o.RiderID
		cp.RiderID = &r
	}
	return &cp
}

// Riders mimics rider.Store. Patch stamps UpdatedAt with the wall clock like the
// database does.
type Riders struct {
	mu       sync.Mutex
	items    map[types.ID]*rider.Rider
	patchErr func(id types.ID, p rider.Patch) error
	readErr  error
	calls    map[string]int
}

func NewRiders() *Riders {
	return &Riders{items: make(map[types.ID]*rider.Rider), calls: make(map[string]int)}
}

func (m *Riders) Add(r rider.Rider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := r
	m.items[r.ID] = &cp
}

// FailPatch makes Patch return the hook's error when it is non-nil.
func (m *Riders) FailPatch(fn func(id types.ID, p rider.Patch) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patchErr = fn
}

// FailReads makes Get and List return err (nil restores them).
func (m *Riders) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *Riders) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Peek returns a copy of the stored rider without counting a call.
func (m *Riders) Peek(id types.ID) (rider.Rider, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return rider.Rider{}, false
	}
	return *r, true
}

func (m *Riders) List(_ context.Context, status *rider.Status) ([]rider.Rider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["list"]++
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]rider.Rider, 0, len(m.items))
	for _, r := range m.items {
		if status != nil && r.Status != *status {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Riders) Get(_ context.Context, id types.ID) (*rider.Rider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["get"]++
	if m.readErr != nil {
		return nil, m.readErr
	}
	r, ok := m.items[id]
	if !ok {
		return nil, rider.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Riders) Patch(_ context.Context, id types.ID, p rider.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["patch"]++
	if m.patchErr != nil {
		if err := m.patchErr(id, p); err != nil {
			return err
		}
	}
	r, ok := m.items[id]
	if !ok {
		return rider.ErrNotFound
	}
	if p.IfStatus != nil && r.Status != *p.IfStatus {
		return rider.ErrConflict
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	r.UpdatedAt = time.Now().UTC()
	return nil
}
