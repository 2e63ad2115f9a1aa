// README: Coordinator tests: assignment saga, completion, cancellation and operator messages.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fluentops/internal/config"
	"fluentops/internal/events"
	"fluentops/internal/logger"
	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
	"fluentops/internal/testutil/memstore"
	"fluentops/internal/types"
)

var errDown = errors.New("connection refused")

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	orders *memstore.Orders
	riders *memstore.Riders
	pub    *recordingPublisher
	svc    *Service
}

func newFixture(t *testing.T, policy config.PolicyConfig) *fixture {
	t.Helper()
	f := &fixture{
		orders: memstore.NewOrders(),
		riders: memstore.NewRiders(),
		pub:    &recordingPublisher{},
	}
	f.svc = NewService(f.orders, f.riders, Options{
		Policy:      policy,
		CallTimeout: time.Second,
		Events:      f.pub,
		Logger:      logger.Discard(),
	})
	return f
}

func defaultPolicy() config.PolicyConfig {
	return config.Default().Policy
}

func (f *fixture) orderStatus(t *testing.T, id types.ID) order.Status {
	t.Helper()
	o, ok := f.orders.Peek(id)
	if !ok {
		t.Fatalf("order %s missing", id)
	}
	return o.Status
}

func (f *fixture) riderStatus(t *testing.T, id types.ID) rider.Status {
	t.Helper()
	r, ok := f.riders.Peek(id)
	if !ok {
		t.Fatalf("rider %s missing", id)
	}
	return r.Status
}

func TestAssignThenComplete(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.orders.Add(order.Order{ID: "O1", CustomerName: "Ana", Status: order.StatusKitchen})
	f.riders.Add(rider.Rider{ID: "R1", Name: "Rafa", Status: rider.StatusAvailable})
	ctx := context.Background()

	if err := f.svc.Assign(ctx, AssignCommand{OrderID: "O1", RiderID: "R1"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	o, _ := f.orders.Peek("O1")
	if o.Status != order.StatusEnRoute || o.RiderID == nil || *o.RiderID != "R1" {
		t.Fatalf("order after assign = %+v", o)
	}
	if got := f.riderStatus(t, "R1"); got != rider.StatusBusy {
		t.Fatalf("rider after assign = %s, want busy", got)
	}

	if err := f.svc.Complete(ctx, CompleteCommand{OrderID: "O1"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := f.orderStatus(t, "O1"); got != order.StatusDelivered {
		t.Errorf("order after complete = %s", got)
	}
	if got := f.riderStatus(t, "R1"); got != rider.StatusAvailable {
		t.Errorf("rider after complete = %s", got)
	}

	want := []events.Type{events.OrderAssigned, events.RiderReleased, events.OrderDelivered}
	got := f.pub.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAssignFromReadyForPickup(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.orders.Add(order.Order{ID: "O1", Status: order.StatusReadyForPickup})
	f.riders.Add(rider.Rider{ID: "R1", Status: rider.StatusAvailable})
	if err := f.svc.Assign(context.Background(), AssignCommand{OrderID: "O1", RiderID: "R1"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got := f.orderStatus(t, "O1"); got != order.StatusEnRoute {
		t.Errorf("status = %s", got)
	}
}

func TestAssignRollsBackWhenOrderWriteFails(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.orders.Add(order.Order{ID: "O2", Status: order.StatusKitchen})
	f.riders.Add(rider.Rider{ID: "R2", Status: rider.StatusAvailable})
	f.orders.FailPatch(func(types.ID, order.Patch) error { return errDown })

	err := f.svc.Assign(context.Background(), AssignCommand{OrderID: "O2", RiderID: "R2"})
	if !errors.Is(err, ErrRolledBack) {
		t.Fatalf("expected ErrRolledBack, got %v", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected the transport cause to be kept, got %v", err)
	}
	if got := f.riderStatus(t, "R2"); got != rider.StatusAvailable {
		t.Errorf("rider = %s, want available after compensation", got)
	}
	o, _ := f.orders.Peek("O2")
	if o.Status != order.StatusKitchen || o.RiderID != nil {
		t.Errorf("order should be untouched, got %+v", o)
	}
	// reserve then compensate
	if n := f.riders.Calls("patch"); n != 2 {
		t.Errorf("rider patches = %d, want 2", n)
	}
	if len(f.pub.types()) != 0 {
		t.Errorf("no events expected, got %v", f.pub.types())
	}
}

func TestAssignCompensatesAfterCallerCancel(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.orders.Add(order.Order{ID: "O2", Status: order.StatusKitchen})
	f.riders.Add(rider.Rider{ID: "R2", Status: rider.StatusAvailable})

	ctx, cancel := context.WithCancel(context.Background())
	f.orders.FailPatch(func(types.ID, order.Patch) error {
		cancel()
		return context.Canceled
	})
	err := f.svc.Assign(ctx, AssignCommand{OrderID: "O2", RiderID: "R2"})
	if !errors.Is(err, ErrRolledBack) {
		t.Fatalf("expected ErrRolledBack, got %v", err)
	}
	if got := f.riderStatus(t, "R2"); got != rider.StatusAvailable {
		t.Errorf("rider = %s, want available", got)
	}
}

func TestAssignOrderConflictIsRolledBack(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.orders.Add(order.Order{ID: "O1", Status: order.StatusKitchen})
	f.riders.Add(rider.Rider{ID: "R1", Status: rider.StatusAvailable})
	// another operator cancels the order between the read and the commit
	f.riders.FailPatch(func(id types.ID, p rider.Patch) error {
		if p.Status != nil && *p.Status == rider.StatusBusy {
			cancelled := order.StatusCancelled
			_ = f.orders.Patch(context.Background(), "O1", order.Patch{Status: &cancelled})
		}
		return nil
	})

	err := f.svc.Assign(context.Background(), AssignCommand{OrderID: "O1", RiderID: "R1"})
	if !errors.Is(err, ErrRolledBack) || !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected rolled back precondition failure, got %v", err)
	}
	if got := f.riderStatus(t, "R1"); got != rider.StatusAvailable {
		t.Errorf("rider = %s, want available", got)
	}
	if got := f.orderStatus(t, "O1"); got != order.StatusCancelled {
		t.Errorf("order = %s, want cancelled", got)
	}
}

func TestAssignRejectsUnavailableRider(t *testing.T) {
	for _, st := range []rider.Status{rider.StatusBusy, rider.StatusOffline} {
		t.Run(string(st), func(t *testing.T) {
			f := newFixture(t, defaultPolicy())
			f.orders.Add(order.Order{ID: "O1", Status: order.StatusKitchen})
			f.riders.Add(rider.Rider{ID: "R1", Status: st})

			err := f.svc.Assign(context.Background(), AssignCommand{OrderID: "O1", RiderID: "R1"})
			if !errors.Is(err, ErrRiderUnavailable) || !errors.Is(err, ErrPreconditionFailed) {
				t.Fatalf("expected ErrRiderUnavailable, got %v", err)
			}
			if f.riders.Calls("patch") != 0 || f.orders.Calls("patch") != 0 {
				t.Error("no writes expected")
			}
			if got := f.riderStatus(t, "R1"); got != st {
				t.Errorf("rider status changed to %s", got)
			}
		})
	}
}

func TestAssignReserveLosesRace(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.orders.Add(order.Order{ID: "O1", Status: order.StatusKitchen})
	f.riders.Add(rider.Rider{ID: "R1", Status: rider.StatusAvailable})
	f.riders.FailPatch(func(types.ID, rider.Patch) error { return rider.ErrConflict })

	err := f.svc.Assign(context.Background(), AssignCommand{OrderID: "O1", RiderID: "R1"})
	if !errors.Is(err, ErrRiderUnavailable) {
		t.Fatalf("expected ErrRiderUnavailable, got %v", err)
	}
	if f.orders.Calls("patch") != 0 {
		t.Error("order must not be written when the reservation fails")
	}
}

func TestAssignReserveTransportFailure(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.orders.Add(order.Order{ID: "O1", Status: order.StatusKitchen})
	f.riders.Add(rider.Rider{ID: "R1", Status: rider.StatusAvailable})
	f.riders.FailPatch(func(types.ID, rider.Patch) error { return errDown })

	err := f.svc.Assign(context.Background(), AssignCommand{OrderID: "O1", RiderID: "R1"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if f.orders.Calls("patch") != 0 {
		t.Error("order must not be written when the reservation fails")
	}
}

func TestAssignRejectsInvalidSource(t *testing.T) {
	for _, st := range []order.Status{order.StatusEnRoute, order.StatusDelivered, order.StatusCancelled} {
		t.Run(string(st), func(t *testing.T) {
			f := newFixture(t, defaultPolicy())
			f.orders.Add(order.Order{ID: "O1", Status: st})
			f.riders.Add(rider.Rider{ID: "R1", Status: rider.StatusAvailable})

			err := f.svc.Assign(context.Background(), AssignCommand{OrderID: "O1", RiderID: "R1"})
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if got := f.riderStatus(t, "R1"); got != rider.StatusAvailable {
				t.Errorf("rider = %s", got)
			}
		})
	}
}

func TestAssignMissingEntities(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.orders.Add(order.Order{ID: "O1", Status: order.StatusKitchen})
	ctx := context.Background()

	if err := f.svc.Assign(ctx, AssignCommand{OrderID: "nope", RiderID: "R1"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing order: %v", err)
	}
	if err := f.svc.Assign(ctx, AssignCommand{OrderID: "O1", RiderID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing rider: %v", err)
	}
	if err := f.svc.Assign(ctx, AssignCommand{OrderID: "O1"}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("no rider selected: %v", err)
	}
}

func TestAssignReadFailureIsTransport(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.orders.FailReads(errDown)
	err := f.svc.Assign(context.Background(), AssignCommand{OrderID: "O1", RiderID: "R1"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestCompleteRequiresEnRoute(t *testing.T) {
	for _, st := range []order.Status{order.StatusKitchen, order.StatusReadyForPickup, order.StatusDelivered, order.StatusCancelled} {
		f := newFixture(t, defaultPolicy())
		f.orders.Add(order.Order{ID: "O1", Status: st})
		if err := f.svc.Complete(context.Background(), CompleteCommand{OrderID: "O1"}); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s: expected ErrInvalidTransition, got %v", st, err)
		}
	}
}

func TestCompleteReleasesRiderWhenOrderWriteFails(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	r1 := types.ID("R1")
	f.orders.Add(order.Order{ID: "O1", Status: order.StatusEnRoute, RiderID: &r1})
	f.riders.Add(rider.Rider{ID: "R1", Status: rider.StatusBusy})
	f.orders.FailPatch(func(types.ID, order.Patch) error { return errDown })

	err := f.svc.Complete(context.Background(), CompleteCommand{OrderID: "O1"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if got := f.orderStatus(t, "O1"); got != order.StatusEnRoute {
		t.Errorf("order = %s", got)
	}
	if got := f.riderStatus(t, "R1"); got != rider.StatusAvailable {
		t.Errorf("rider = %s, want released", got)
	}
}

func TestCompleteKeepsRiderWhenPolicyOff(t *testing.T) {
	policy := defaultPolicy()
	policy.ReleaseOnFailedCompletion = false
	f := newFixture(t, policy)
	r1 := types.ID("R1")
	f.orders.Add(order.Order{ID: "O1", Status: order.StatusEnRoute, RiderID: &r1})
	f.riders.Add(rider.Rider{ID: "R1", Status: rider.StatusBusy})
	f.orders.FailPatch(func(types.ID, order.Patch) error { return errDown })

	if err := f.svc.Complete(context.Background(), CompleteCommand{OrderID: "O1"}); err == nil {
		t.Fatal("expected error")
	}
	if got := f.riderStatus(t, "R1"); got != rider.StatusBusy {
		t.Errorf("rider = %s, want busy", got)
	}
}

func TestCompleteIgnoresReleaseFailure(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	r1 := types.ID("R1")
	f.orders.Add(order.Order{ID: "O1", Status: order.StatusEnRoute, RiderID: &r1})
	f.riders.Add(rider.Rider{ID: "R1", Status: rider.StatusBusy})
	f.riders.FailPatch(func(types.ID, rider.Patch) error { return errDown })

	if err := f.svc.Complete(context.Background(), CompleteCommand{OrderID: "O1"}); err != nil {
		t.Fatalf("release failure must not fail completion: %v", err)
	}
	if got := f.orderStatus(t, "O1"); got != order.StatusDelivered {
		t.Errorf("order = %s", got)
	}
}

func TestCompleteWithoutRider(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.orders.Add(order.Order{ID: "O1", Status: order.StatusEnRoute})
	if err := f.svc.Complete(context.Background(), CompleteCommand{OrderID: "O1"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if f.riders.Calls("patch") != 0 {
		t.Error("no rider to release")
	}
}

func TestCancelFromEveryPendingState(t *testing.T) {
	for _, st := range []order.Status{order.StatusKitchen, order.StatusReadyForPickup, order.StatusEnRoute} {
		f := newFixture(t, defaultPolicy())
		r1 := types.ID("R1")
		f.orders.Add(order.Order{ID: "O1", Status: st, RiderID: &r1})
		f.riders.Add(rider.Rider{ID: "R1", Status: rider.StatusBusy})

		if err := f.svc.Cancel(context.Background(), CancelCommand{OrderID: "O1"}); err != nil {
			t.Fatalf("%s: cancel: %v", st, err)
		}
		if got := f.orderStatus(t, "O1"); got != order.StatusCancelled {
			t.Errorf("%s: order = %s", st, got)
		}
		if got := f.riderStatus(t, "R1"); got != rider.StatusBusy {
			t.Errorf("%s: rider should not be touched by default, got %s", st, got)
		}
	}
}

func TestCancelReleasesRiderWhenConfigured(t *testing.T) {
	policy := defaultPolicy()
	policy.ReleaseRiderOnCancel = true
	f := newFixture(t, policy)
	r1 := types.ID("R1")
	f.orders.Add(order.Order{ID: "O1", Status: order.StatusEnRoute, RiderID: &r1})
	f.riders.Add(rider.Rider{ID: "R1", Status: rider.StatusBusy})

	if err := f.svc.Cancel(context.Background(), CancelCommand{OrderID: "O1"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.riderStatus(t, "R1"); got != rider.StatusAvailable {
		t.Errorf("rider = %s, want available", got)
	}
}

func TestCancelTerminalOrders(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, defaultPolicy())
	f.orders.Add(order.Order{ID: "done", Status: order.StatusDelivered})
	f.orders.Add(order.Order{ID: "gone", Status: order.StatusCancelled})
	if err := f.svc.Cancel(ctx, CancelCommand{OrderID: "done"}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("delivered: expected ErrInvalidTransition, got %v", err)
	}
	if err := f.svc.Cancel(ctx, CancelCommand{OrderID: "gone"}); err != nil {
		t.Errorf("cancelled twice should be a no-op, got %v", err)
	}
	if f.orders.Calls("patch") != 0 {
		t.Error("terminal orders must not be written")
	}

	strict := defaultPolicy()
	strict.StrictTerminalCancel = true
	f = newFixture(t, strict)
	f.orders.Add(order.Order{ID: "gone", Status: order.StatusCancelled})
	if err := f.svc.Cancel(ctx, CancelCommand{OrderID: "gone"}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("strict: expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelStoreFailure(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.orders.Add(order.Order{ID: "O1", Status: order.StatusKitchen})
	f.orders.FailPatch(func(types.ID, order.Patch) error { return errDown })
	if err := f.svc.Cancel(context.Background(), CancelCommand{OrderID: "O1"}); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestOperatorMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrBadRequest, "Select an order and a rider first."},
		{wrap("x", order.ErrNotFound), "The order or rider no longer exists. Refresh the board."},
		{ErrRiderUnavailable, "That rider is no longer available. Pick another rider."},
		{wrap("x", order.ErrConflict), "The order changed in the meantime. Refresh the board and try again."},
		{wrap("x", errDown), "Could not reach the order store. Check the connection and try again."},
	}
	for _, tc := range cases {
		if got := OperatorMessage(tc.err); got != tc.want {
			t.Errorf("OperatorMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{order.ErrInvalidState, ErrInvalidTransition},
		{order.ErrBadRequest, ErrBadRequest},
		{rider.ErrNotFound, ErrNotFound},
		{rider.ErrConflict, ErrPreconditionFailed},
		{ErrRiderUnavailable, ErrPreconditionFailed},
		{context.DeadlineExceeded, ErrTransport},
		{errDown, ErrTransport},
	}
	for _, tc := range cases {
		if got := Classify(tc.in); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
