// README: Order service tests against the in-memory store.
package order_test

import (
	"context"
	"errors"
	"testing"

	"fluentops/internal/modules/order"
	"fluentops/internal/testutil/memstore"
)

func TestCreateStartsInKitchen(t *testing.T) {
	store := memstore.NewOrders()
	svc := order.NewService(store)

	o, err := svc.Create(context.Background(), order.CreateCommand{
		CustomerName:    "  Ana ",
		CustomerPhone:   "51999888777",
		DeliveryAddress: "Av. Larco 123",
		Items:           order.ParseItemList("pizza, gaseosa"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.ID == "" {
		t.Fatal("expected generated id")
	}
	stored, ok := store.Peek(o.ID)
	if !ok {
		t.Fatal("order not stored")
	}
	if stored.Status != order.StatusKitchen {
		t.Errorf("status = %s, want kitchen", stored.Status)
	}
	if stored.CustomerName != "Ana" {
		t.Errorf("name not trimmed: %q", stored.CustomerName)
	}
	if stored.CreatedAt.IsZero() || o.CreatedAt.IsZero() {
		t.Error("created_at should be assigned by the store")
	}
}

func TestCreateRejectsIncomplete(t *testing.T) {
	svc := order.NewService(memstore.NewOrders())
	cases := []order.CreateCommand{
		{DeliveryAddress: "x", Items: order.ParseItemList("a")},
		{CustomerName: "x", Items: order.ParseItemList("a")},
		{CustomerName: "x", DeliveryAddress: "y"},
	}
	for i, cmd := range cases {
		if _, err := svc.Create(context.Background(), cmd); !errors.Is(err, order.ErrBadRequest) {
			t.Errorf("case %d: expected ErrBadRequest, got %v", i, err)
		}
	}
}

func TestMarkReady(t *testing.T) {
	store := memstore.NewOrders()
	store.Add(order.Order{ID: "o1", Status: order.StatusKitchen})
	store.Add(order.Order{ID: "o2", Status: order.StatusEnRoute})
	svc := order.NewService(store)
	ctx := context.Background()

	if err := svc.MarkReady(ctx, order.MarkReadyCommand{OrderID: "o1"}); err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	if o, _ := store.Peek("o1"); o.Status != order.StatusReadyForPickup {
		t.Errorf("status = %s", o.Status)
	}
	if err := svc.MarkReady(ctx, order.MarkReadyCommand{OrderID: "o1"}); !errors.Is(err, order.ErrInvalidState) {
		t.Errorf("second mark ready: expected ErrInvalidState, got %v", err)
	}
	if err := svc.MarkReady(ctx, order.MarkReadyCommand{OrderID: "o2"}); !errors.Is(err, order.ErrInvalidState) {
		t.Errorf("en route: expected ErrInvalidState, got %v", err)
	}
	if err := svc.MarkReady(ctx, order.MarkReadyCommand{OrderID: "missing"}); !errors.Is(err, order.ErrNotFound) {
		t.Errorf("missing: expected ErrNotFound, got %v", err)
	}
}
