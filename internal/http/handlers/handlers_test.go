// README: Handler tests over httptest with in-memory stores behind the real services.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"fluentops/internal/config"
	"fluentops/internal/http/handlers"
	"fluentops/internal/logger"
	"fluentops/internal/modules/board"
	"fluentops/internal/modules/console"
	"fluentops/internal/modules/dispatch"
	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
	"fluentops/internal/modules/tracking"
	"fluentops/internal/modules/watch"
	"fluentops/internal/testutil/memstore"
	"fluentops/internal/types"
)

type memAlerts struct {
	mu     sync.Mutex
	alerts []watch.Alert
}

func (m *memAlerts) List(context.Context) ([]watch.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]watch.Alert{}, m.alerts...), nil
}

func (m *memAlerts) Dismiss(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.alerts {
		if a.ID == id {
			m.alerts = append(m.alerts[:i], m.alerts[i+1:]...)
			return nil
		}
	}
	return watch.ErrAlertNotFound
}

type env struct {
	router *gin.Engine
	orders *memstore.Orders
	riders *memstore.Riders
	board  *board.Service
	alerts *memAlerts
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Discard()
	e := &env{orders: memstore.NewOrders(), riders: memstore.NewRiders(), alerts: &memAlerts{}}
	e.board = board.NewService(e.orders, e.riders, config.BoardConfig{RefreshInterval: time.Hour}, time.Second, log)
	orderSvc := order.NewService(e.orders)
	disp := dispatch.NewService(e.orders, e.riders, dispatch.Options{Policy: config.Default().Policy, CallTimeout: time.Second, Logger: log})
	cons := console.New(disp, orderSvc, e.board, log)
	track := tracking.NewService(e.orders, e.riders, tracking.Options{BaseURL: "http://t.test", Logger: log})

	r := gin.New()
	oh := handlers.NewOrderHandler(orderSvc, cons)
	r.POST("/api/orders", oh.Create)
	r.GET("/api/orders/:id", oh.Get)
	r.POST("/api/orders/:id/ready", oh.MarkReady)
	r.POST("/api/orders/:id/assign", oh.Assign)
	r.POST("/api/orders/:id/complete", oh.Complete)
	r.POST("/api/orders/:id/cancel", oh.Cancel)
	bh := handlers.NewBoardHandler(e.board)
	r.GET("/api/board", bh.Get)
	r.POST("/api/board/refresh", bh.Refresh)
	rh := handlers.NewRiderHandler(rider.NewService(e.riders))
	r.GET("/api/riders", rh.List)
	r.PUT("/api/riders/:id/status", rh.SetStatus)
	ah := handlers.NewAlertHandler(e.alerts)
	r.GET("/api/alerts", ah.List)
	r.POST("/api/alerts/:id/dismiss", ah.Dismiss)
	th := handlers.NewTrackingHandler(track)
	r.GET("/api/tracking/:id", th.Get)
	e.router = r
	return e
}

func (e *env) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return resp.Error
}

func TestCreateOrderAcceptsTextAndArrayItems(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/api/orders", map[string]any{
		"customer_name": "Ana", "delivery_address": "Calle 1", "items": "pizza, agua",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("text items: %d %s", w.Code, w.Body.String())
	}
	var o order.Order
	_ = json.Unmarshal(w.Body.Bytes(), &o)
	if o.Status != order.StatusKitchen || len(o.Items) != 2 {
		t.Errorf("created = %+v", o)
	}

	w = e.do(http.MethodPost, "/api/orders", map[string]any{
		"customer_name": "Beto", "delivery_address": "Calle 2",
		"items": []any{"sopa", map[string]any{"name": "chicha", "quantity": 2}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("array items: %d %s", w.Code, w.Body.String())
	}

	w = e.do(http.MethodPost, "/api/orders", map[string]any{"customer_name": "x", "delivery_address": "y"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing items: %d", w.Code)
	}
	w = e.do(http.MethodPost, "/api/orders", map[string]any{"customer_name": "x", "delivery_address": "y", "items": 5})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad items: %d", w.Code)
	}
	w = e.do(http.MethodPost, "/api/orders", map[string]any{
		"customer_name": "x", "delivery_address": "y",
		"items": []any{map[string]any{"name": "chicha", "quantity": 0}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero quantity: %d", w.Code)
	}
}

func TestAssignCompleteOverHTTP(t *testing.T) {
	e := newEnv(t)
	e.orders.Add(order.Order{ID: "O1", CustomerName: "Ana", Status: order.StatusKitchen})
	e.riders.Add(rider.Rider{ID: "R1", Name: "Rafa", Status: rider.StatusAvailable})

	if w := e.do(http.MethodPost, "/api/orders/O1/assign", map[string]string{"rider_id": "R1"}); w.Code != http.StatusOK {
		t.Fatalf("assign: %d %s", w.Code, w.Body.String())
	}
	if w := e.do(http.MethodPost, "/api/orders/O1/complete", nil); w.Code != http.StatusOK {
		t.Fatalf("complete: %d %s", w.Code, w.Body.String())
	}
	if r, _ := e.riders.Peek("R1"); r.Status != rider.StatusAvailable {
		t.Errorf("rider = %s", r.Status)
	}
	if o, _ := e.orders.Peek("O1"); o.Status != order.StatusDelivered {
		t.Errorf("order = %s", o.Status)
	}
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t)
	e.orders.Add(order.Order{ID: "O1", Status: order.StatusKitchen})
	e.orders.Add(order.Order{ID: "O2", Status: order.StatusDelivered})
	e.orders.Add(order.Order{ID: "O3", Status: order.StatusKitchen})
	e.riders.Add(rider.Rider{ID: "R1", Status: rider.StatusBusy})
	e.riders.Add(rider.Rider{ID: "R2", Status: rider.StatusAvailable})

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown order", http.MethodGet, "/api/orders/nope", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/orders/bad$id", nil, http.StatusBadRequest},
		{"busy rider", http.MethodPost, "/api/orders/O1/assign", map[string]string{"rider_id": "R1"}, http.StatusConflict},
		{"missing rider", http.MethodPost, "/api/orders/O1/assign", map[string]string{}, http.StatusBadRequest},
		{"unknown rider", http.MethodPost, "/api/orders/O1/assign", map[string]string{"rider_id": "R9"}, http.StatusNotFound},
		{"cancel delivered", http.MethodPost, "/api/orders/O2/cancel", nil, http.StatusConflict},
		{"complete kitchen", http.MethodPost, "/api/orders/O1/complete", nil, http.StatusConflict},
		{"ready twice source", http.MethodPost, "/api/orders/O2/ready", nil, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(tc.method, tc.path, tc.body)
			if w.Code != tc.want {
				t.Fatalf("got %d, want %d (%s)", w.Code, tc.want, w.Body.String())
			}
			if decodeError(t, w) == "" {
				t.Error("error message missing")
			}
		})
	}

	// compensated assignment
	e.orders.FailPatch(func(types.ID, order.Patch) error { return errors.New("timeout") })
	w := e.do(http.MethodPost, "/api/orders/O3/assign", map[string]string{"rider_id": "R2"})
	if w.Code != http.StatusConflict {
		t.Fatalf("rolled back: got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "The order could not be updated and the rider was released. Try the assignment again." {
		t.Errorf("message = %q", msg)
	}
	if r, _ := e.riders.Peek("R2"); r.Status != rider.StatusAvailable {
		t.Errorf("R2 = %s", r.Status)
	}

	// store down
	e.orders.FailReads(errors.New("connection refused"))
	if w := e.do(http.MethodPost, "/api/orders/O1/cancel", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("transport: got %d", w.Code)
	}
}

func TestBoardEndpoints(t *testing.T) {
	e := newEnv(t)
	e.orders.Add(order.Order{ID: "O1", Status: order.StatusDelivered})
	e.orders.Add(order.Order{ID: "O2", Status: order.StatusKitchen})
	e.orders.Add(order.Order{ID: "O3", Status: order.StatusCancelled})

	w := e.do(http.MethodPost, "/api/board/refresh?wait=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", w.Code, w.Body.String())
	}
	w = e.do(http.MethodGet, "/api/board?filter=pending", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("board: %d", w.Code)
	}
	var resp struct {
		Orders      []order.Order  `json:"orders"`
		Counts      map[string]int `json:"counts"`
		RefreshedAt *time.Time     `json:"refreshed_at"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Orders) != 1 || resp.Orders[0].ID != "O2" {
		t.Errorf("pending orders = %+v", resp.Orders)
	}
	if resp.Counts["all"] != 3 || resp.Counts["cancelled"] != 1 || resp.RefreshedAt == nil {
		t.Errorf("counts = %v, refreshed = %v", resp.Counts, resp.RefreshedAt)
	}

	if w := e.do(http.MethodGet, "/api/board?filter=kitchen", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad filter: %d", w.Code)
	}
	if w := e.do(http.MethodPost, "/api/board/refresh", nil); w.Code != http.StatusAccepted {
		t.Errorf("async refresh: %d", w.Code)
	}

	e.orders.FailReads(errors.New("down"))
	if w := e.do(http.MethodPost, "/api/board/refresh?wait=true", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("failed refresh: %d", w.Code)
	}
	if snap, _ := e.board.Snapshot(); len(snap.Orders) != 3 {
		t.Error("previous snapshot should be kept")
	}
}

func TestRiderEndpoints(t *testing.T) {
	e := newEnv(t)
	e.riders.Add(rider.Rider{ID: "R1", Name: "A", Status: rider.StatusAvailable})
	e.riders.Add(rider.Rider{ID: "R2", Name: "B", Status: rider.StatusOffline})

	w := e.do(http.MethodGet, "/api/riders?status=available", nil)
	var list []rider.Rider
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if w.Code != http.StatusOK || len(list) != 1 || list[0].ID != "R1" {
		t.Fatalf("list: %d %+v", w.Code, list)
	}
	if w := e.do(http.MethodGet, "/api/riders?status=sleeping", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad status filter: %d", w.Code)
	}
	if w := e.do(http.MethodPut, "/api/riders/R2/status", map[string]string{"status": "available"}); w.Code != http.StatusOK {
		t.Errorf("set status: %d", w.Code)
	}
	if w := e.do(http.MethodPut, "/api/riders/R2/status", map[string]string{"status": "busy"}); w.Code != http.StatusBadRequest {
		t.Errorf("busy is reserved: %d", w.Code)
	}
	if w := e.do(http.MethodPut, "/api/riders/R9/status", map[string]string{"status": "offline"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown rider: %d", w.Code)
	}
}

func TestAlertEndpoints(t *testing.T) {
	e := newEnv(t)
	e.alerts.alerts = []watch.Alert{{ID: "a1", OrderID: "O1", Message: "New order from Ana"}}

	w := e.do(http.MethodGet, "/api/alerts", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("New order from Ana")) {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	if w := e.do(http.MethodPost, "/api/alerts/a1/dismiss", nil); w.Code != http.StatusNoContent {
		t.Errorf("dismiss: %d", w.Code)
	}
	if w := e.do(http.MethodPost, "/api/alerts/a1/dismiss", nil); w.Code != http.StatusNotFound {
		t.Errorf("dismiss twice: %d", w.Code)
	}
}

func TestTrackingEndpoint(t *testing.T) {
	e := newEnv(t)
	e.orders.Add(order.Order{ID: "O1", CustomerName: "Ana", CustomerPhone: "51999", Status: order.StatusReadyForPickup})
	w := e.do(http.MethodGet, "/api/tracking/O1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tracking: %d", w.Code)
	}
	var v tracking.View
	_ = json.Unmarshal(w.Body.Bytes(), &v)
	if v.ShareLink != "http://t.test/tracking/O1" || v.WhatsAppLink == "" {
		t.Errorf("view = %+v", v)
	}
	if w := e.do(http.MethodGet, "/api/tracking/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown: %d", w.Code)
	}
}
