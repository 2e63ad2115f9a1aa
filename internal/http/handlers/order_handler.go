// README: Order handlers: intake, lookup and the order card actions.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fluentops/internal/modules/console"
	"fluentops/internal/modules/order"
	"fluentops/internal/types"
)

type OrderHandler struct {
	order   *order.Service
	console *console.Console
}

func NewOrderHandler(svc *order.Service, cons *console.Console) *OrderHandler {
	return &OrderHandler{order: svc, console: cons}
}

type createOrderReq struct {
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	DeliveryAddress string          `json:"delivery_address"`
	Items           json.RawMessage `json:"items"`
}

// parseItems accepts "a, b, c" or a JSON array of strings and objects.
func parseItems(raw json.RawMessage) ([]order.Item, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, true
	}
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, false
		}
		return order.ParseItemList(text), true
	}
	var items []order.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	items, ok := parseItems(req.Items)
	if !ok {
		writeError(c, http.StatusBadRequest, "invalid items")
		return
	}
	o, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		Items:           items,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.order.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) MarkReady(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.console.MarkReady(c.Request.Context(), types.ID(id)); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "status": order.StatusReadyForPickup})
}

type riderReq struct {
	RiderID string `json:"rider_id"`
}

func (h *OrderHandler) Assign(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req riderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidID(req.RiderID) {
		writeError(c, http.StatusBadRequest, "invalid rider_id")
		return
	}
	if err := h.console.Assign(c.Request.Context(), types.ID(id), types.ID(req.RiderID)); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "rider_id": req.RiderID, "status": order.StatusEnRoute})
}

// Complete takes an optional rider_id; without one the order's rider is released.
func (h *OrderHandler) Complete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req riderReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
		if req.RiderID != "" && !isValidID(req.RiderID) {
			writeError(c, http.StatusBadRequest, "invalid rider_id")
			return
		}
	}
	if err := h.console.Complete(c.Request.Context(), types.ID(id), types.ID(req.RiderID)); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "status": order.StatusDelivered})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.console.Cancel(c.Request.Context(), types.ID(id)); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "status": order.StatusCancelled})
}
