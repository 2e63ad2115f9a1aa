// README: Board handlers: filtered view of the latest snapshot and refresh trigger.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fluentops/internal/modules/board"
	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
)

type BoardHandler struct {
	board *board.Service
}

func NewBoardHandler(b *board.Service) *BoardHandler {
	return &BoardHandler{board: b}
}

type boardResp struct {
	Filter      board.Filter  `json:"filter"`
	Orders      []order.Order `json:"orders"`
	Counts      board.Counts  `json:"counts"`
	Riders      []rider.Rider `json:"riders"`
	RefreshedAt *time.Time    `json:"refreshed_at"`
}

func (h *BoardHandler) Get(c *gin.Context) {
	f, ok := board.ParseFilter(c.Query("filter"))
	if !ok {
		writeError(c, http.StatusBadRequest, "invalid filter")
		return
	}
	writeJSON(c, http.StatusOK, h.view(f))
}

// Refresh triggers a cycle. With wait=true it runs one synchronously and
// returns the new view, or 503 with the previous view kept.
func (h *BoardHandler) Refresh(c *gin.Context) {
	if c.Query("wait") != "true" {
		h.board.RefreshNow()
		writeJSON(c, http.StatusAccepted, gin.H{"status": "scheduled"})
		return
	}
	if err := h.board.Refresh(c.Request.Context()); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, h.view(board.FilterAll))
}

func (h *BoardHandler) view(f board.Filter) boardResp {
	v, ok := h.board.View(f)
	resp := boardResp{
		Filter: v.Filter,
		Orders: v.Orders,
		Counts: v.Counts,
		Riders: v.Riders,
	}
	if ok {
		resp.RefreshedAt = &v.RefreshedAt
	}
	return resp
}
