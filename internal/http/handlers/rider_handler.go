// README: Rider handlers: list and operator status override.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fluentops/internal/modules/rider"
	"fluentops/internal/types"
)

type RiderHandler struct {
	rider *rider.Service
}

func NewRiderHandler(svc *rider.Service) *RiderHandler {
	return &RiderHandler{rider: svc}
}

func (h *RiderHandler) List(c *gin.Context) {
	var status *rider.Status
	if q := c.Query("status"); q != "" {
		s := rider.Status(q)
		status = &s
	}
	riders, err := h.rider.List(c.Request.Context(), status)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if riders == nil {
		riders = []rider.Rider{}
	}
	writeJSON(c, http.StatusOK, riders)
}

type setStatusReq struct {
	Status string `json:"status"`
}

func (h *RiderHandler) SetStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req setStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.rider.SetStatus(c.Request.Context(), rider.SetStatusCommand{
		RiderID: types.ID(id),
		Status:  rider.Status(req.Status),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rider_id": id, "status": req.Status})
}
