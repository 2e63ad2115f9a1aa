// README: Alert handlers for persistent new-order notifications.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fluentops/internal/modules/watch"
)

type AlertStore interface {
	List(ctx context.Context) ([]watch.Alert, error)
	Dismiss(ctx context.Context, id string) error
}

type AlertHandler struct {
	alerts AlertStore
}

func NewAlertHandler(store AlertStore) *AlertHandler {
	return &AlertHandler{alerts: store}
}

func (h *AlertHandler) List(c *gin.Context) {
	alerts, err := h.alerts.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, alerts)
}

func (h *AlertHandler) Dismiss(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.alerts.Dismiss(c.Request.Context(), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
