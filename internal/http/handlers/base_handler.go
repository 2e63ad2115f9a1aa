// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fluentops/internal/modules/attendance"
	"fluentops/internal/modules/console"
	"fluentops/internal/modules/dispatch"
	"fluentops/internal/modules/watch"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts the ids the stores hand out (uuids and short slugs).
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps the dispatch taxonomy onto HTTP. Operator actions
// carry a ready-made message; everything else reports the error text, except
// store failures which stay generic.
func writeServiceError(c *gin.Context, err error) {
	status := statusFor(err)
	var f *console.Failure
	switch {
	case errors.As(err, &f):
		writeError(c, status, f.Message)
	case status == http.StatusServiceUnavailable:
		writeError(c, status, dispatch.OperatorMessage(dispatch.ErrTransport))
	default:
		writeError(c, status, err.Error())
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrRolledBack):
		return http.StatusConflict
	case errors.Is(err, watch.ErrAlertNotFound), errors.Is(err, attendance.ErrUnknownPIN):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrInvalidAction):
		return http.StatusConflict
	}
	switch dispatch.Classify(err) {
	case dispatch.ErrBadRequest:
		return http.StatusBadRequest
	case dispatch.ErrNotFound:
		return http.StatusNotFound
	case dispatch.ErrInvalidTransition, dispatch.ErrPreconditionFailed:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func pathID(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return "", false
	}
	return id, true
}
