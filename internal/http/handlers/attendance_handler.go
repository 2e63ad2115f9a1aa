// README: Attendance handlers for the kiosk and the report.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fluentops/internal/modules/attendance"
	"fluentops/internal/types"
)

type AttendanceHandler struct {
	attendance *attendance.Service
}

func NewAttendanceHandler(svc *attendance.Service) *AttendanceHandler {
	return &AttendanceHandler{attendance: svc}
}

type identifyReq struct {
	PIN string `json:"pin"`
}

func (h *AttendanceHandler) Identify(c *gin.Context) {
	var req identifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.attendance.Identify(c.Request.Context(), req.PIN)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, id)
}

type recordReq struct {
	PersonID   string `json:"person_id"`
	PersonType string `json:"person_type"`
	Kind       string `json:"kind"`
}

func (h *AttendanceHandler) Record(c *gin.Context) {
	var req recordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidID(req.PersonID) {
		writeError(c, http.StatusBadRequest, "invalid person_id")
		return
	}
	e, err := h.attendance.Record(c.Request.Context(), attendance.RecordCommand{
		PersonID:   types.ID(req.PersonID),
		PersonType: attendance.PersonType(req.PersonType),
		Kind:       attendance.Kind(req.Kind),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, e)
}

func (h *AttendanceHandler) Recent(c *gin.Context) {
	entries, err := h.attendance.Recent(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if entries == nil {
		entries = []attendance.Entry{}
	}
	writeJSON(c, http.StatusOK, entries)
}

func (h *AttendanceHandler) Report(c *gin.Context) {
	r, ok := attendance.ParseRange(c.Query("range"))
	if !ok {
		writeError(c, http.StatusBadRequest, "invalid range")
		return
	}
	rows, err := h.attendance.Report(c.Request.Context(), r)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"range": r, "rows": rows})
}
