// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"fluentops/internal/http/handlers"
	"fluentops/internal/http/middleware"
	"fluentops/internal/logger"
	"fluentops/internal/modules/attendance"
	"fluentops/internal/modules/board"
	"fluentops/internal/modules/console"
	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
	"fluentops/internal/modules/tracking"
)

type ServerDeps struct {
	Order      *order.Service
	Rider      *rider.Service
	Board      *board.Service
	Console    *console.Console
	Alerts     handlers.AlertStore
	Tracking   *tracking.Service
	Attendance *attendance.Service
	Logger     *slog.Logger
}

type Server struct {
	deps ServerDeps
	log  *slog.Logger
}

func NewServer(deps ServerDeps) *Server {
	return &Server{deps: deps, log: logger.OrDefault(deps.Logger)}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(s.log), middleware.Logging(s.log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")

	boardHandler := handlers.NewBoardHandler(s.deps.Board)
	api.GET("/board", boardHandler.Get)
	api.POST("/board/refresh", boardHandler.Refresh)

	orderHandler := handlers.NewOrderHandler(s.deps.Order, s.deps.Console)
	api.POST("/orders", orderHandler.Create)
	api.GET("/orders/:id", orderHandler.Get)
	api.POST("/orders/:id/ready", orderHandler.MarkReady)
	api.POST("/orders/:id/assign", orderHandler.Assign)
	api.POST("/orders/:id/complete", orderHandler.Complete)
	api.POST("/orders/:id/cancel", orderHandler.Cancel)

	riderHandler := handlers.NewRiderHandler(s.deps.Rider)
	api.GET("/riders", riderHandler.List)
	api.PUT("/riders/:id/status", riderHandler.SetStatus)

	if s.deps.Alerts != nil {
		alertHandler := handlers.NewAlertHandler(s.deps.Alerts)
		api.GET("/alerts", alertHandler.List)
		api.POST("/alerts/:id/dismiss", alertHandler.Dismiss)
	}

	trackingHandler := handlers.NewTrackingHandler(s.deps.Tracking)
	api.GET("/tracking/:id", trackingHandler.Get)

	if s.deps.Attendance != nil {
		attendanceHandler := handlers.NewAttendanceHandler(s.deps.Attendance)
		api.POST("/attendance/identify", attendanceHandler.Identify)
		api.POST("/attendance", attendanceHandler.Record)
		api.GET("/attendance", attendanceHandler.Recent)
		api.GET("/attendance/report", attendanceHandler.Report)
	}
	return r
}
