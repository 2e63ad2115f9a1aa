// README: Entry point; loads config, wires stores and services, runs the HTTP API and background loops.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fluentops/internal/config"
	"fluentops/internal/events"
	httptransport "fluentops/internal/http"
	"fluentops/internal/infra"
	"fluentops/internal/logger"
	"fluentops/internal/maps"
	"fluentops/internal/modules/attendance"
	"fluentops/internal/modules/board"
	"fluentops/internal/modules/console"
	"fluentops/internal/modules/dispatch"
	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
	"fluentops/internal/modules/sweep"
	"fluentops/internal/modules/tracking"
	"fluentops/internal/modules/watch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("fluentops-api", cfg.Log.Level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Error("connect postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQP.URL != "" {
		mq, err := infra.NewAMQP(cfg.AMQP.URL)
		if err != nil {
			log.Error("connect rabbitmq", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer mq.Close()
		pub, err := events.NewAMQPPublisher(mq.Channel, cfg.AMQP.Exchange)
		if err != nil {
			log.Error("declare exchange", slog.String("error", err.Error()))
			os.Exit(1)
		}
		publisher = pub
	}

	var estimator tracking.Estimator
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey, cfg.Maps.Language, cfg.Maps.Region)
		if err != nil {
			log.Warn("maps disabled", slog.String("error", err.Error()))
		} else {
			estimator = routes
		}
	}

	timeout := cfg.Store.CallTimeout

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore)

	riderStore := rider.NewStore(dbPool)
	riderSvc := rider.NewService(riderStore)

	boardSvc := board.NewService(orderStore, riderStore, cfg.Board, timeout, log)

	dispatchSvc := dispatch.NewService(orderStore, riderStore, dispatch.Options{
		Policy:      cfg.Policy,
		CallTimeout: timeout,
		Events:      publisher,
		Logger:      log,
	})
	consoleSvc := console.New(dispatchSvc, orderSvc, boardSvc, log)

	alerts := watch.NewRedisAlerts(redisClient, cfg.Redis.KeyPrefix)
	watchSvc := watch.NewService(orderStore, cfg.Watch, watch.Options{
		Notifier:    alerts,
		Chime:       alerts,
		Refresher:   boardSvc,
		Events:      publisher,
		CallTimeout: timeout,
		Logger:      log,
	})

	sweepSvc := sweep.NewService(orderStore, riderStore, cfg.Sweep, timeout, log)

	trackingSvc := tracking.NewService(orderStore, riderStore, tracking.Options{
		BaseURL:     cfg.Tracking.BaseURL,
		Origin:      cfg.Restaurant.Address,
		Estimator:   estimator,
		CallTimeout: timeout,
		Logger:      log,
	})

	attendanceSvc := attendance.NewService(attendance.NewStore(dbPool), riderStore, attendance.Options{
		Shift: attendance.Shift{
			StartHour: cfg.Attendance.ShiftStartHour,
			Tolerance: time.Duration(cfg.Attendance.ToleranceMinutes) * time.Minute,
			Location:  cfg.Location(),
		},
		RecentLimit: cfg.Attendance.RecentLimit,
		Logger:      log,
	})

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Order:      orderSvc,
		Rider:      riderSvc,
		Board:      boardSvc,
		Console:    consoleSvc,
		Alerts:     alerts,
		Tracking:   trackingSvc,
		Attendance: attendanceSvc,
		Logger:     log,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var loops sync.WaitGroup
	for _, run := range []func(context.Context){boardSvc.Run, watchSvc.Run, sweepSvc.Run} {
		loops.Add(1)
		go func() {
			defer loops.Done()
			run(ctx)
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", slog.String("error", err.Error()))
		}
	}()

	log.Info("listening", slog.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server", slog.String("error", err.Error()))
		stop()
		loops.Wait()
		os.Exit(1)
	}
	loops.Wait()
	log.Info("stopped")
}
