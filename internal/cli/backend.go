// README: Store wiring for CLI commands: Postgres stores plus the optional RabbitMQ publisher.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"fluentops/internal/config"
	"fluentops/internal/events"
	"fluentops/internal/infra"
	"fluentops/internal/modules/board"
	"fluentops/internal/modules/console"
	"fluentops/internal/modules/dispatch"
	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
	"fluentops/internal/modules/sweep"
)

// OrderStore is everything the commands read and write on orders.
type OrderStore interface {
	order.Repository
	Latest(ctx context.Context) (*order.Order, error)
}

type Backend struct {
	Orders OrderStore
	Riders rider.Repository
	Events events.Publisher
	Close  func()
}

// Connector opens a backend for the loaded configuration.
type Connector func(ctx context.Context, cfg config.Config, log *slog.Logger) (*Backend, error)

// Connect opens the Postgres pool and, when an AMQP url is set, the event publisher.
func Connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*Backend, error) {
	pool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	b := &Backend{
		Orders: order.NewStore(pool),
		Riders: rider.NewStore(pool),
		Close:  pool.Close,
	}
	if cfg.AMQP.URL == "" {
		return b, nil
	}
	mq, err := infra.NewAMQP(cfg.AMQP.URL)
	if err != nil {
		log.Warn("rabbitmq unavailable, events disabled", slog.String("error", err.Error()))
		return b, nil
	}
	pub, err := events.NewAMQPPublisher(mq.Channel, cfg.AMQP.Exchange)
	if err != nil {
		mq.Close()
		log.Warn("rabbitmq exchange unavailable, events disabled", slog.String("error", err.Error()))
		return b, nil
	}
	b.Events = pub
	b.Close = func() {
		mq.Close()
		pool.Close()
	}
	return b, nil
}

// app is the per-invocation service graph.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	backend  *Backend
	orders   *order.Service
	riders   *rider.Service
	board    *board.Service
	console  *console.Console
	sweep    *sweep.Service
	dispatch *dispatch.Service
}

func newApp(cfg config.Config, log *slog.Logger, b *Backend) *app {
	timeout := cfg.Store.CallTimeout
	a := &app{
		cfg:     cfg,
		log:     log,
		backend: b,
		orders:  order.NewService(b.Orders),
		riders:  rider.NewService(b.Riders),
		board:   board.NewService(b.Orders, b.Riders, cfg.Board, timeout, log),
		sweep:   sweep.NewService(b.Orders, b.Riders, cfg.Sweep, timeout, log),
	}
	a.dispatch = dispatch.NewService(b.Orders, b.Riders, dispatch.Options{
		Policy:      cfg.Policy,
		CallTimeout: timeout,
		Events:      b.Events,
		Logger:      log,
	})
	a.console = console.New(a.dispatch, a.orders, a.board, log)
	return a
}

func (a *app) close() {
	if a.backend.Close != nil {
		a.backend.Close()
	}
}
