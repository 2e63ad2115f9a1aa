// README: Watch loop: polls the newest order and raises one alert per new arrival.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fluentops/internal/config"
	"fluentops/internal/events"
	"fluentops/internal/logger"
	"fluentops/internal/types"
)

type Options struct {
	Notifier    Notifier
	Chime       Chime
	Refresher   Refresher
	Events      events.Publisher
	CallTimeout time.Duration
	Logger      *slog.Logger
}

type Service struct {
	latest   LatestFetcher
	notifier Notifier
	chime    Chime
	board    Refresher
	events   events.Publisher
	interval time.Duration
	sound    string
	timeout  time.Duration
	log      *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastID   types.ID
	baseline bool
}

func NewService(latest LatestFetcher, cfg config.WatchConfig, opts Options) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}
	return &Service{
		latest:   latest,
		notifier: opts.Notifier,
		chime:    opts.Chime,
		board:    opts.Refresher,
		events:   events.OrNop(opts.Events),
		interval: cfg.Interval,
		sound:    cfg.Sound,
		timeout:  opts.CallTimeout,
		log:      logger.OrDefault(opts.Logger).With(slog.String("component", "watch")),
		now:      time.Now,
	}
}

// Run ticks immediately to take the baseline, then on every interval.
// Every store, notifier and publisher call is bounded by the call timeout.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// LastSeen reports the newest order id seen so far and whether a baseline exists.
func (s *Service) LastSeen() (types.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID, s.baseline
}

// tick compares the newest order with the last one seen. An empty store is
// skipped without taking a baseline, so the first order ever seen becomes the
// baseline silently.
func (s *Service) tick(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	o, err := s.latest.Latest(cctx)
	cancel()
	if err != nil {
		s.log.Debug("watch fetch failed", slog.String("error", err.Error()))
		return
	}
	if o == nil {
		return
	}

	s.mu.Lock()
	first := !s.baseline
	changed := o.ID != s.lastID
	s.lastID, s.baseline = o.ID, true
	s.mu.Unlock()

	if first || !changed {
		return
	}

	alert := newAlert(o, s.sound, s.now())
	s.log.Info("new order", slog.String("order_id", string(o.ID)), slog.String("customer", o.CustomerName))
	if s.chime != nil {
		if err := s.call(ctx, func(c context.Context) error { return s.chime.Play(c, alert) }); err != nil {
			s.log.Warn("chime failed", slog.String("error", err.Error()))
		}
	}
	if s.notifier != nil {
		if err := s.call(ctx, func(c context.Context) error { return s.notifier.Notify(c, alert) }); err != nil {
			s.log.Warn("alert not stored", slog.String("order_id", string(o.ID)), slog.String("error", err.Error()))
		}
	}
	ev := events.New(events.OrderNew, o.ID, "")
	ev.Message = alert.Message
	if err := s.call(ctx, func(c context.Context) error { return s.events.Publish(c, ev) }); err != nil {
		s.log.Warn("event publish failed", slog.String("type", string(ev.Type)), slog.String("error", err.Error()))
	}
	if s.board != nil {
		s.board.RefreshNow()
	}
}

func (s *Service) call(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(cctx)
}
