// README: Reconciliation loop: polls orders and riders and publishes a consistent board snapshot.
package board

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fluentops/internal/config"
	"fluentops/internal/logger"
	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
)

type OrderLister interface {
	List(ctx context.Context) ([]order.Order, error)
}

type RiderLister interface {
	List(ctx context.Context, status *rider.Status) ([]rider.Rider, error)
}

type Service struct {
	orders   OrderLister
	riders   RiderLister
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
	now      func() time.Time

	refreshMu sync.Mutex // one cycle at a time
	trigger   chan struct{}

	mu   sync.RWMutex
	snap Snapshot
	ok   bool
}

func NewService(orders OrderLister, riders RiderLister, cfg config.BoardConfig, callTimeout time.Duration, log *slog.Logger) *Service {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 15 * time.Second
	}
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	return &Service{
		orders:   orders,
		riders:   riders,
		interval: cfg.RefreshInterval,
		timeout:  callTimeout,
		log:      logger.OrDefault(log).With(slog.String("component", "board")),
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}
}

// Refresh runs one cycle. Both reads must succeed before the snapshot is
// replaced; on failure the previous snapshot stays.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	var (
		orders []order.Order
		riders []rider.Rider
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, s.timeout)
		defer cancel()
		var err error
		orders, err = s.orders.List(cctx)
		return err
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, s.timeout)
		defer cancel()
		var err error
		riders, err = s.riders.List(cctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Warn("board refresh failed, keeping previous view", slog.String("error", err.Error()))
		return err
	}

	next := Snapshot{Orders: SortOrders(orders), Riders: riders, RefreshedAt: s.now()}
	s.mu.Lock()
	s.snap, s.ok = next, true
	s.mu.Unlock()
	s.log.Debug("board refreshed", slog.Int("orders", len(orders)), slog.Int("riders", len(riders)))
	return nil
}

// RefreshNow asks the loop for a cycle without waiting. Triggers that arrive
// while one is pending collapse into it.
func (s *Service) RefreshNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes once, then on every tick and every trigger until ctx is done.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	_ = s.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		case <-s.trigger:
			_ = s.Refresh(ctx)
		}
	}
}

// Snapshot returns the last published snapshot and whether one exists yet.
func (s *Service) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.ok
}

// View renders the current snapshot with filter f. The bool is false until
// the first refresh succeeds.
func (s *Service) View(f Filter) (View, bool) {
	snap, ok := s.Snapshot()
	return snap.View(f), ok
}

// Riders returns the snapshot riders, optionally narrowed to one status.
func (s *Service) Riders(status *rider.Status) []rider.Rider {
	snap, _ := s.Snapshot()
	out := make([]rider.Rider, 0, len(snap.Riders))
	for _, r := range snap.Riders {
		if status == nil || r.Status == *status {
			out = append(out, r)
		}
	}
	return out
}
