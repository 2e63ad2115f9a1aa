// README: Stranded-rider sweep: finds busy riders with no order en route and optionally frees them.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fluentops/internal/config"
	"fluentops/internal/logger"
	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
	"fluentops/internal/types"
)

type OrderLister interface {
	List(ctx context.Context) ([]order.Order, error)
}

type RiderStore interface {
	List(ctx context.Context, status *rider.Status) ([]rider.Rider, error)
	Patch(ctx context.Context, id types.ID, p rider.Patch) error
}

// Stranded is a busy rider that no en-route order points at.
type Stranded struct {
	Rider    rider.Rider `json:"rider"`
	Released bool        `json:"released"`
	Error    string      `json:"error,omitempty"`
}

type Report struct {
	CheckedAt time.Time  `json:"checked_at"`
	Busy      int        `json:"busy"`
	Stranded  []Stranded `json:"stranded"`
	// Settling counts busy riders without an order en route that were written
	// within the grace period; an assignment may still be committing.
	Settling int `json:"settling"`
}

type Service struct {
	orders   OrderLister
	riders   RiderStore
	interval time.Duration
	repair   bool
	grace    time.Duration
	timeout  time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewService(orders OrderLister, riders RiderStore, cfg config.SweepConfig, callTimeout time.Duration, log *slog.Logger) *Service {
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = 3 * callTimeout
	}
	return &Service{
		orders:   orders,
		riders:   riders,
		interval: cfg.Interval,
		repair:   cfg.Repair,
		grace:    grace,
		timeout:  callTimeout,
		log:      logger.OrDefault(log).With(slog.String("component", "sweep")),
		now:      time.Now,
	}
}

// Check reads both stores and, when repair is set, puts stranded riders back
// to available. The release is guarded on Busy so a rider assigned in the
// meantime is left alone. Riders written within the grace period are only
// counted: between the rider reservation and the order commit of an
// assignment the rider is busy with no order en route yet.
func (s *Service) Check(ctx context.Context, repair bool) (Report, error) {
	busy := rider.StatusBusy
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
		riders, err = s.riders.List(cctx, &busy)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	now := s.now().UTC()
	rep := Report{CheckedAt: now, Busy: len(riders), Stranded: []Stranded{}}
	cutoff := now.Add(-s.grace)
	for _, r := range FindStranded(orders, riders) {
		if r.UpdatedAt.After(cutoff) {
			rep.Settling++
			s.log.Debug("busy rider inside grace period", slog.String("rider_id", string(r.ID)))
			continue
		}
		st := Stranded{Rider: r}
		if repair {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			err := s.riders.Patch(cctx, r.ID, rider.StatusPatch(rider.StatusBusy, rider.StatusAvailable))
			cancel()
			if err != nil {
				st.Error = err.Error()
				s.log.Warn("stranded rider not released", slog.String("rider_id", string(r.ID)), slog.String("error", err.Error()))
			} else {
				st.Released = true
				s.log.Info("stranded rider released", slog.String("rider_id", string(r.ID)))
			}
		} else {
			s.log.Warn("rider busy without an order en route", slog.String("rider_id", string(r.ID)))
		}
		rep.Stranded = append(rep.Stranded, st)
	}
	return rep, nil
}

// FindStranded returns the busy riders that no en-route order references.
func FindStranded(orders []order.Order, riders []rider.Rider) []rider.Rider {
	carrying := make(map[types.ID]bool)
	for _, o := range orders {
		if o.Status == order.StatusEnRoute && o.HasRider() {
			carrying[*o.RiderID] = true
		}
	}
	var out []rider.Rider
	for _, r := range riders {
		if r.Status == rider.StatusBusy && !carrying[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// Run sweeps on the configured interval. A zero interval disables it.
func (s *Service) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Check(ctx, s.repair); err != nil {
				s.log.Warn("sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
