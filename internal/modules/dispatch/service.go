// README: Dispatch coordinators: assign a rider (reserve, commit, compensate), complete and cancel orders.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fluentops/internal/config"
	"fluentops/internal/events"
	"fluentops/internal/logger"
	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
	"fluentops/internal/types"
)

type OrderStore interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	Patch(ctx context.Context, id types.ID, p order.Patch) error
}

type RiderStore interface {
	Get(ctx context.Context, id types.ID) (*rider.Rider, error)
	Patch(ctx context.Context, id types.ID, p rider.Patch) error
}

type Options struct {
	Policy      config.PolicyConfig
	CallTimeout time.Duration
	Events      events.Publisher
	Logger      *slog.Logger
}

type Service struct {
	orders  OrderStore
	riders  RiderStore
	events  events.Publisher
	policy  config.PolicyConfig
	timeout time.Duration
	log     *slog.Logger
}

func NewService(orders OrderStore, riders RiderStore, opts Options) *Service {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}
	return &Service{
		orders:  orders,
		riders:  riders,
		events:  events.OrNop(opts.Events),
		policy:  opts.Policy,
		timeout: opts.CallTimeout,
		log:     logger.OrDefault(opts.Logger).With(slog.String("component", "dispatch")),
	}
}

type AssignCommand struct {
	OrderID types.ID
	RiderID types.ID
}

type CompleteCommand struct {
	OrderID types.ID
	// RiderID defaults to the rider attached to the order.
	RiderID types.ID
}

type CancelCommand struct {
	OrderID types.ID
}

// Assign reserves the rider, then commits the order. The rider write always
// finishes before the order write starts; a failed order write undoes the
// reservation.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) error {
	if cmd.OrderID == "" || cmd.RiderID == "" {
		return ErrBadRequest
	}
	o, err := s.getOrder(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !order.CanTransition(o.Status, order.StatusEnRoute) {
		return fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, o.ID, o.Status)
	}
	r, err := s.getRider(ctx, cmd.RiderID)
	if err != nil {
		return err
	}
	if r.Status != rider.StatusAvailable {
		return fmt.Errorf("%w: rider %s is %s", ErrRiderUnavailable, r.ID, r.Status)
	}

	if err := s.patchRider(ctx, r.ID, rider.StatusPatch(rider.StatusAvailable, rider.StatusBusy)); err != nil {
		if Classify(err) == ErrTransport {
			return wrap("reserve rider "+string(r.ID), err)
		}
		return fmt.Errorf("%w: reserve rider %s: %w", ErrRiderUnavailable, r.ID, err)
	}

	enRoute := order.StatusEnRoute
	riderID := r.ID
	err = s.patchOrder(ctx, o.ID, order.Patch{Status: &enRoute, RiderID: &riderID, IfStatus: &o.Status})
	if err != nil {
		s.compensate(ctx, o.ID, r.ID, err)
		return fmt.Errorf("%w: %w", ErrRolledBack, wrap("commit order "+string(o.ID), err))
	}

	s.log.Info("rider assigned", slog.String("order_id", string(o.ID)), slog.String("rider_id", string(r.ID)))
	s.publish(ctx, events.New(events.OrderAssigned, o.ID, r.ID))
	return nil
}

// Complete marks the order delivered and releases its rider. The result reflects
// the order write only.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	if cmd.OrderID == "" {
		return ErrBadRequest
	}
	o, err := s.getOrder(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !order.CanTransition(o.Status, order.StatusDelivered) {
		return fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, o.ID, o.Status)
	}
	riderID := cmd.RiderID
	if riderID == "" && o.HasRider() {
		riderID = *o.RiderID
	}

	delivered := order.StatusDelivered
	orderErr := s.patchOrder(ctx, o.ID, order.Patch{Status: &delivered, IfStatus: &o.Status})

	if riderID != "" && (orderErr == nil || s.policy.ReleaseOnFailedCompletion) {
		s.release(ctx, o.ID, riderID)
	}
	if orderErr != nil {
		return wrap("complete order "+string(o.ID), orderErr)
	}

	s.log.Info("order delivered", slog.String("order_id", string(o.ID)), slog.String("rider_id", string(riderID)))
	s.publish(ctx, events.New(events.OrderDelivered, o.ID, riderID))
	return nil
}

// Cancel marks the order cancelled. The rider stays as it is unless the
// release-on-cancel policy is on.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	if cmd.OrderID == "" {
		return ErrBadRequest
	}
	o, err := s.getOrder(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.Status == order.StatusCancelled && !s.policy.StrictTerminalCancel {
		return nil
	}
	if !order.CanTransition(o.Status, order.StatusCancelled) {
		return fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, o.ID, o.Status)
	}

	cancelled := order.StatusCancelled
	if err := s.patchOrder(ctx, o.ID, order.Patch{Status: &cancelled, IfStatus: &o.Status}); err != nil {
		return wrap("cancel order "+string(o.ID), err)
	}

	var riderID types.ID
	if o.HasRider() {
		riderID = *o.RiderID
	}
	if s.policy.ReleaseRiderOnCancel && o.Status == order.StatusEnRoute && riderID != "" {
		s.release(ctx, o.ID, riderID)
	}
	s.log.Info("order cancelled", slog.String("order_id", string(o.ID)), slog.String("from", string(o.Status)))
	s.publish(ctx, events.New(events.OrderCancelled, o.ID, riderID))
	return nil
}

// compensate puts a reserved rider back to available. Best effort, no retry; it
// runs even when the caller's context is already done.
func (s *Service) compensate(ctx context.Context, orderID, riderID types.ID, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	err := s.riders.Patch(cctx, riderID, rider.StatusPatch(rider.StatusBusy, rider.StatusAvailable))
	if err != nil {
		s.log.Error("assignment compensation failed, rider left busy without an order",
			slog.String("order_id", string(orderID)),
			slog.String("rider_id", string(riderID)),
			slog.String("cause", cause.Error()),
			slog.String("error", err.Error()),
		)
		return
	}
	s.log.Warn("assignment rolled back",
		slog.String("order_id", string(orderID)),
		slog.String("rider_id", string(riderID)),
		slog.String("cause", cause.Error()),
	)
}

// release frees a busy rider. The outcome is logged, never returned.
func (s *Service) release(ctx context.Context, orderID, riderID types.ID) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	err := s.riders.Patch(cctx, riderID, rider.StatusPatch(rider.StatusBusy, rider.StatusAvailable))
	if err != nil {
		s.log.Warn("rider release failed",
			slog.String("order_id", string(orderID)),
			slog.String("rider_id", string(riderID)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.publish(ctx, events.New(events.RiderReleased, orderID, riderID))
}

func (s *Service) getOrder(ctx context.Context, id types.ID) (*order.Order, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	o, err := s.orders.Get(cctx, id)
	if err != nil {
		return nil, wrap("load order "+string(id), err)
	}
	return o, nil
}

func (s *Service) getRider(ctx context.Context, id types.ID) (*rider.Rider, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	r, err := s.riders.Get(cctx, id)
	if err != nil {
		return nil, wrap("load rider "+string(id), err)
	}
	return r, nil
}

func (s *Service) patchOrder(ctx context.Context, id types.ID, p order.Patch) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.orders.Patch(cctx, id, p)
}

func (s *Service) patchRider(ctx context.Context, id types.ID, p rider.Patch) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.riders.Patch(cctx, id, p)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.events.Publish(cctx, e); err != nil {
		s.log.Warn("event publish failed", slog.String("type", string(e.Type)), slog.String("error", err.Error()))
	}
}
