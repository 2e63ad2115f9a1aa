// README: Operator command surface for order cards: runs a coordinator, then refreshes the board.
package console

import (
	"context"
	"fmt"
	"log/slog"

	"fluentops/internal/logger"
	"fluentops/internal/modules/dispatch"
	"fluentops/internal/modules/order"
	"fluentops/internal/types"
)

type Coordinator interface {
	Assign(ctx context.Context, cmd dispatch.AssignCommand) error
	Complete(ctx context.Context, cmd dispatch.CompleteCommand) error
	Cancel(ctx context.Context, cmd dispatch.CancelCommand) error
}

type ReadyMarker interface {
	MarkReady(ctx context.Context, cmd order.MarkReadyCommand) error
}

type Refresher interface {
	RefreshNow()
}

// Failure is what an operator action returns when it did not go through.
// Message is safe to show as is.
type Failure struct {
	Action  string
	OrderID types.ID
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Action, f.OrderID, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

type Console struct {
	dispatch Coordinator
	kitchen  ReadyMarker
	board    Refresher
	log      *slog.Logger
}

func New(d Coordinator, kitchen ReadyMarker, board Refresher, log *slog.Logger) *Console {
	return &Console{
		dispatch: d,
		kitchen:  kitchen,
		board:    board,
		log:      logger.OrDefault(log).With(slog.String("component", "console")),
	}
}

func (c *Console) Assign(ctx context.Context, orderID, riderID types.ID) error {
	return c.run(ctx, "assign", orderID, func(ctx context.Context) error {
		return c.dispatch.Assign(ctx, dispatch.AssignCommand{OrderID: orderID, RiderID: riderID})
	})
}

// Complete delivers the order. An empty riderID means the rider on the order.
func (c *Console) Complete(ctx context.Context, orderID, riderID types.ID) error {
	return c.run(ctx, "complete", orderID, func(ctx context.Context) error {
		return c.dispatch.Complete(ctx, dispatch.CompleteCommand{OrderID: orderID, RiderID: riderID})
	})
}

func (c *Console) Cancel(ctx context.Context, orderID types.ID) error {
	return c.run(ctx, "cancel", orderID, func(ctx context.Context) error {
		return c.dispatch.Cancel(ctx, dispatch.CancelCommand{OrderID: orderID})
	})
}

func (c *Console) MarkReady(ctx context.Context, orderID types.ID) error {
	return c.run(ctx, "ready", orderID, func(ctx context.Context) error {
		if orderID == "" {
			return dispatch.ErrBadRequest
		}
		if err := c.kitchen.MarkReady(ctx, order.MarkReadyCommand{OrderID: orderID}); err != nil {
			return fmt.Errorf("%w: %w", dispatch.Classify(err), err)
		}
		return nil
	})
}

func (c *Console) run(ctx context.Context, action string, orderID types.ID, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		c.log.Warn("operator action failed",
			slog.String("action", action),
			slog.String("order_id", string(orderID)),
			slog.String("error", err.Error()),
		)
		return &Failure{Action: action, OrderID: orderID, Message: dispatch.OperatorMessage(err), Err: err}
	}
	if c.board != nil {
		c.board.RefreshNow()
	}
	return nil
}
