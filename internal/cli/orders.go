// README: Order card actions from the terminal: ready, assign, complete and cancel.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fluentops/internal/types"
)

type actionOutput struct {
	Action  string   `json:"action"`
	OrderID types.ID `json:"order_id"`
	RiderID types.ID `json:"rider_id,omitempty"`
}

func NewReadyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ready <order-id>",
		Short:         "Mark a kitchen order ready for pickup",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID := types.ID(args[0])
			return runAction(rootOpts, cmd, actionOutput{Action: "ready", OrderID: orderID}, func(ctx context.Context, a *app) error {
				return a.console.MarkReady(ctx, orderID)
			})
		},
	}
}

func NewAssignCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <order-id> <rider-id>",
		Short: "Assign an available rider and send the order on its way",
		Long: `Reserve the rider, then move the order to en route. If the order cannot be
updated the rider is released again and nothing changes.`,
		Args:          cobra.ExactArgs(2),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, riderID := types.ID(args[0]), types.ID(args[1])
			return runAction(rootOpts, cmd, actionOutput{Action: "assign", OrderID: orderID, RiderID: riderID}, func(ctx context.Context, a *app) error {
				return a.console.Assign(ctx, orderID, riderID)
			})
		},
	}
}

func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "complete <order-id> [rider-id]",
		Short:         "Mark an en-route order delivered and free its rider",
		Args:          cobra.RangeArgs(1, 2),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID := types.ID(args[0])
			var riderID types.ID
			if len(args) == 2 {
				riderID = types.ID(args[1])
			}
			return runAction(rootOpts, cmd, actionOutput{Action: "complete", OrderID: orderID, RiderID: riderID}, func(ctx context.Context, a *app) error {
				return a.console.Complete(ctx, orderID, riderID)
			})
		},
	}
}

func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "cancel <order-id>",
		Short:         "Cancel a pending order",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID := types.ID(args[0])
			return runAction(rootOpts, cmd, actionOutput{Action: "cancel", OrderID: orderID}, func(ctx context.Context, a *app) error {
				return a.console.Cancel(ctx, orderID)
			})
		},
	}
}

func runAction(opts *RootOptions, cmd *cobra.Command, result actionOutput, do func(context.Context, *app) error) error {
	out := opts.formatter(cmd)
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if err := do(cmd.Context(), a); err != nil {
		return reportFailure(out, err)
	}
	return out.Success(result, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, describe(result))
		return err
	})
}

func describe(r actionOutput) string {
	switch r.Action {
	case "ready":
		return fmt.Sprintf("order %s is ready for pickup", r.OrderID)
	case "assign":
		return fmt.Sprintf("order %s is en route with rider %s", r.OrderID, r.RiderID)
	case "complete":
		return fmt.Sprintf("order %s delivered", r.OrderID)
	default:
		return fmt.Sprintf("order %s cancelled", r.OrderID)
	}
}
