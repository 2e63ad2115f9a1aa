// README: board and riders commands: one reconciliation pass printed as a table or JSON.
package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fluentops/internal/modules/board"
	"fluentops/internal/modules/order"
	"fluentops/internal/modules/rider"
)

func NewBoardCommand(rootOpts *RootOptions) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the order board",
		Long: `Read orders and riders once and print the board the dashboard would show:
pending orders first, newest first within each group.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(rootOpts, cmd, filter)
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "all", "order filter (all|pending|delivered|cancelled)")
	return cmd
}

func runBoard(opts *RootOptions, cmd *cobra.Command, filterName string) error {
	out := opts.formatter(cmd)
	f, ok := board.ParseFilter(filterName)
	if !ok {
		_ = out.Error("bad_request", fmt.Sprintf("unknown filter %q", filterName), "")
		return &ExitError{Code: ExitCommandError, Message: "unknown filter " + filterName, Reported: true}
	}
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.board.Refresh(cmd.Context()); err != nil {
		return reportFailure(out, err)
	}
	result, _ := a.board.View(f)
	return out.Success(result, func(w io.Writer) error {
		return writeBoard(w, result)
	})
}

func writeBoard(w io.Writer, b board.View) error {
	fmt.Fprintf(w, "all %d  pending %d  delivered %d  cancelled %d\n\n",
		b.Counts[board.FilterAll], b.Counts[board.FilterPending], b.Counts[board.FilterDelivered], b.Counts[board.FilterCancelled])

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tSTATUS\tCUSTOMER\tITEMS\tRIDER\tCREATED")
	for _, o := range b.Orders {
		riderID := "-"
		if o.HasRider() {
			riderID = string(*o.RiderID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.Status, o.CustomerName, itemSummary(o.Items), riderID, o.CreatedAt.Local().Format("15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(b.Orders) == 0 {
		fmt.Fprintln(w, "no orders")
	}
	return nil
}

func itemSummary(items []order.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.String())
	}
	return strings.Join(parts, ", ")
}

func NewRidersCommand(rootOpts *RootOptions) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:           "riders",
		Short:         "List riders and their availability",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRiders(rootOpts, cmd, status)
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "only riders in this status (available|busy|offline)")
	return cmd
}

func runRiders(opts *RootOptions, cmd *cobra.Command, status string) error {
	out := opts.formatter(cmd)
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var filter *rider.Status
	if status != "" {
		s := rider.Status(status)
		filter = &s
	}
	riders, err := a.riders.List(cmd.Context(), filter)
	if err != nil {
		return reportFailure(out, err)
	}
	return out.Success(riders, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RIDER\tNAME\tPHONE\tSTATUS")
		for _, r := range riders {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Phone, r.Status)
		}
		return tw.Flush()
	})
}
