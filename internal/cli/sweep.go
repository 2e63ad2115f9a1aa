// README: sweep command: report busy riders with no order en route, optionally freeing them.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Find riders left busy without an order",
		Long: `List busy riders that no en-route order points at. These are left behind when
a rollback or a release could not be written. With --repair each one is set back
to available, guarded on it still being busy. Riders written within the
configured grace period are skipped because an assignment may still be committing.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.sweep.Check(cmd.Context(), repair)
			if err != nil {
				return reportFailure(out, err)
			}
			return out.Success(report, func(w io.Writer) error {
				fmt.Fprintf(w, "%d busy, %d stranded", report.Busy, len(report.Stranded))
				if report.Settling > 0 {
					fmt.Fprintf(w, ", %d too recent to judge", report.Settling)
				}
				fmt.Fprintln(w)
				for _, s := range report.Stranded {
					state := "left busy"
					switch {
					case s.Released:
						state = "released"
					case s.Error != "":
						state = "release failed: " + s.Error
					}
					fmt.Fprintf(w, "  %s  %s  %s\n", s.Rider.ID, s.Rider.Name, state)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "set stranded riders back to available")
	return cmd
}
