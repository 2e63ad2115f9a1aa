// README: watch command: runs the new-order loop in the foreground and rings the terminal bell.
package cli

import (
	"time"

	"github.com/spf13/cobra"

	"fluentops/internal/modules/watch"
)

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ring the bell for every new order",
		Long: `Poll for the newest order and print one line, with a terminal bell, each time
a new one arrives. The newest order present when the command starts, or the
first one to arrive in an empty store, is taken as the baseline and not
announced. Stops on Ctrl-C.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := a.cfg.Watch
			if interval > 0 {
				cfg.Interval = interval
			}
			svc := watch.NewService(a.backend.Orders, cfg, watch.Options{
				Chime:       watch.NewBellChime(cmd.OutOrStdout()),
				Events:      a.backend.Events,
				CallTimeout: a.cfg.Store.CallTimeout,
				Logger:      a.log,
			})
			svc.Run(cmd.Context())
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (defaults to the configured watch interval)")
	return cmd
}
