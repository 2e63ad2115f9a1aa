// README: fluentopsctl root command: global flags and subcommand registration.
package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"fluentops/internal/config"
	"fluentops/internal/logger"
	"fluentops/internal/modules/console"
	"fluentops/internal/modules/dispatch"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	connect Connector
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command wired to the real stores.
func NewRootCommand() *cobra.Command {
	return newRootCommand(Connect)
}

func newRootCommand(connect Connector) *cobra.Command {
	opts := &RootOptions{connect: connect}

	cmd := &cobra.Command{
		Use:   "fluentopsctl",
		Short: "Operate the order board from a terminal",
		Long:  "Inspect the order board, assign riders, complete or cancel orders and watch for new ones.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file (defaults to $FLUENTOPS_CONFIG)")

	cmd.AddCommand(NewBoardCommand(opts))
	cmd.AddCommand(NewRidersCommand(opts))
	cmd.AddCommand(NewReadyCommand(opts))
	cmd.AddCommand(NewAssignCommand(opts))
	cmd.AddCommand(NewCompleteCommand(opts))
	cmd.AddCommand(NewCancelCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// open loads the config and connects. Logs go to stderr so json output stays clean.
func (o *RootOptions) open(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), "fluentopsctl", level)
	b, err := o.connect(cmd.Context(), cfg, log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "connect", err)
	}
	return newApp(cfg, log, b), nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

// reportFailure prints an operator failure and returns the matching exit error.
func reportFailure(f *OutputFormatter, err error) error {
	msg := dispatch.OperatorMessage(err)
	var failure *console.Failure
	if errors.As(err, &failure) {
		msg = failure.Message
	}
	_ = f.Error(errorCode(err), msg, err.Error())
	return &ExitError{Code: ExitFailure, Message: msg, Err: err, Reported: true}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, dispatch.ErrRolledBack):
		return "rolled_back"
	case errors.Is(err, dispatch.ErrRiderUnavailable):
		return "rider_unavailable"
	}
	switch dispatch.Classify(err) {
	case dispatch.ErrBadRequest:
		return "bad_request"
	case dispatch.ErrNotFound:
		return "not_found"
	case dispatch.ErrInvalidTransition:
		return "invalid_transition"
	case dispatch.ErrPreconditionFailed:
		return "precondition_failed"
	default:
		return "transport"
	}
}
