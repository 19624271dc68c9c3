package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCommand(opts *globalOptions) *cobra.Command {
	var noWarmUp bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the assistant and listen for the wake word",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAssistant(ctx, opts, !noWarmUp)
		},
	}
	cmd.Flags().BoolVar(&noWarmUp, "no-warm-up", false, "Do not pre-synthesize the acknowledgement phrase")
	return cmd
}

func runAssistant(ctx context.Context, opts *globalOptions, warmUp bool) error {
	a, err := opts.newAssistant()
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			opts.log.Warn("failed to shut down cleanly", "err", err)
		}
	}()

	if warmUp {
		a.warmUp(ctx, opts.cfg.Speaker.AckPhrase)
	}

	opts.log.Info("jarvis ready", "wake_word", opts.cfg.Keyword.Keyword)
	return a.loop.Run(ctx)
}
