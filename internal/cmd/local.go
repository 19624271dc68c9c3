package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jarvis/internal/audio"
	"jarvis/internal/identity"
)

func newUsersCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect the voice identity store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users := identity.Open(opts.cfg.Identity.Path, opts.log).Users()
			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "no registered users")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tREGISTERED\tENERGY")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%d\t%.0f\n", u.Name, u.RegisteredCount, u.Features.Energy)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <name>",
		Short: "Remove a registered user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := identity.Open(opts.cfg.Identity.Path, opts.log).Forget(args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("unknown user %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func newDevicesCommand(_ *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := audio.ListDevices(nil)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\tNAME\tAPI\tIN\tOUT\tRATE")
			for _, d := range devices {
				mark := ""
				switch {
				case d.DefaultInput && d.DefaultOutput:
					mark = "*"
				case d.DefaultInput:
					mark = ">"
				case d.DefaultOutput:
					mark = "<"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.0f\n", mark, d.Name, d.HostAPI, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
			}
			return w.Flush()
		},
	}
}
