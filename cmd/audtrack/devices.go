// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the audio devices of the configured backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := newBackend(cfg.Audio.Backend)
		if err != nil {
			return err
		}
		if err := backend.Init(); err != nil {
			return fmt.Errorf("init %s: %w", cfg.Audio.Backend, err)
		}
		defer backend.Terminate()

		devs, err := backend.Devices()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tID\tIN\tOUT\tRATE\tDEFAULT")
		for _, d := range devs {
			def := ""
			switch {
			case d.DefaultInput && d.DefaultOutput:
				def = "in/out"
			case d.DefaultInput:
				def = "in"
			case d.DefaultOutput:
				def = "out"
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.0f\t%s\n",
				d.Index, d.ID, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, def)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
