// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ik5/audtrack"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>...",
	Short: "Print the format of audio files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := audtrack.Formats()
		for _, path := range args {
			dec, format, err := reg.ForPath(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			src, err := dec.Decode(f)
			if err != nil {
				f.Close()
				return fmt.Errorf("%s: %w", path, err)
			}

			length := "unknown"
			if n := audtrack.Frames(src); n >= 0 {
				d := time.Duration(float64(n) / float64(src.SampleRate()) * float64(time.Second))
				length = fmt.Sprintf("%d frames (%s)", n, d.Round(time.Millisecond))
			}
			depth := ""
			if b, ok := src.(interface{ BitDepth() int }); ok {
				depth = fmt.Sprintf(", %d-bit", b.BitDepth())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d Hz, %d ch%s, %s\n",
				path, format, src.SampleRate(), src.Channels(), depth, length)
			src.Close()
			f.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
