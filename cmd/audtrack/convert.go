// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ik5/audtrack"
	"github.com/ik5/audtrack/audio"
	"github.com/ik5/audtrack/formats/wav"
	"github.com/ik5/audtrack/internal/logger"
)

var convertOpts struct {
	rate     int
	channels int
	bits     int
}

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out.wav>",
	Short: "Decode any supported file and write it as WAV",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, out := args[0], args[1]
		dec, _, err := audtrack.Formats().ForPath(in)
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		f, err := os.Open(in)
		if err != nil {
			return err
		}
		defer f.Close()

		var src audio.Source
		src, err = dec.Decode(f)
		if err != nil {
			return fmt.Errorf("decode %s: %w", in, err)
		}
		if r := convertOpts.rate; r > 0 && r != src.SampleRate() {
			src = audio.NewResampler(src, r)
		}
		if c := convertOpts.channels; c > 0 && c != src.Channels() {
			src = audio.NewChannelMixer(src, c)
		}
		defer src.Close()

		w, err := os.Create(out)
		if err != nil {
			return err
		}
		frames, err := wav.Encode(w, src, convertOpts.bits)
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		logger.Info("converted",
			zap.String("in", in),
			zap.String("out", out),
			zap.Int("frames", frames),
			zap.Int("rate", src.SampleRate()),
			zap.Int("channels", src.Channels()),
		)
		return nil
	},
}

func init() {
	convertCmd.Flags().IntVar(&convertOpts.rate, "rate", 0, "output sample rate (0 keeps the input rate)")
	convertCmd.Flags().IntVar(&convertOpts.channels, "channels", 0, "output channels (0 keeps the input layout)")
	convertCmd.Flags().IntVar(&convertOpts.bits, "bits", 16, "output bit depth (8, 16, 24 or 32)")
	rootCmd.AddCommand(convertCmd)
}
