// SPDX-License-Identifier: EPL-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ik5/audtrack"
	"github.com/ik5/audtrack/audio"
	"github.com/ik5/audtrack/engine"
	"github.com/ik5/audtrack/formats/wav"
	"github.com/ik5/audtrack/internal/logger"
	"github.com/ik5/audtrack/timeline"
)

var recordOpts struct {
	seconds float64
	mono    bool
	bits    int
}

var recordCmd = &cobra.Command{
	Use:   "record <out.wav>",
	Short: "Record from the input device into a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		reg := timeline.NewRegistry()
		e, err := openEngine(reg)
		if err != nil {
			return err
		}
		defer e.Close()

		g := timeline.NewGroup("record")
		at, err := e.StartRecording(g, 0, recordOpts.seconds)
		if err != nil {
			return fmt.Errorf("start recording: %w", err)
		}
		logger.Info("recording", zap.Float64("at", at), zap.Float64("seconds", recordOpts.seconds))

		if err := waitStopped(ctx, e, engine.Recording); err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		if err := e.StopRecording(); err != nil {
			return err
		}

		tr, err := recorded(reg, g)
		if err != nil {
			return err
		}
		channels := 0
		if recordOpts.mono {
			channels = 1
		}
		return writeTrack(args[0], tr, tr.Start(), tr.Duration(), e.SampleRate(), channels, recordOpts.bits)
	},
}

// recorded returns the track the engine recorded into for g.
func recorded(reg *timeline.Registry, g *timeline.Group) (*timeline.Track, error) {
	left, _ := g.RecordSlots()
	tr, ok := reg.Track(left)
	if !ok {
		return nil, engine.ErrNoTarget
	}
	if tr.Duration() == 0 {
		return nil, audtrack.ErrEmptySource
	}
	return tr, nil
}

// writeTrack exports [t0, t0+dur) of tr to path, remixed to channels when
// channels is set.
func writeTrack(path string, tr *timeline.Track, t0, dur float64, rate, channels, bits int) error {
	src, err := audtrack.NewTrackSource(tr, t0, dur, rate)
	if err != nil {
		return err
	}
	var out audio.Source = src
	if channels > 0 && channels != tr.Channels() {
		out = audio.NewChannelMixer(src, channels)
	}
	defer out.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	frames, err := wav.Encode(f, out, bits)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.Info("wrote", zap.String("path", path), zap.Int("frames", frames), zap.String("track", tr.Name()))
	return nil
}

func init() {
	recordCmd.Flags().Float64Var(&recordOpts.seconds, "seconds", 0, "seconds to record (0 records until interrupted)")
	recordCmd.Flags().BoolVar(&recordOpts.mono, "mono", false, "write a single downmixed channel")
	recordCmd.Flags().IntVar(&recordOpts.bits, "bits", 16, "output bit depth")
	rootCmd.AddCommand(recordCmd)
}
