// SPDX-License-Identifier: EPL-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ik5/audtrack"
	"github.com/ik5/audtrack/engine"
	"github.com/ik5/audtrack/internal/logger"
	"github.com/ik5/audtrack/timeline"
)

var playOpts struct {
	start    float64
	duration float64
}

var playCmd = &cobra.Command{
	Use:   "play <file>...",
	Short: "Mix files together and play them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		reg := timeline.NewRegistry()
		e, err := openEngine(reg)
		if err != nil {
			return err
		}
		defer e.Close()

		g := timeline.NewGroup("play")
		if err := importInto(reg, g, e.SampleRate(), args...); err != nil {
			return err
		}

		dur := playOpts.duration
		if dur <= 0 {
			dur = groupEnd(reg, g) - playOpts.start
			if dur <= 0 {
				return fmt.Errorf("%w: start %gs is past the end", errNothingToPlay, playOpts.start)
			}
		}

		at, err := e.StartPlayback(g, playOpts.start, dur)
		if err != nil {
			return fmt.Errorf("start playback: %w", err)
		}
		logger.Info("playing", zap.Float64("at", at), zap.Int("tracks", len(args)))

		if err := waitStopped(ctx, e, engine.Playback); err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return e.StopPlayback()
	},
}

var errNothingToPlay = errors.New("nothing to play")

// groupEnd is the latest end time of g's tracks.
func groupEnd(reg *timeline.Registry, g *timeline.Group) float64 {
	var end float64
	for _, h := range g.Lanes() {
		if tr, ok := reg.Track(h); ok {
			end = max(end, tr.End())
		}
	}
	return end
}

// importInto imports every path at rate into reg and g.
func importInto(reg *timeline.Registry, g *timeline.Group, rate int, paths ...string) error {
	formats := audtrack.Formats()
	for _, path := range paths {
		tr, err := audtrack.ImportFile(path, formats, audtrack.WithRate(rate))
		if err != nil {
			return err
		}
		g.Add(reg.Add(tr))
	}
	return nil
}

func init() {
	playCmd.Flags().Float64Var(&playOpts.start, "start", 0, "start time in seconds")
	playCmd.Flags().Float64Var(&playOpts.duration, "duration", 0, "seconds to play (0 plays to the end)")
	rootCmd.AddCommand(playCmd)
}
