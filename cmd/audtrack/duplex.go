// SPDX-License-Identifier: EPL-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ik5/audtrack/engine"
	"github.com/ik5/audtrack/internal/logger"
	"github.com/ik5/audtrack/timeline"
)

var duplexBits int

var duplexCmd = &cobra.Command{
	Use:   "duplex <file> <out.wav>",
	Short: "Play a file and record the input aligned to it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		reg := timeline.NewRegistry()
		e, err := openEngine(reg)
		if err != nil {
			return err
		}
		defer e.Close()

		g := timeline.NewGroup("duplex")
		if err := importInto(reg, g, e.SampleRate(), args[0]); err != nil {
			return err
		}
		end := groupEnd(reg, g)

		playAt, err := e.StartPlayback(g, 0, end)
		if err != nil {
			return fmt.Errorf("start playback: %w", err)
		}
		recAt, err := e.StartRecording(g, 0, 0)
		if err != nil {
			return errors.Join(fmt.Errorf("start recording: %w", err), e.StopPlayback())
		}
		logger.Info("duplex", zap.Float64("playback", playAt), zap.Float64("recording", recAt))

		if err := waitStopped(ctx, e, engine.Playback); err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		if err := errors.Join(e.StopPlayback(), e.StopRecording()); err != nil {
			return err
		}

		tr, err := recorded(reg, g)
		if err != nil {
			return err
		}
		return writeTrack(args[1], tr, 0, end, e.SampleRate(), 0, duplexBits)
	},
}

func init() {
	duplexCmd.Flags().IntVar(&duplexBits, "bits", 16, "output bit depth")
	rootCmd.AddCommand(duplexCmd)
}
