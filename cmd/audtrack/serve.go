// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ik5/audtrack/engine"
	"github.com/ik5/audtrack/internal/config"
	"github.com/ik5/audtrack/internal/control"
	"github.com/ik5/audtrack/internal/logger"
	"github.com/ik5/audtrack/timeline"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [file]...",
	Short: "Run the engine behind the HTTP control surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		reg := timeline.NewRegistry()
		e, err := openEngine(reg)
		if err != nil {
			return err
		}
		defer e.Close()

		g := timeline.NewGroup("main")
		if err := importInto(reg, g, e.SampleRate(), args...); err != nil {
			return err
		}

		srv := control.New(e, reg,
			control.WithLogger(logger.Named("control")),
			control.WithOrigins(cfg.Control.Origins...),
		)
		srv.AddGroup(g)

		addr := cfg.Control.Listen
		if serveAddr != "" {
			addr = serveAddr
		}

		ctx, stop := context.WithCancel(ctx)
		defer stop()

		var (
			wg    sync.WaitGroup
			errMu sync.Mutex
			first error
		)
		run := func(fn func() error) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
					errMu.Lock()
					if first == nil {
						first = err
					}
					errMu.Unlock()
				}
				stop()
			}()
		}
		run(func() error { return e.Run(ctx) })
		run(func() error { return srv.Run(ctx) })
		run(func() error { return srv.ListenAndServe(ctx, addr) })
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := config.Watch(ctx, cfgPath, func(c *config.Config) { apply(e, c) })
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("config watch stopped", zap.Error(err))
			}
		}()
		wg.Wait()

		saveDevices(e)
		return first
	},
}

// apply pushes the live-tunable parts of a reloaded config into e.
func apply(e *engine.Engine, c *config.Config) {
	if m, err := engine.ParseStartMode(c.Audio.StartMode); err == nil {
		e.SetStartMode(m)
	}
	if m, err := engine.ParseStopMode(c.Audio.StopMode); err == nil {
		e.SetStopMode(m)
	}
	if out, _ := e.OutputDevice(); out != c.Audio.OutputDevice {
		if err := e.SetOutputDevice(c.Audio.OutputDevice); err != nil {
			logger.Warn("apply output device", zap.String("device", c.Audio.OutputDevice), zap.Error(err))
		}
	}
	if in, _ := e.InputDevice(); in != c.Audio.InputDevice {
		if err := e.SetInputDevice(c.Audio.InputDevice); err != nil {
			logger.Warn("apply input device", zap.String("device", c.Audio.InputDevice), zap.Error(err))
		}
	}
	cfg = c
}

// saveDevices persists device selections made through the control surface.
func saveDevices(e *engine.Engine) {
	out, _ := e.OutputDevice()
	in, _ := e.InputDevice()
	if out == cfg.Audio.OutputDevice && in == cfg.Audio.InputDevice {
		return
	}
	cfg.Audio.OutputDevice, cfg.Audio.InputDevice = out, in
	if err := cfg.Save(cfgPath); err != nil {
		logger.Warn("save config", zap.String("path", cfgPath), zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides control.listen)")
	rootCmd.AddCommand(serveCmd)
}
