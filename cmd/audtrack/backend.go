// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ik5/audtrack/device"
	"github.com/ik5/audtrack/device/oto"
	"github.com/ik5/audtrack/device/portaudio"
	"github.com/ik5/audtrack/engine"
	"github.com/ik5/audtrack/internal/config"
	"github.com/ik5/audtrack/internal/logger"
	"github.com/ik5/audtrack/timeline"
)

var newNull = device.NewNull

func newBackend(name string) (device.Backend, error) {
	switch name {
	case "portaudio":
		return portaudio.New(portaudio.WithLogger(logger.Named("portaudio"))), nil
	case "oto":
		return oto.New(oto.WithLogger(logger.Named("oto"))), nil
	case "null":
		return newNull(), nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, name)
}

// openEngine builds an engine on the configured backend.
func openEngine(reg *timeline.Registry) (*engine.Engine, error) {
	backend, err := newBackend(cfg.Audio.Backend)
	if err != nil {
		return nil, err
	}
	ecfg, err := cfg.Audio.Engine()
	if err != nil {
		return nil, err
	}
	if cfg.Audio.Backend == "null" {
		logger.Warn("null backend selected, streams only advance when pumped")
	}
	return engine.New(backend, reg, ecfg, engine.WithLogger(logger.Named("engine")))
}

// waitStopped runs the engine until dir is stopped or ctx is done.
func waitStopped(ctx context.Context, e *engine.Engine, dir engine.Direction) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- e.Run(ctx) }()

	// Events may be dropped, so poll the state as well.
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			<-errc
			return ctx.Err()
		case ev, ok := <-e.Events():
			if !ok {
				return nil
			}
			switch ev.Kind {
			case engine.Failure:
				logger.Error("engine failure", zap.String("message", ev.Message))
			case engine.Underrun:
				logger.Debug("underrun", zap.Int("count", ev.Count))
			}
		case <-poll.C:
		}
		if stateOf(e, dir) == engine.Stopped {
			cancel()
			<-errc
			return nil
		}
	}
}

func stateOf(e *engine.Engine, dir engine.Direction) engine.State {
	play, rec := e.State()
	if dir == engine.Recording {
		return rec
	}
	return play
}
