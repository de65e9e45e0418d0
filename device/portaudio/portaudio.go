// SPDX-License-Identifier: EPL-2.0

// Package portaudio implements device.Backend on PortAudio, for both
// playback and capture.
package portaudio

import (
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/ik5/audtrack/device"
	"github.com/ik5/audtrack/internal/logger"
)

type Backend struct {
	mu          sync.Mutex
	initialized bool
	lowLatency  bool
	log         *zap.Logger
}

type Option func(*Backend)

// WithHighLatency opens streams with the devices' high latency defaults.
func WithHighLatency() Option {
	return func(b *Backend) { b.lowLatency = false }
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) { b.log = l }
}

func New(opts ...Option) *Backend {
	b := &Backend{lowLatency: true}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.Named("portaudio")
	}
	return b
}

func (b *Backend) Name() string { return "portaudio" }

func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	if err := pa.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	b.initialized = true
	b.log.Debug("initialized", zap.String("version", pa.VersionText()))
	return nil
}

func (b *Backend) Terminate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil
	}
	b.initialized = false
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("portaudio terminate: %w", err)
	}
	return nil
}

func (b *Backend) Devices() ([]device.Info, error) {
	devs, err := b.devices()
	if err != nil {
		return nil, err
	}

	defIn, _ := pa.DefaultInputDevice()
	defOut, _ := pa.DefaultOutputDevice()

	out := make([]device.Info, 0, len(devs))
	for i, d := range devs {
		host := ""
		if d.HostApi != nil {
			host = d.HostApi.Name
		}
		out = append(out, device.Info{
			ID:                device.Identity(host, d.Name),
			Index:             i,
			HostAPI:           host,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			DefaultInput:      sameDevice(d, defIn),
			DefaultOutput:     sameDevice(d, defOut),
		})
	}
	return out, nil
}

func (b *Backend) OpenOutput(cfg device.StreamConfig, fn device.OutputCallback) (device.Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dev, err := b.pick(cfg.Device, pa.DefaultOutputDevice)
	if err != nil {
		return nil, err
	}

	params := b.parameters(nil, dev)
	params.Output.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.FramesPerBuffer

	s, err := pa.OpenStream(params, func(out []float32) { fn(out) })
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", dev.Name, err)
	}
	b.log.Debug("output opened", zap.String("device", dev.Name), zap.Int("rate", cfg.SampleRate))
	return &stream{s: s}, nil
}

func (b *Backend) OpenInput(cfg device.StreamConfig, fn device.InputCallback) (device.Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dev, err := b.pick(cfg.Device, pa.DefaultInputDevice)
	if err != nil {
		return nil, err
	}

	params := b.parameters(dev, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.FramesPerBuffer

	s, err := pa.OpenStream(params, func(in []float32) { fn(in) })
	if err != nil {
		return nil, fmt.Errorf("open input %q: %w", dev.Name, err)
	}
	b.log.Debug("input opened", zap.String("device", dev.Name), zap.Int("rate", cfg.SampleRate))
	return &stream{s: s}, nil
}

func (b *Backend) devices() ([]*pa.DeviceInfo, error) {
	b.mu.Lock()
	ok := b.initialized
	b.mu.Unlock()
	if !ok {
		return nil, device.ErrNotInitialized
	}
	devs, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio devices: %w", err)
	}
	return devs, nil
}

func (b *Backend) pick(index int, def func() (*pa.DeviceInfo, error)) (*pa.DeviceInfo, error) {
	devs, err := b.devices()
	if err != nil {
		return nil, err
	}
	if index == device.NoDevice {
		d, err := def()
		if err != nil {
			return nil, fmt.Errorf("default device: %w", err)
		}
		return d, nil
	}
	if index < 0 || index >= len(devs) {
		return nil, device.ErrBadDevice
	}
	return devs[index], nil
}

func (b *Backend) parameters(in, out *pa.DeviceInfo) pa.StreamParameters {
	if b.lowLatency {
		return pa.LowLatencyParameters(in, out)
	}
	return pa.HighLatencyParameters(in, out)
}

func sameDevice(a, b *pa.DeviceInfo) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Name == b.Name && a.HostApi == b.HostApi
}

// stream adapts *pa.Stream. PortAudio's Stop waits for the callback to
// return and Close implies Stop.
type stream struct {
	s *pa.Stream
}

func (s *stream) Start() error { return s.s.Start() }
func (s *stream) Stop() error  { return s.s.Stop() }
func (s *stream) Close() error { return s.s.Close() }
