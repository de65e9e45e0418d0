// SPDX-License-Identifier: EPL-2.0

// Package oto implements an output-only device.Backend on oto. oto drives
// the system default output and allows one context per process, so the
// first stream fixes the sample rate.
package oto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	"github.com/ik5/audtrack/device"
	"github.com/ik5/audtrack/internal/logger"
)

// ErrRateLocked is returned when a stream asks for a rate other than the
// one the process-wide context was created with.
var ErrRateLocked = errors.New("oto context already running at another rate")

const bytesPerSample = 4

// defaultFrames sizes the pull buffer when the stream config leaves
// FramesPerBuffer at zero.
const defaultFrames = 8192

// HostAPI is the host API part of the single device's identity.
const HostAPI = "oto"

type Backend struct {
	mu          sync.Mutex
	ctx         *oto.Context
	rate        int
	channels    int
	initialized bool
	bufferSize  time.Duration
	log         *zap.Logger
}

type Option func(*Backend)

// WithBufferSize sets oto's internal buffer duration.
func WithBufferSize(d time.Duration) Option {
	return func(b *Backend) { b.bufferSize = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) { b.log = l }
}

func New(opts ...Option) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.Named("oto")
	}
	return b
}

func (b *Backend) Name() string { return "oto" }

func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil {
		if err := b.ctx.Resume(); err != nil {
			return fmt.Errorf("oto resume: %w", err)
		}
	}
	b.initialized = true
	return nil
}

// Terminate suspends the context; oto contexts cannot be destroyed.
func (b *Backend) Terminate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = false
	if b.ctx != nil {
		if err := b.ctx.Suspend(); err != nil {
			return fmt.Errorf("oto suspend: %w", err)
		}
	}
	return nil
}

func (b *Backend) Devices() ([]device.Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, device.ErrNotInitialized
	}
	return []device.Info{{
		ID:                device.Identity(HostAPI, "Default Output"),
		Index:             0,
		HostAPI:           HostAPI,
		Name:              "Default Output",
		MaxOutputChannels: 2,
		DefaultSampleRate: 48000,
		DefaultOutput:     true,
	}}, nil
}

func (b *Backend) OpenInput(device.StreamConfig, device.InputCallback) (device.Stream, error) {
	return nil, device.ErrNoInput
}

func (b *Backend) OpenOutput(cfg device.StreamConfig, fn device.OutputCallback) (device.Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Device != device.NoDevice && cfg.Device != 0 {
		return nil, device.ErrBadDevice
	}
	ctx, err := b.context(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, err
	}

	frames := cfg.FramesPerBuffer
	if frames == 0 {
		frames = defaultFrames
	}
	r := newPullReader(fn, cfg.Channels, frames)
	p := ctx.NewPlayer(r)
	b.log.Debug("output opened", zap.Int("rate", cfg.SampleRate), zap.Int("channels", cfg.Channels))
	return &stream{player: p, reader: r}, nil
}

func (b *Backend) context(rate, channels int) (*oto.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, device.ErrNotInitialized
	}
	if b.ctx != nil {
		if b.rate != rate || b.channels != channels {
			return nil, fmt.Errorf("%w: have %d Hz/%d ch, want %d Hz/%d ch",
				ErrRateLocked, b.rate, b.channels, rate, channels)
		}
		return b.ctx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   b.bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	b.ctx, b.rate, b.channels = ctx, rate, channels
	return ctx, nil
}

// pullReader turns oto's pull of bytes into callback invocations. Once
// stopped it serves silence without calling fn. Read runs on oto's audio
// thread and never allocates: larger requests get a short read of at most
// one buffer.
type pullReader struct {
	mu       sync.Mutex
	fn       device.OutputCallback
	channels int
	running  bool
	buf      []float32
}

func newPullReader(fn device.OutputCallback, channels, frames int) *pullReader {
	return &pullReader{
		fn:       fn,
		channels: channels,
		buf:      make([]float32, frames*channels),
	}
}

func (r *pullReader) Read(p []byte) (int, error) {
	frameBytes := r.channels * bytesPerSample
	n := min(len(p)/frameBytes*r.channels, len(r.buf))
	if n == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	buf := r.buf[:n]
	if r.running {
		r.fn(buf)
	} else {
		clear(buf)
	}
	encodeFloat32LE(p, buf)
	return n * bytesPerSample, nil
}

func (r *pullReader) setRunning(v bool) {
	r.mu.Lock()
	r.running = v
	r.mu.Unlock()
}

func encodeFloat32LE(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*bytesPerSample:], math.Float32bits(v))
	}
}

type stream struct {
	player *oto.Player
	reader *pullReader
}

func (s *stream) Start() error {
	s.reader.setRunning(true)
	s.player.Play()
	return nil
}

// Stop returns once any in-flight callback has finished; oto may keep
// pulling, but only silence.
func (s *stream) Stop() error {
	s.reader.setRunning(false)
	s.player.Pause()
	return nil
}

func (s *stream) Close() error {
	s.reader.setRunning(false)
	return s.player.Close()
}
