// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ik5/audtrack/device"
	"github.com/ik5/audtrack/internal/logger"
	"github.com/ik5/audtrack/ringbuf"
	"github.com/ik5/audtrack/stream"
	"github.com/ik5/audtrack/timeline"
)

// channels is the device stream layout in both directions.
const channels = 2

// mixFrames bounds how many frames are mixed or drained per step.
const mixFrames = 1024

type direction struct {
	state  State
	group  *timeline.Group
	ring   *ringbuf.Buffer
	stream device.Stream

	start  float64
	frames int64 // frames moved through the ring since start
	limit  int64 // frame count at which the direction ends, -1 for none

	ticks     int
	underruns int
	overruns  int
	lastStop  float64
}

func (d *direction) cursor(rate int) float64 {
	return d.start + float64(d.frames)/float64(rate)
}

// backlog is the time held in the ring.
func (d *direction) backlog(rate int) float64 {
	if d.ring == nil {
		return 0
	}
	return float64(d.ring.AvailableLength()) / channels / float64(rate)
}

func (d *direction) ended() bool {
	return d.limit >= 0 && d.frames >= d.limit
}

type Engine struct {
	mu      sync.Mutex
	backend device.Backend
	reg     *timeline.Registry
	cfg     Config
	log     *zap.Logger

	rate      int
	outID     string
	outIndex  int
	inID      string
	inIndex   int
	startMode StartMode
	stopMode  StopMode

	play direction
	rec  direction

	readers map[*timeline.Track]*stream.Reader
	targets []target
	created int

	mixBuf    []float32
	laneBuf   []float32
	stereoBuf []float32
	drainBuf  []float32
	fanBuf    []float32
	leftBuf   []float32
	rightBuf  []float32
	gainBuf   []float32

	events   chan Event
	dirty    dirty
	versions map[string]uint64
	closed   bool
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New initializes backend and resolves the configured devices. Devices that
// cannot be found fall back to the default.
func New(backend device.Backend, reg *timeline.Registry, cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.withDefaults()
	e := &Engine{
		backend:   backend,
		reg:       reg,
		cfg:       cfg,
		rate:      cfg.SampleRate,
		startMode: cfg.StartMode,
		stopMode:  cfg.StopMode,
		readers:   make(map[*timeline.Track]*stream.Reader),
		mixBuf:    make([]float32, mixFrames*channels),
		stereoBuf: make([]float32, mixFrames*channels),
		drainBuf:  make([]float32, mixFrames*channels),
		leftBuf:   make([]float32, mixFrames),
		rightBuf:  make([]float32, mixFrames),
		events:    make(chan Event, cfg.EventBuffer),
		versions:  make(map[string]uint64),
		play:      direction{limit: -1},
		rec:       direction{limit: -1},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Named("engine")
	}

	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("init %s: %w", backend.Name(), err)
	}
	devs, err := backend.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	e.outID, e.outIndex = e.remap(devs, cfg.OutputDevice, "output")
	e.inID, e.inIndex = e.remap(devs, cfg.InputDevice, "input")

	e.log.Info("engine ready",
		zap.String("backend", backend.Name()),
		zap.Int("rate", e.rate),
		zap.String("output", e.outID),
		zap.String("input", e.inID))
	return e, nil
}

// Events delivers coalesced change notifications, flushed once per tick.
// Events are dropped while the channel is full.
func (e *Engine) Events() <-chan Event { return e.events }

// Run ticks the engine every RefillInterval until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.RefillInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick refills the playback ring, drains the recording ring, stops
// directions that reached their end and flushes events.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.tickPlayback()
	e.tickRecording()
	e.flush()
}

func (e *Engine) tickPlayback() {
	d := &e.play
	if d.state != Playing {
		return
	}
	e.mustBeActive(d, Playback)

	d.ticks++
	if d.ticks > e.cfg.WarmupTicks && !d.ended() && d.ring.AvailableLength() == 0 {
		d.underruns++
		e.dirty.underrun = true
		e.log.Warn("playback underrun", zap.Int("count", d.underruns), zap.Float64("cursor", d.cursor(e.rate)))
	}

	if d.ended() && d.ring.AvailableLength() == 0 {
		if err := e.stopPlayback(); err != nil {
			e.fail("stop playback at end", err)
		}
		return
	}
	e.refill()
	e.dirty.cursor[Playback] = true
}

func (e *Engine) tickRecording() {
	d := &e.rec
	if d.state != Playing {
		return
	}
	e.mustBeActive(d, Recording)

	d.ticks++
	if d.ticks > e.cfg.WarmupTicks && d.ring.AvailableSpace() == 0 {
		d.overruns++
		e.dirty.overrun = true
		e.log.Warn("recording overrun", zap.Int("count", d.overruns))
	}

	e.drain()
	if d.ended() {
		if err := e.stopRecording(); err != nil {
			e.fail("stop recording at end", err)
		}
		return
	}
	e.dirty.cursor[Recording] = true
}

// StartPlayback plays g from t for dur seconds; dur <= 0 or +Inf plays
// until stopped. It returns the time playback actually starts at, which
// differs from t when the start mode says so or when g is recording.
func (e *Engine) StartPlayback(g *timeline.Group, t, dur float64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	nan := math.NaN()

	if e.closed {
		return nan, ErrClosed
	}
	if g == nil {
		return nan, ErrNoGroup
	}
	if e.play.state != Stopped {
		return nan, ErrPlaybackActive
	}

	start := e.startTime(&e.play, g, t)
	if e.rec.state != Stopped && e.rec.group == g {
		start = e.rec.cursor(e.rate) + e.rec.backlog(e.rate)
		e.log.Debug("playback aligned to recording", zap.Float64("start", start))
	}
	if math.IsNaN(start) || math.IsInf(start, 0) || start < 0 {
		return nan, ErrInvalidTime
	}

	ring := ringbuf.New(e.ringLen())
	st, err := e.backend.OpenOutput(e.streamConfig(e.outIndex), func(out []float32) {
		ring.Read(out)
	})
	if err != nil {
		e.log.Error("open output failed", zap.String("device", e.outID), zap.Error(err))
		return nan, fmt.Errorf("open output %q: %w", e.outID, err)
	}

	e.play = direction{
		group:    g,
		ring:     ring,
		stream:   st,
		start:    start,
		limit:    e.limitOf(dur),
		lastStop: e.play.lastStop,
	}
	e.pruneReaders()
	for _, r := range e.readers {
		r.Reset()
	}
	e.refill()

	if err := st.Start(); err != nil {
		_ = st.Close()
		e.play = direction{limit: -1, lastStop: e.play.lastStop}
		e.log.Error("start output failed", zap.String("device", e.outID), zap.Error(err))
		return nan, fmt.Errorf("start output %q: %w", e.outID, err)
	}

	e.play.state = Playing
	e.dirty.state[Playback] = true
	e.log.Info("playback started", zap.String("group", g.Name()), zap.Float64("start", start))
	return start, nil
}

// StartRecording records into g from t for dur seconds. Without record
// slots a stereo track is created and put in g's left slot.
func (e *Engine) StartRecording(g *timeline.Group, t, dur float64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	nan := math.NaN()

	if e.closed {
		return nan, ErrClosed
	}
	if g == nil {
		return nan, ErrNoGroup
	}
	if e.rec.state != Stopped {
		return nan, ErrRecordingActive
	}

	start := e.startTime(&e.rec, g, t)
	if e.play.state != Stopped && e.play.group == g {
		start = e.play.cursor(e.rate) - e.play.backlog(e.rate)
		e.log.Debug("recording aligned to playback", zap.Float64("start", start))
	}
	if math.IsNaN(start) || math.IsInf(start, 0) || start < 0 {
		return nan, ErrInvalidTime
	}

	targets, err := e.resolveTargets(g)
	if err != nil {
		return nan, err
	}

	ring := ringbuf.New(e.ringLen())
	st, err := e.backend.OpenInput(e.streamConfig(e.inIndex), func(in []float32) {
		ring.Write(in)
	})
	if err != nil {
		e.closeTargets(targets)
		e.log.Error("open input failed", zap.String("device", e.inID), zap.Error(err))
		return nan, fmt.Errorf("open input %q: %w", e.inID, err)
	}
	if err := st.Start(); err != nil {
		_ = st.Close()
		e.closeTargets(targets)
		e.log.Error("start input failed", zap.String("device", e.inID), zap.Error(err))
		return nan, fmt.Errorf("start input %q: %w", e.inID, err)
	}

	e.targets = targets
	e.rec = direction{
		state:    Playing,
		group:    g,
		ring:     ring,
		stream:   st,
		start:    start,
		limit:    e.limitOf(dur),
		lastStop: e.rec.lastStop,
	}
	e.dirty.state[Recording] = true
	e.log.Info("recording started", zap.String("group", g.Name()), zap.Float64("start", start),
		zap.Int("targets", len(targets)))
	return start, nil
}

// StopPlayback stops playback. With StopDuplex, recording of the same group
// stops too.
func (e *Engine) StopPlayback() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.play.group
	err := e.stopPlayback()
	if e.stopMode == StopDuplex && g != nil && e.rec.group == g {
		err = errors.Join(err, e.stopRecording())
	}
	return err
}

// StopRecording stops recording, storing whatever the device delivered
// before it stopped. With StopDuplex, playback of the same group stops too.
func (e *Engine) StopRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.rec.group
	err := e.stopRecording()
	if e.stopMode == StopDuplex && g != nil && e.play.group == g {
		err = errors.Join(err, e.stopPlayback())
	}
	return err
}

// stopPlayback stops then closes the stream, after which the callback can
// no longer touch the ring, and only then drops the ring.
func (e *Engine) stopPlayback() error {
	d := &e.play
	if d.state == Stopped {
		return nil
	}
	e.mustBeActive(d, Playback)

	pos := d.cursor(e.rate) - d.backlog(e.rate)
	var err error
	if d.state == Playing {
		err = d.stream.Stop()
	}
	err = errors.Join(err, d.stream.Close())

	*d = direction{limit: -1, lastStop: pos, underruns: d.underruns}
	e.dirty.state[Playback] = true
	e.log.Info("playback stopped", zap.Float64("cursor", pos))
	return err
}

func (e *Engine) stopRecording() error {
	d := &e.rec
	if d.state == Stopped {
		return nil
	}
	e.mustBeActive(d, Recording)

	var err error
	if d.state == Playing {
		err = d.stream.Stop()
	}
	err = errors.Join(err, d.stream.Close())
	e.drain()
	err = errors.Join(err, e.flushTargets())

	e.flushTracks()

	pos := d.cursor(e.rate)
	*d = direction{limit: -1, lastStop: pos, overruns: d.overruns}
	e.closeTargets(e.targets)
	e.targets = nil
	e.dirty.state[Recording] = true
	e.log.Info("recording stopped", zap.Float64("cursor", pos))
	return err
}

func (e *Engine) PausePlayback() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pause(&e.play, Playback)
}

func (e *Engine) PauseRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pause(&e.rec, Recording)
}

func (e *Engine) ResumePlayback() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resume(&e.play, Playback)
}

func (e *Engine) ResumeRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resume(&e.rec, Recording)
}

// pause stops the device stream but keeps ring and cursor.
func (e *Engine) pause(d *direction, dir Direction) error {
	if d.state != Playing {
		return ErrNotPlaying
	}
	e.mustBeActive(d, dir)
	if err := d.stream.Stop(); err != nil {
		return fmt.Errorf("pause %s: %w", dir, err)
	}
	if dir == Recording {
		e.drain()
	}
	d.state = Paused
	e.dirty.state[dir] = true
	return nil
}

func (e *Engine) resume(d *direction, dir Direction) error {
	if d.state != Paused {
		return ErrNotPaused
	}
	e.mustBeActive(d, dir)
	if err := d.stream.Start(); err != nil {
		return fmt.Errorf("resume %s: %w", dir, err)
	}
	d.state = Playing
	d.ticks = 0
	e.dirty.state[dir] = true
	return nil
}

// State returns the state of both directions.
func (e *Engine) State() (playback, recording State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.play.state, e.rec.state
}

// PlaybackCursor is the position being heard: what was mixed minus what
// still sits in the ring. Stopped, it is where playback last stopped.
func (e *Engine) PlaybackCursor() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursorOf(Playback)
}

// RecordingCursor is the position the next drained frame is stored at.
// Stopped, it is where recording last stopped.
func (e *Engine) RecordingCursor() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursorOf(Recording)
}

// Underruns and Overruns count ring starvation and saturation.
func (e *Engine) Underruns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.play.underruns
}

func (e *Engine) Overruns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.overruns
}

func (e *Engine) SetStartMode(m StartMode) {
	e.mu.Lock()
	e.startMode = m
	e.mu.Unlock()
}

func (e *Engine) StartMode() StartMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startMode
}

func (e *Engine) SetStopMode(m StopMode) {
	e.mu.Lock()
	e.stopMode = m
	e.mu.Unlock()
}

func (e *Engine) StopMode() StopMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopMode
}

// Close stops both directions and terminates the backend. The events
// channel is closed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	err := e.forceStop()
	for tr, r := range e.readers {
		err = errors.Join(err, r.Close())
		delete(e.readers, tr)
	}
	e.closed = true
	close(e.events)
	return errors.Join(err, e.backend.Terminate())
}

func (e *Engine) forceStop() error {
	return errors.Join(e.stopPlayback(), e.stopRecording())
}

func (e *Engine) cursorOf(dir Direction) float64 {
	d := e.dir(dir)
	if d.state == Stopped {
		return d.lastStop
	}
	if dir == Playback {
		return d.cursor(e.rate) - d.backlog(e.rate)
	}
	return d.cursor(e.rate)
}

func (e *Engine) dir(dir Direction) *direction {
	if dir == Recording {
		return &e.rec
	}
	return &e.play
}

func (e *Engine) startTime(d *direction, g *timeline.Group, t float64) float64 {
	switch e.startMode {
	case StartCursor:
		return d.lastStop
	case StartRegion:
		return g.RegionStart()
	}
	return t
}

func (e *Engine) limitOf(dur float64) int64 {
	if dur <= 0 || math.IsInf(dur, 1) || math.IsNaN(dur) {
		return -1
	}
	return int64(math.Round(dur * float64(e.rate)))
}

func (e *Engine) ringLen() int {
	return max(mixFrames, int(e.cfg.RingSeconds*float64(e.rate))) * channels
}

func (e *Engine) streamConfig(index int) device.StreamConfig {
	return device.StreamConfig{
		Device:          index,
		SampleRate:      e.rate,
		Channels:        channels,
		FramesPerBuffer: e.cfg.FramesPerBuffer,
	}
}

// mustBeActive panics when a running or paused direction lost its ring or
// stream, which means the state machine is broken.
func (e *Engine) mustBeActive(d *direction, dir Direction) {
	if d.ring == nil || d.stream == nil || d.group == nil {
		panic(fmt.Sprintf("engine: %s is %s without ring, stream or group", dir, d.state))
	}
}

func (e *Engine) fail(what string, err error) {
	e.log.Error(what, zap.Error(err))
	e.dirty.failures = append(e.dirty.failures, fmt.Sprintf("%s: %v", what, err))
}
