// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"time"

	"github.com/ik5/audtrack/audio"
	"github.com/ik5/audtrack/device"
)

// Config holds engine settings. Zero fields other than WarmupTicks,
// FramesPerBuffer and the modes take the DefaultConfig value.
type Config struct {
	SampleRate      int
	FramesPerBuffer int
	// RingSeconds sizes each direction's ring buffer.
	RingSeconds    float64
	RefillInterval time.Duration
	// WarmupTicks is how many ticks after a start are not checked for
	// underruns.
	WarmupTicks  int
	StartMode    StartMode
	StopMode     StopMode
	OutputDevice string
	InputDevice  string
	Converter    audio.ConverterFactory
	EventBuffer  int
}

func DefaultConfig() Config {
	return Config{
		SampleRate:     48000,
		RingSeconds:    0.5,
		RefillInterval: 50 * time.Millisecond,
		WarmupTicks:    3,
		OutputDevice:   device.DefaultID,
		InputDevice:    device.DefaultID,
		Converter:      audio.CubicFactory,
		EventBuffer:    64,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if c.RingSeconds <= 0 {
		c.RingSeconds = def.RingSeconds
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = def.RefillInterval
	}
	if c.WarmupTicks < 0 {
		c.WarmupTicks = 0
	}
	if c.OutputDevice == "" {
		c.OutputDevice = def.OutputDevice
	}
	if c.InputDevice == "" {
		c.InputDevice = def.InputDevice
	}
	if c.Converter == nil {
		c.Converter = def.Converter
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	return c
}
