// SPDX-License-Identifier: EPL-2.0

// Package audiotest holds generators shared by tests across the module.
package audiotest

import (
	"io"
	"math"
)

// MockSource generates audio on demand. It satisfies audio.Source without
// importing it.
type MockSource struct {
	sampleRate   int
	channels     int
	totalSamples int // per channel
	generated    int // per channel
	waveform     func(sample int, channel int) float32
}

// NewMockSource creates a source of totalSamples frames; waveform returns
// the value of a sample given its frame index and channel.
func NewMockSource(sampleRate, channels, totalSamples int, waveform func(sample int, channel int) float32) *MockSource {
	return &MockSource{
		sampleRate:   sampleRate,
		channels:     channels,
		totalSamples: totalSamples,
		waveform:     waveform,
	}
}

func NewSilentSource(sampleRate, channels, totalSamples int) *MockSource {
	return NewConstantSource(sampleRate, channels, totalSamples, 0)
}

func NewSineSource(sampleRate, channels, totalSamples int, frequency float64) *MockSource {
	return NewMockSource(sampleRate, channels, totalSamples, func(sample int, channel int) float32 {
		return SineAt(sample, sampleRate, frequency)
	})
}

func NewConstantSource(sampleRate, channels, totalSamples int, value float32) *MockSource {
	return NewMockSource(sampleRate, channels, totalSamples, func(int, int) float32 {
		return value
	})
}

func (m *MockSource) SampleRate() int { return m.sampleRate }
func (m *MockSource) Channels() int   { return m.channels }
func (m *MockSource) BufSize() int    { return 4096 }
func (m *MockSource) Close() error    { return nil }

// Reset rewinds the source.
func (m *MockSource) Reset() {
	m.generated = 0
}

func (m *MockSource) ReadSamples(dst []float32) (int, error) {
	if m.generated >= m.totalSamples {
		return 0, io.EOF
	}

	frames := min(len(dst)/m.channels, m.totalSamples-m.generated)
	for frame := range frames {
		for ch := range m.channels {
			dst[frame*m.channels+ch] = m.waveform(m.generated+frame, ch)
		}
	}
	m.generated += frames

	if m.generated >= m.totalSamples {
		return frames * m.channels, io.EOF
	}
	return frames * m.channels, nil
}

// SineAt is the value of a unit sine of frequency at frame sample.
func SineAt(sample, sampleRate int, frequency float64) float32 {
	t := float64(sample) / float64(sampleRate)
	return float32(math.Sin(2 * math.Pi * frequency * t))
}

// Ramp returns frames interleaved frames whose sample at frame f, channel c
// is (f*channels+c+1)/scale. Every value is distinct, which makes ordering
// and offset mistakes visible in comparisons.
func Ramp(frames, channels int, scale float32) []float32 {
	out := make([]float32, frames*channels)
	for i := range out {
		out[i] = float32(i+1) / scale
	}
	return out
}

// Sine returns frames interleaved frames of a sine, identical on every channel.
func Sine(frames, channels, sampleRate int, frequency float64) []float32 {
	out := make([]float32, frames*channels)
	for f := range frames {
		v := SineAt(f, sampleRate, frequency)
		for c := range channels {
			out[f*channels+c] = v
		}
	}
	return out
}
