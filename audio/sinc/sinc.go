// SPDX-License-Identifier: EPL-2.0

// Package sinc provides libsamplerate-backed converters implementing
// audio.Converter. It needs cgo and libsamplerate at build time; the pure Go
// audio.CubicConverter is the default elsewhere in the module.
package sinc

import (
	"fmt"
	"math"

	"github.com/dh1tw/gosamplerate"
	"github.com/ik5/audtrack/audio"
)

// Converter quality presets, mirroring libsamplerate.
const (
	BestQuality   = gosamplerate.SRC_SINC_BEST_QUALITY
	MediumQuality = gosamplerate.SRC_SINC_MEDIUM_QUALITY
	Fastest       = gosamplerate.SRC_SINC_FASTEST
	ZeroOrderHold = gosamplerate.SRC_ZERO_ORDER_HOLD
	Linear        = gosamplerate.SRC_LINEAR
)

// maxFeedFrames bounds a single process call. The libsamplerate buffers are
// bufferScale times larger so upsampled output of a full feed still fits.
const (
	maxFeedFrames = 1 << 14
	bufferScale   = 4
)

// Converter keeps generated frames that did not fit in the caller's output
// in a carry buffer, because libsamplerate emits whatever the ratio yields.
type Converter struct {
	src      gosamplerate.Src
	kind     int
	channels int
	carry    []float32
}

func New(kind, channels int) (*Converter, error) {
	if channels < 1 {
		return nil, audio.ErrInvalidChannels
	}
	src, err := gosamplerate.New(kind, channels, bufferScale*maxFeedFrames*channels)
	if err != nil {
		return nil, fmt.Errorf("libsamplerate init: %w", err)
	}
	return &Converter{src: src, kind: kind, channels: channels}, nil
}

// Factory returns an audio.ConverterFactory producing converters of kind.
func Factory(kind int) audio.ConverterFactory {
	return func(channels int) (audio.Converter, error) {
		return New(kind, channels)
	}
}

// KindByName maps config names to converter kinds.
func KindByName(name string) (int, bool) {
	switch name {
	case "sinc-best":
		return BestQuality, true
	case "sinc-medium":
		return MediumQuality, true
	case "sinc-fastest":
		return Fastest, true
	case "zoh":
		return ZeroOrderHold, true
	case "linear":
		return Linear, true
	}
	return 0, false
}

func (c *Converter) Channels() int { return c.channels }

func (c *Converter) Reset() {
	c.carry = c.carry[:0]
	_ = c.src.Reset()
}

func (c *Converter) Close() error {
	if err := gosamplerate.Delete(c.src); err != nil {
		return fmt.Errorf("libsamplerate delete: %w", err)
	}
	return nil
}

func (c *Converter) Convert(in, out []float32, ratio float64, outOffset int) (int, int, error) {
	ch := c.channels
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		clear(out)
		return 0, 0, audio.ErrInvalidRatio
	}
	if len(in)%ch != 0 || len(out)%ch != 0 {
		clear(out)
		return 0, 0, audio.ErrInvalidDstSize
	}
	outFrames := len(out) / ch
	if outOffset < 0 || outOffset > outFrames {
		clear(out)
		return 0, 0, audio.ErrInvalidOffset
	}
	clear(out[:outOffset*ch])

	room := outFrames - outOffset
	consumed := 0
	if need := room - len(c.carry)/ch; need > 0 && len(in) > 0 {
		limit := min(maxFeedFrames, int(bufferScale*maxFeedFrames*ratio))
		feed := min(len(in)/ch, int(math.Ceil(float64(need)*ratio))+1, max(limit, 1))
		// libsamplerate expresses the ratio as output over input.
		res, err := c.src.Process(in[:feed*ch], 1/ratio, false)
		if err != nil {
			clear(out)
			c.carry = c.carry[:0]
			return 0, 0, fmt.Errorf("libsamplerate process: %w", err)
		}
		c.carry = append(c.carry, res...)
		consumed = feed
	}

	produced := min(room, len(c.carry)/ch)
	copy(out[outOffset*ch:], c.carry[:produced*ch])
	c.carry = append(c.carry[:0], c.carry[produced*ch:]...)

	return consumed, produced, nil
}
