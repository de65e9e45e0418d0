// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"math"

	"github.com/ik5/audtrack/utils"
)

// Converter is a stateful sample-rate converter over interleaved frames.
// State carries across calls so a continuous stream can be converted in
// arbitrary chunks; Reset must be called on a discontinuity.
type Converter interface {
	// Convert consumes frames from in at ratio input frames per output frame
	// and writes at most len(out)/Channels()-outOffset frames into out,
	// starting at frame outOffset. Frames [0, outOffset) are zeroed.
	// consumed frames must not be passed again; the remainder of in must be
	// supplied again on the next call. On failure out is cleared and consumed
	// and produced are zero.
	Convert(in, out []float32, ratio float64, outOffset int) (consumed, produced int, err error)
	Reset()
	Channels() int
	Close() error
}

// ConverterFactory builds a fresh Converter for a channel count.
type ConverterFactory func(channels int) (Converter, error)

// historyFrames is how many frames of context the cubic kernel keeps between
// calls: one behind the current position and two ahead.
const historyFrames = 3

// lowpassAlpha is the one-pole coefficient applied to input when downsampling.
const lowpassAlpha = 0.5

// CubicConverter converts with Catmull-Rom interpolation. Input is run
// through a one-pole low-pass when downsampling, and copied through untouched
// when the ratio is exactly 1 and the phase is on a frame boundary.
type CubicConverter struct {
	channels int

	hist   []float32 // last historyFrames input frames, already filtered
	primed bool
	pos    float64 // next output position, in frames from hist[0]

	lp       []float32 // low-pass state
	work     []float32
	filtered []float32
}

func NewCubicConverter(channels int) *CubicConverter {
	if channels < 1 {
		channels = 1
	}
	return &CubicConverter{
		channels: channels,
		hist:     make([]float32, historyFrames*channels),
		lp:       make([]float32, channels),
	}
}

// CubicFactory is a ConverterFactory for CubicConverter.
func CubicFactory(channels int) (Converter, error) {
	if channels < 1 {
		return nil, ErrInvalidChannels
	}
	return NewCubicConverter(channels), nil
}

func (c *CubicConverter) Channels() int { return c.channels }
func (c *CubicConverter) Close() error  { return nil }

func (c *CubicConverter) Reset() {
	c.primed = false
	c.pos = 0
	clear(c.hist)
	clear(c.lp)
}

// Prime seeds the history with frames that precede the next input, so the
// first outputs after a seek interpolate against real data instead of a
// repeated edge frame. history holds interleaved frames, oldest first.
func (c *CubicConverter) Prime(history []float32) {
	ch := c.channels
	n := len(history) / ch
	if n == 0 {
		return
	}
	for i := range historyFrames {
		src := n - historyFrames + i
		if src < 0 {
			src = 0
		}
		copy(c.hist[i*ch:(i+1)*ch], history[src*ch:(src+1)*ch])
	}
	copy(c.lp, history[(n-1)*ch:n*ch])
	c.pos = historyFrames
	c.primed = true
}

func (c *CubicConverter) Convert(in, out []float32, ratio float64, outOffset int) (int, int, error) {
	ch := c.channels
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		clear(out)
		return 0, 0, ErrInvalidRatio
	}
	if len(in)%ch != 0 || len(out)%ch != 0 {
		clear(out)
		return 0, 0, ErrInvalidDstSize
	}
	outFrames := len(out) / ch
	if outOffset < 0 || outOffset > outFrames {
		clear(out)
		return 0, 0, ErrInvalidOffset
	}
	clear(out[:outOffset*ch])

	nIn := len(in) / ch
	if nIn == 0 && !c.primed {
		return 0, 0, nil
	}

	src := in
	if ratio > 1 {
		src = c.lowpass(in)
	}
	if !c.primed {
		for i := range historyFrames {
			copy(c.hist[i*ch:(i+1)*ch], src[:ch])
		}
		copy(c.lp, src[:ch])
		c.pos = historyFrames
		c.primed = true
	}

	c.work = append(append(c.work[:0], c.hist...), src...)
	w := c.work
	frames := len(w) / ch
	room := outFrames - outOffset
	q := c.pos
	produced := 0

	if math.Abs(ratio-1) < 1e-12 && q == math.Trunc(q) {
		i := int(q)
		n := min(room, frames-i)
		if n > 0 {
			copy(out[outOffset*ch:], w[i*ch:(i+n)*ch])
			produced = n
			q += float64(n)
		}
	} else {
		for produced < room {
			i := int(q)
			if i+2 > frames-1 {
				break
			}
			x := float32(q - float64(i))
			base := (outOffset + produced) * ch
			for k := range ch {
				out[base+k] = utils.CubicInterpolate(
					w[(i-1)*ch+k], w[i*ch+k], w[(i+1)*ch+k], w[(i+2)*ch+k], x)
			}
			produced++
			q += ratio
		}
	}

	consumed := min(nIn, max(0, int(q)-1))
	if ratio > 1 && consumed > 0 {
		copy(c.lp, src[(consumed-1)*ch:consumed*ch])
	}
	copy(c.hist, w[consumed*ch:(consumed+historyFrames)*ch])
	c.pos = q - float64(consumed)

	return consumed, produced, nil
}

// lowpass filters in into scratch starting from the committed filter state.
// The state itself only advances for consumed frames.
func (c *CubicConverter) lowpass(in []float32) []float32 {
	ch := c.channels
	if cap(c.filtered) < len(in) {
		c.filtered = make([]float32, len(in))
	}
	f := c.filtered[:len(in)]
	prev := c.lp
	if !c.primed {
		prev = in[:ch]
	}
	for i := 0; i < len(in); i += ch {
		for k := range ch {
			f[i+k] = lowpassAlpha*in[i+k] + (1-lowpassAlpha)*prev[k]
		}
		prev = f[i : i+ch]
	}
	return f
}
