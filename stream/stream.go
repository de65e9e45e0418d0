// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"math"

	goaudio "github.com/go-audio/audio"
	"go.uber.org/zap"

	"github.com/ik5/audtrack/audio"
	"github.com/ik5/audtrack/internal/logger"
	"github.com/ik5/audtrack/timeline"
)

// Store is the part of a timeline track the streams need.
type Store interface {
	GetData(t0, dur float64) ([]timeline.Segment, error)
	SetData(buf *goaudio.Float32Buffer, t0, dur float64) (float64, error)
	SampleRate() int
	Channels() int
}

// primer is implemented by converters that accept lookback frames after a
// reset.
type primer interface {
	Prime(history []float32)
}

// lookback is how many frames before the read position prime the converter.
const lookback = 3

// lookahead is the extra input fetched past the window for the
// interpolation kernel.
const lookahead = 4

type options struct {
	factory audio.ConverterFactory
	log     *zap.Logger
}

type Option func(*options)

// WithConverter selects the converter implementation.
func WithConverter(f audio.ConverterFactory) Option {
	return func(o *options) { o.factory = f }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{factory: audio.CubicFactory}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Named("stream")
	}
	return o
}

// sameTime reports whether a and b are within a quarter host frame.
func sameTime(a, b float64, rate int) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	return math.Abs(a-b) < 0.25/float64(rate)
}

// fetch copies track frames [from, from+frames) into dst, zero-filling
// gaps. It returns the index of the first frame that had data, or -1.
func fetch(st Store, dst []float32, from int64, frames int) (int, error) {
	ch := st.Channels()
	rate := float64(st.SampleRate())
	clear(dst[:frames*ch])
	if frames <= 0 {
		return -1, nil
	}

	segs, err := st.GetData(float64(from)/rate, float64(frames)/rate)
	if err != nil {
		return -1, err
	}

	first := -1
	for _, sg := range segs {
		at := int(math.Round(sg.Time*rate) - float64(from))
		if at < 0 || at >= frames {
			continue
		}
		n := min(sg.Frames(), frames-at)
		copy(dst[at*ch:(at+n)*ch], sg.Buf.Data[:n*ch])
		if first < 0 || at < first {
			first = at
		}
	}
	return first, nil
}

func grow(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
