// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ik5/audtrack/audio"
)

// Reader renders a store at a host sample rate.
type Reader struct {
	store   Store
	factory audio.ConverterFactory
	log     *zap.Logger

	conv     audio.Converter
	channels int
	next     float64 // host time the next Read is expected at
	src      int64   // next track frame to feed the converter
	in       []float32
}

func NewReader(st Store, opts ...Option) *Reader {
	o := buildOptions(opts)
	return &Reader{
		store:   st,
		factory: o.factory,
		log:     o.log,
		next:    math.NaN(),
	}
}

// Reset forgets the position; the next Read restarts the converter.
func (r *Reader) Reset() {
	r.next = math.NaN()
	if r.conv != nil {
		r.conv.Reset()
	}
}

func (r *Reader) Close() error {
	if r.conv == nil {
		return nil
	}
	err := r.conv.Close()
	r.conv = nil
	return err
}

// Read fills dst with frames host-rate frames starting at host time t, in
// the store's channel layout. Gaps are silent. On failure dst is cleared and
// the error means no data is available for this window.
func (r *Reader) Read(dst []float32, t float64, frames, hostRate int) (int, error) {
	if r.store == nil {
		return 0, ErrNoStore
	}
	if hostRate <= 0 {
		return 0, ErrInvalidRate
	}
	ch := r.store.Channels()
	if len(dst) < frames*ch {
		return 0, ErrShortBuffer
	}
	out := dst[:frames*ch]
	rate := r.store.SampleRate()

	if rate == hostRate {
		r.next = t + float64(frames)/float64(hostRate)
		if _, err := fetch(r.store, out, startFrame(t, rate), frames); err != nil {
			clear(out)
			return 0, fmt.Errorf("read %.6fs: %w", t, err)
		}
		return frames, nil
	}

	if err := r.ensure(ch); err != nil {
		clear(out)
		return 0, err
	}
	if !sameTime(t, r.next, hostRate) {
		r.restart(t, rate)
	}
	r.next = t + float64(frames)/float64(hostRate)

	ratio := float64(rate) / float64(hostRate)
	need := int(math.Ceil(float64(frames)*ratio)) + lookahead
	r.in = grow(r.in, need*ch)
	first, err := fetch(r.store, r.in, r.src, need)
	if err != nil {
		clear(out)
		r.conv.Reset()
		return 0, fmt.Errorf("read %.6fs: %w", t, err)
	}

	switch {
	case first < 0:
		// Nothing under the window; skip ahead and start fresh later.
		clear(out)
		r.src += int64(math.Round(float64(frames) * ratio))
		r.conv.Reset()
		return frames, nil

	case first > lookback:
		// Data begins inside the window: pad the lead-in and start the
		// converter exactly on the first frame.
		offset := min(frames, int(math.Ceil(float64(first)/ratio)))
		r.src += int64(first)
		r.conv.Reset()
		r.prime()
		consumed, produced, err := r.conv.Convert(r.in[first*ch:], out, ratio, offset)
		if err != nil {
			r.conv.Reset()
			return 0, fmt.Errorf("convert: %w", err)
		}
		r.src += int64(consumed)
		clear(out[(offset+produced)*ch:])
		return frames, nil
	}

	consumed, produced, err := r.conv.Convert(r.in, out, ratio, 0)
	if err != nil {
		r.conv.Reset()
		return 0, fmt.Errorf("convert: %w", err)
	}
	r.src += int64(consumed)
	clear(out[produced*ch:])
	return frames, nil
}

// ensure rebuilds the converter when the channel count changes.
func (r *Reader) ensure(ch int) error {
	if r.conv != nil && r.channels == ch {
		return nil
	}
	if r.conv != nil {
		_ = r.conv.Close()
		r.log.Debug("reader channel count changed", zap.Int("from", r.channels), zap.Int("to", ch))
	}
	conv, err := r.factory(ch)
	if err != nil {
		r.conv = nil
		return fmt.Errorf("converter: %w", err)
	}
	r.conv = conv
	r.channels = ch
	r.next = math.NaN()
	return nil
}

func (r *Reader) restart(t float64, rate int) {
	r.src = startFrame(t, rate)
	r.conv.Reset()
	r.prime()
	r.log.Debug("reader reset", zap.Float64("t", t), zap.Int64("frame", r.src))
}

// prime feeds the frames before src to converters that take history.
func (r *Reader) prime() {
	p, ok := r.conv.(primer)
	if !ok || r.src <= 0 {
		return
	}
	from := max(0, r.src-lookback)
	n := int(r.src - from)
	hist := make([]float32, n*r.channels)
	if first, err := fetch(r.store, hist, from, n); err != nil || first < 0 {
		return
	}
	p.Prime(hist)
}

func startFrame(t float64, rate int) int64 {
	return int64(math.Floor(t*float64(rate) + 1e-6*float64(rate)))
}
