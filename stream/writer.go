// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"fmt"
	"math"

	goaudio "github.com/go-audio/audio"
	"go.uber.org/zap"

	"github.com/ik5/audtrack/audio"
)

// Writer stores host-rate input into a store at the store's rate.
type Writer struct {
	store   Store
	factory audio.ConverterFactory
	log     *zap.Logger

	conv     audio.Converter
	hostRate int
	next     float64 // host time the next Write is expected at
	dst      float64 // track time the next converted frame lands on
	pending  []float32
	last     []float32 // last input frame, for padding on Flush
	out      []float32
}

func NewWriter(st Store, opts ...Option) *Writer {
	o := buildOptions(opts)
	return &Writer{
		store:   st,
		factory: o.factory,
		log:     o.log,
		next:    math.NaN(),
	}
}

// Reset drops carried input; the next Write starts fresh at its t.
func (w *Writer) Reset() {
	w.next = math.NaN()
	w.pending = w.pending[:0]
	w.last = w.last[:0]
	if w.conv != nil {
		w.conv.Reset()
	}
}

func (w *Writer) Close() error {
	if w.conv == nil {
		return nil
	}
	err := w.conv.Close()
	w.conv = nil
	return err
}

// Write stores frames, recorded at hostRate and starting at host time t,
// and returns the track time right after the last stored frame.
func (w *Writer) Write(frames []float32, t float64, hostRate int) (float64, error) {
	nan := math.NaN()
	if w.store == nil {
		return nan, ErrNoStore
	}
	if hostRate <= 0 {
		return nan, ErrInvalidRate
	}
	ch := w.store.Channels()
	if len(frames)%ch != 0 {
		return nan, ErrRaggedFrames
	}
	n := len(frames) / ch
	rate := w.store.SampleRate()

	if rate == hostRate {
		w.last = w.last[:0]
		w.next = t + float64(n)/float64(hostRate)
		if n == 0 {
			return t, nil
		}
		return w.store.SetData(w.buffer(frames, rate), t, 0)
	}

	if w.conv == nil {
		conv, err := w.factory(ch)
		if err != nil {
			return nan, fmt.Errorf("converter: %w", err)
		}
		w.conv = conv
	}
	if !sameTime(t, w.next, hostRate) {
		w.conv.Reset()
		w.pending = w.pending[:0]
		w.dst = t
		w.log.Debug("writer reset", zap.Float64("t", t))
	}
	w.hostRate = hostRate
	w.next = t + float64(n)/float64(hostRate)
	w.pending = append(w.pending, frames...)
	if n > 0 {
		w.last = append(w.last[:0], frames[len(frames)-ch:]...)
	}

	ratio := float64(hostRate) / float64(rate)
	for len(w.pending) > 0 {
		room := int(math.Ceil(float64(len(w.pending)/ch)/ratio)) + lookahead
		w.out = grow(w.out, room*ch)
		consumed, produced, err := w.conv.Convert(w.pending, w.out, ratio, 0)
		if err != nil {
			w.Reset()
			return nan, fmt.Errorf("convert: %w", err)
		}
		if produced > 0 {
			next, err := w.store.SetData(w.buffer(w.out[:produced*ch], rate), w.dst, 0)
			if err != nil {
				w.Reset()
				return nan, err
			}
			w.dst = next
		}
		w.pending = w.pending[:copy(w.pending, w.pending[consumed*ch:])]
		if consumed == 0 || produced == 0 {
			break
		}
	}
	return w.dst, nil
}

// Flush stores what the converter still holds back, padding the input with
// its last frame, so the track ends where the last written host frame did.
// The writer starts fresh afterwards.
func (w *Writer) Flush() error {
	defer w.Reset()
	if w.conv == nil || math.IsNaN(w.next) || len(w.last) == 0 {
		return nil
	}
	rate := w.store.SampleRate()
	ch := w.store.Channels()
	owed := int(math.Round((w.next - w.dst) * float64(rate)))
	if owed <= 0 {
		return nil
	}

	ratio := float64(w.hostRate) / float64(rate)
	pad := int(math.Ceil(float64(owed)*ratio)) + lookahead
	for range pad {
		w.pending = append(w.pending, w.last...)
	}
	w.out = grow(w.out, owed*ch)
	_, produced, err := w.conv.Convert(w.pending, w.out[:owed*ch], ratio, 0)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	if produced == 0 {
		return nil
	}
	_, err = w.store.SetData(w.buffer(w.out[:produced*ch], rate), w.dst, 0)
	return err
}

func (w *Writer) buffer(data []float32, rate int) *goaudio.Float32Buffer {
	return &goaudio.Float32Buffer{
		Format:         &goaudio.Format{NumChannels: w.store.Channels(), SampleRate: rate},
		Data:           data,
		SourceBitDepth: 32,
	}
}
