// SPDX-License-Identifier: EPL-2.0

package audtrack

import (
	"fmt"
	"io"
	"math"

	"github.com/ik5/audtrack/formats/wav"
	"github.com/ik5/audtrack/stream"
)

const renderChunk = 4096

// TrackSource renders a time range of a store as an audio.Source at a host
// rate. Gaps are silent.
type TrackSource struct {
	rd       *stream.Reader
	channels int
	rate     int
	t0       float64
	total    int64
	done     int64
}

// NewTrackSource renders [t0, t0+dur) of st at rate.
func NewTrackSource(st stream.Store, t0, dur float64, rate int, opts ...stream.Option) (*TrackSource, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRate, rate)
	}
	if math.IsNaN(t0) || math.IsInf(t0, 0) || t0 < 0 || math.IsNaN(dur) || math.IsInf(dur, 0) || dur < 0 {
		return nil, fmt.Errorf("%w: %v+%v", ErrInvalidRange, t0, dur)
	}
	return &TrackSource{
		rd:       stream.NewReader(st, opts...),
		channels: st.Channels(),
		rate:     rate,
		t0:       t0,
		total:    int64(math.Round(dur * float64(rate))),
	}, nil
}

func (s *TrackSource) SampleRate() int { return s.rate }
func (s *TrackSource) Channels() int   { return s.channels }
func (s *TrackSource) BufSize() int    { return renderChunk * s.channels }
func (s *TrackSource) Frames() int64   { return s.total }
func (s *TrackSource) Close() error    { return s.rd.Close() }

func (s *TrackSource) ReadSamples(dst []float32) (int, error) {
	left := s.total - s.done
	if left <= 0 {
		return 0, io.EOF
	}
	frames := int(min(int64(len(dst)/s.channels), left))
	if frames == 0 {
		return 0, nil
	}

	t := s.t0 + float64(s.done)/float64(s.rate)
	n, err := s.rd.Read(dst, t, frames, s.rate)
	if err != nil {
		return 0, err
	}
	s.done += int64(n)
	if s.done >= s.total {
		return n * s.channels, io.EOF
	}
	return n * s.channels, nil
}

// ExportWAV writes [t0, t0+dur) of st to w as a WAV file at rate and bitDepth
// and returns the number of frames written.
func ExportWAV(w io.WriteSeeker, st stream.Store, t0, dur float64, rate, bitDepth int, opts ...stream.Option) (int, error) {
	src, err := NewTrackSource(st, t0, dur, rate, opts...)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	if src.Frames() == 0 {
		return 0, fmt.Errorf("%w: empty range", ErrInvalidRange)
	}
	frames, err := wav.Encode(w, src, bitDepth)
	if err != nil {
		return frames, fmt.Errorf("export wav: %w", err)
	}
	return frames, nil
}
