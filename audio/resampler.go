// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"
)

// Resampler streams from src to a target sample rate. It is a pull-style
// Source built on a CubicConverter, so it keeps interpolation state across
// ReadSamples calls and preserves the channel count.
type Resampler struct {
	src      Source
	dstRate  int
	ratio    float64 // source frames per output frame
	channels int

	conv    *CubicConverter
	pending []float32 // source samples not yet consumed by conv
	srcBuf  []float32
	eof     bool
	padded  bool
}

func NewResampler(src Source, dstRate int) *Resampler {
	channels := src.Channels()
	bufSize := src.BufSize()
	if bufSize <= 0 {
		bufSize = 4096
	}
	bufSize -= bufSize % channels
	if bufSize == 0 {
		bufSize = channels
	}

	return &Resampler{
		src:      src,
		dstRate:  dstRate,
		ratio:    float64(src.SampleRate()) / float64(dstRate),
		channels: channels,
		conv:     NewCubicConverter(channels),
		srcBuf:   make([]float32, bufSize),
	}
}

func (r *Resampler) SampleRate() int { return r.dstRate }
func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) BufSize() int    { return r.src.BufSize() }

func (r *Resampler) Close() error {
	if err := r.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// ReadSamples produces dst samples at the target rate. dst length must be a
// multiple of the channel count.
func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	framesNeeded := len(dst) / r.channels
	written := 0

	for written < framesNeeded {
		if !r.eof && len(r.pending) < len(r.srcBuf) {
			n, err := r.src.ReadSamples(r.srcBuf)
			r.pending = append(r.pending, r.srcBuf[:n]...)
			if err == io.EOF {
				r.eof = true
			} else if err != nil {
				return written * r.channels, fmt.Errorf("%w", err)
			}
		}

		// The cubic kernel looks two frames ahead; repeat the final frame so
		// the tail of the source is emitted too.
		if r.eof && !r.padded && r.ratio != 1 && len(r.pending) >= r.channels {
			last := r.pending[len(r.pending)-r.channels:]
			for range historyFrames - 1 {
				r.pending = append(r.pending, last...)
			}
			r.padded = true
		}

		consumed, produced, err := r.conv.Convert(r.pending, dst[written*r.channels:], r.ratio, 0)
		if err != nil {
			return written * r.channels, fmt.Errorf("%w", err)
		}
		r.pending = append(r.pending[:0], r.pending[consumed*r.channels:]...)
		written += produced

		if produced == 0 && consumed == 0 && r.eof {
			break
		}
	}

	if r.eof && written < framesNeeded {
		return written * r.channels, io.EOF
	}
	return written * r.channels, nil
}
