// SPDX-License-Identifier: EPL-2.0

// Package pcm adapts the go-audio integer decoders to audio.Source.
package pcm

import (
	"bytes"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"

	"github.com/ik5/audtrack/utils"
)

// Reader is the part of the go-audio wav and aiff decoders a Source needs.
type Reader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

const defaultBufSize = 4096

// Source normalizes integer PCM into float32 samples in [-1, 1].
type Source struct {
	dec      Reader
	rate     int
	channels int
	bitDepth int
	// offset is added before scaling; 8-bit WAV is unsigned.
	offset int
	buf    *goaudio.IntBuffer
}

// NewSource wraps dec. unsigned8 marks 8-bit data as unsigned.
func NewSource(dec Reader, bitDepth int, unsigned8 bool) (*Source, error) {
	f := dec.Format()
	if f == nil || f.NumChannels < 1 || f.SampleRate < 1 {
		return nil, fmt.Errorf("invalid format %+v", f)
	}
	s := &Source{
		dec:      dec,
		rate:     f.SampleRate,
		channels: f.NumChannels,
		bitDepth: bitDepth,
	}
	if unsigned8 && bitDepth == 8 {
		s.offset = -128
	}
	return s, nil
}

func (s *Source) SampleRate() int { return s.rate }
func (s *Source) Channels() int   { return s.channels }
func (s *Source) BitDepth() int   { return s.bitDepth }
func (s *Source) Close() error    { return nil }

func (s *Source) BufSize() int {
	if s.buf != nil {
		return cap(s.buf.Data)
	}
	return defaultBufSize
}

// ReadSamples returns 0, io.EOF once the decoder has nothing left.
func (s *Source) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if s.buf == nil || cap(s.buf.Data) < len(dst) {
		s.buf = &goaudio.IntBuffer{Data: make([]int, len(dst)), Format: s.dec.Format()}
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.buf)
	for i, v := range s.buf.Data[:n] {
		dst[i] = utils.PCMToFloat(v+s.offset, s.bitDepth)
	}
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Seekable returns r as an io.ReadSeeker, buffering it in memory when it
// cannot seek. The go-audio decoders need to seek between chunks.
func Seekable(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// Fill converts float samples into buf.Data as integers of bitDepth bits,
// growing it as needed. offset is added after conversion.
func Fill(buf *goaudio.IntBuffer, samples []float32, bitDepth, offset int) {
	if cap(buf.Data) < len(samples) {
		buf.Data = make([]int, len(samples))
	}
	buf.Data = buf.Data[:len(samples)]
	for i, v := range samples {
		buf.Data[i] = utils.FloatToPCM(v, bitDepth) + offset
	}
}
