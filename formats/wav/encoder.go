// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/ik5/audtrack/audio"
	"github.com/ik5/audtrack/formats/internal/pcm"
)

const encodeChunk = 4096

// Encode writes every sample src yields as integer PCM of bitDepth bits
// and returns the number of frames written. Samples are clipped to [-1, 1].
func Encode(w io.WriteSeeker, src audio.Source, bitDepth int) (int, error) {
	if !validDepth(bitDepth) {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}
	ch := src.Channels()
	enc := gowav.NewEncoder(w, src.SampleRate(), bitDepth, ch, formatPCM)

	// 8-bit WAV is unsigned.
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	buf := make([]float32, encodeChunk*ch)
	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: ch, SampleRate: src.SampleRate()},
		SourceBitDepth: bitDepth,
	}
	frames := 0
	for {
		n, err := src.ReadSamples(buf)
		n -= n % ch
		if n > 0 {
			pcm.Fill(ib, buf[:n], bitDepth, offset)
			if werr := enc.Write(ib); werr != nil {
				return frames, fmt.Errorf("write wav: %w", werr)
			}
			frames += n / ch
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return frames, fmt.Errorf("read source: %w", err)
		}
		if n == 0 {
			break
		}
	}
	if err := enc.Close(); err != nil {
		return frames, fmt.Errorf("finish wav: %w", err)
	}
	return frames, nil
}
