// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// ChannelMixer adapts a Source to a different channel count using Remix.
type ChannelMixer struct {
	src      Source
	channels int
	tmp      []float32
}

// NewMonoMixer averages every source channel into one.
func NewMonoMixer(src Source) *ChannelMixer {
	return NewChannelMixer(src, 1)
}

func NewChannelMixer(src Source, channels int) *ChannelMixer {
	return &ChannelMixer{
		src:      src,
		channels: channels,
		tmp:      make([]float32, 4096),
	}
}

func (m *ChannelMixer) SampleRate() int { return m.src.SampleRate() }
func (m *ChannelMixer) Channels() int   { return m.channels }
func (m *ChannelMixer) BufSize() int    { return m.src.BufSize() }

func (m *ChannelMixer) Close() error {
	if err := m.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (m *ChannelMixer) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	srcCh := m.src.Channels()
	if srcCh == m.channels {
		return m.src.ReadSamples(dst)
	}
	if len(dst)%m.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	frames := len(dst) / m.channels
	needed := frames * srcCh
	if cap(m.tmp) < needed {
		m.tmp = make([]float32, max(needed, 8192))
	}
	m.tmp = m.tmp[:needed]

	n, err := m.src.ReadSamples(m.tmp)
	if n == 0 {
		return 0, err
	}
	got := n / srcCh
	Remix(dst[:got*m.channels], m.channels, m.tmp[:got*srcCh], srcCh)

	return got * m.channels, err
}

// Remix converts interleaved src with srcCh channels into dst with dstCh
// channels. Down to mono averages all channels; up from mono duplicates;
// otherwise shared channels are copied and extra destination channels are
// zeroed. dst must hold as many frames as src.
func Remix(dst []float32, dstCh int, src []float32, srcCh int) {
	frames := len(src) / srcCh
	switch {
	case dstCh == srcCh:
		copy(dst, src[:frames*srcCh])
	case dstCh == 1 && srcCh == 2:
		DownmixMono(dst, src)
	case dstCh == 1:
		inv := 1 / float32(srcCh)
		for f := range frames {
			var sum float32
			for _, s := range src[f*srcCh : (f+1)*srcCh] {
				sum += s
			}
			dst[f] = sum * inv
		}
	case srcCh == 1:
		for f := range frames {
			for c := range dstCh {
				dst[f*dstCh+c] = src[f]
			}
		}
	default:
		shared := min(srcCh, dstCh)
		for f := range frames {
			d := dst[f*dstCh : (f+1)*dstCh]
			copy(d, src[f*srcCh:f*srcCh+shared])
			clear(d[shared:])
		}
	}
}

// DownmixMono sums each stereo frame of src and halves it into dst.
func DownmixMono(dst, src []float32) {
	for f := range len(src) / 2 {
		idx := f << 1
		dst[f] = (src[idx] + src[idx+1]) * 0.5
	}
}

// SplitStereo deinterleaves src into left and right.
func SplitStereo(left, right, src []float32) {
	for f := range len(src) / 2 {
		left[f] = src[f<<1]
		right[f] = src[f<<1+1]
	}
}
