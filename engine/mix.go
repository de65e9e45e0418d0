// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"github.com/viterin/vek/vek32"
	"go.uber.org/zap"

	"github.com/ik5/audtrack/audio"
	"github.com/ik5/audtrack/stream"
	"github.com/ik5/audtrack/timeline"
)

// refill tops up the playback ring with mixed audio, never past the
// playback end.
func (e *Engine) refill() {
	d := &e.play
	for {
		n := min(d.ring.AvailableSpace()/channels, mixFrames)
		if d.limit >= 0 {
			n = min(n, int(d.limit-d.frames))
		}
		if n <= 0 {
			return
		}
		buf := e.mixBuf[:n*channels]
		e.mix(buf, d.cursor(e.rate), n)
		d.ring.Write(buf)
		d.frames += int64(n)
	}
}

// mix renders frames stereo frames of the playback group at host time t
// into dst.
func (e *Engine) mix(dst []float32, t float64, frames int) {
	clear(dst)
	g := e.play.group
	solo := g.Solo()
	duplex := e.rec.state != Stopped && e.rec.group == g

	for _, h := range g.Lanes() {
		if !solo.IsZero() && h != solo {
			continue
		}
		lane, ok := e.reg.Get(h)
		if !ok {
			continue
		}
		a := lane.Attributes()
		if a.Hidden || !lane.IsAudible() || (a.Muted && h != solo) {
			continue
		}
		if duplex && g.IsRecordTarget(h) {
			continue
		}
		tr := lane.CurrentTrack()
		if tr == nil {
			continue
		}
		e.mixLane(dst, tr, a, t, frames)
	}
}

func (e *Engine) mixLane(dst []float32, tr *timeline.Track, a timeline.Attributes, t float64, frames int) {
	ch := tr.Channels()
	e.laneBuf = growBuf(e.laneBuf, frames*ch)
	src := e.laneBuf[:frames*ch]
	if _, err := e.reader(tr).Read(src, t, frames, e.rate); err != nil {
		e.log.Debug("lane read failed", zap.String("track", tr.ID()), zap.Error(err))
		return
	}

	stereo := e.stereoBuf[:frames*channels]
	if ch == channels {
		copy(stereo, src)
	} else {
		audio.Remix(stereo, channels, src, ch)
	}

	left, right := panGains(a.Gain, a.Pan)
	if left == right {
		vek32.MulNumber_Inplace(stereo, left)
	} else {
		e.gainBuf = growBuf(e.gainBuf, frames*channels)
		gains := e.gainBuf[:frames*channels]
		for i := 0; i < len(gains); i += channels {
			gains[i], gains[i+1] = left, right
		}
		vek32.Mul_Inplace(stereo, gains)
	}
	vek32.Add_Inplace(dst, stereo)
}

// panGains applies pan to gain: a negative pan attenuates the right
// channel, a positive one the left.
func panGains(gain, pan float64) (left, right float32) {
	l, r := gain, gain
	switch {
	case pan < 0:
		r *= 1 + pan
	case pan > 0:
		l *= 1 - pan
	}
	return float32(l), float32(r)
}

func (e *Engine) reader(tr *timeline.Track) *stream.Reader {
	if r, ok := e.readers[tr]; ok {
		return r
	}
	r := stream.NewReader(tr, stream.WithConverter(e.cfg.Converter), stream.WithLogger(e.log))
	e.readers[tr] = r
	return r
}

// pruneReaders drops readers of closed tracks.
func (e *Engine) pruneReaders() {
	for tr, r := range e.readers {
		if tr.Closed() {
			_ = r.Close()
			delete(e.readers, tr)
		}
	}
}

func growBuf(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
