// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ik5/audtrack/audio"
	"github.com/ik5/audtrack/stream"
	"github.com/ik5/audtrack/timeline"
)

// fanMode picks which part of the stereo input a target receives.
type fanMode int

const (
	fanAll fanMode = iota
	fanLeft
	fanRight
)

type target struct {
	track  *timeline.Track
	mode   fanMode
	writer *stream.Writer
}

// resolveTargets maps the record slots of g to tracks. Without slots a
// stereo track at the device rate is created, added to g and put in its
// left slot.
func (e *Engine) resolveTargets(g *timeline.Group) ([]target, error) {
	left, right := g.RecordSlots()
	if left.IsZero() && right.IsZero() {
		h, err := e.createRecordTrack(g)
		if err != nil {
			return nil, err
		}
		left = h
	}

	split := !left.IsZero() && !right.IsZero() && left != right
	slots := []struct {
		h    timeline.Handle
		mode fanMode
	}{{left, fanLeft}, {right, fanRight}}

	var targets []target
	for _, s := range slots {
		if s.h.IsZero() || (!split && len(targets) > 0) {
			continue
		}
		tr, err := e.recordTrack(s.h)
		if err != nil {
			e.closeTargets(targets)
			return nil, err
		}
		mode := fanAll
		if split {
			mode = s.mode
		}
		targets = append(targets, target{
			track:  tr,
			mode:   mode,
			writer: stream.NewWriter(tr, stream.WithConverter(e.cfg.Converter), stream.WithLogger(e.log)),
		})
	}
	return targets, nil
}

func (e *Engine) recordTrack(h timeline.Handle) (*timeline.Track, error) {
	lane, ok := e.reg.Get(h)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTarget, h)
	}
	tr := lane.CurrentTrack()
	if tr == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTarget, h)
	}
	if tr.Readonly() {
		return nil, fmt.Errorf("%w: %s", ErrReadonlyTarget, tr.Name())
	}
	return tr, nil
}

func (e *Engine) createRecordTrack(g *timeline.Group) (timeline.Handle, error) {
	e.created++
	tr, err := timeline.NewTrack(fmt.Sprintf("Recording %d", e.created), e.rate, channels)
	if err != nil {
		return timeline.Handle{}, fmt.Errorf("create record track: %w", err)
	}
	h := e.reg.Add(tr)
	g.Add(h)
	g.SetRecordSlots(h, timeline.Handle{})
	e.dirty.created = append(e.dirty.created, tr.ID())
	e.log.Info("record track created", zap.String("track", tr.Name()), zap.String("id", tr.ID()))
	return h, nil
}

// flushTargets stores the frames each writer's converter still holds.
func (e *Engine) flushTargets() error {
	var err error
	for _, t := range e.targets {
		if ferr := t.writer.Flush(); ferr != nil {
			err = errors.Join(err, fmt.Errorf("flush %s: %w", t.track.Name(), ferr))
		}
	}
	return err
}

func (e *Engine) closeTargets(targets []target) {
	for _, t := range targets {
		_ = t.writer.Close()
	}
}

// drain moves everything the input callback delivered into the targets,
// never past the recording end.
func (e *Engine) drain() {
	d := &e.rec
	for {
		n := min(d.ring.AvailableLength()/channels, mixFrames)
		if d.limit >= 0 {
			n = min(n, int(d.limit-d.frames))
		}
		if n <= 0 {
			return
		}
		buf := e.drainBuf[:n*channels]
		d.ring.Read(buf)
		e.fanout(buf, d.cursor(e.rate), n)
		d.frames += int64(n)
	}
}

// fanout stores the stereo frames in buf, recorded at host time t, into
// each target in the target's channel layout.
func (e *Engine) fanout(buf []float32, t float64, frames int) {
	split := false
	for _, tg := range e.targets {
		if tg.mode != fanAll {
			split = true
		}
	}
	if split {
		audio.SplitStereo(e.leftBuf[:frames], e.rightBuf[:frames], buf)
	}

	for _, tg := range e.targets {
		src, srcCh := buf, channels
		switch tg.mode {
		case fanLeft:
			src, srcCh = e.leftBuf[:frames], 1
		case fanRight:
			src, srcCh = e.rightBuf[:frames], 1
		}

		out := src
		if ch := tg.track.Channels(); ch != srcCh {
			e.fanBuf = growBuf(e.fanBuf, frames*ch)
			out = e.fanBuf[:frames*ch]
			audio.Remix(out, ch, src, srcCh)
		}
		if _, err := tg.writer.Write(out, t, e.rate); err != nil {
			e.fail(fmt.Sprintf("record into %s", tg.track.Name()), err)
		}
	}
}
