// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"fmt"

	"github.com/ik5/audtrack/timeline"
)

type EventKind int

const (
	StateChanged EventKind = iota
	CursorMoved
	Underrun
	Overrun
	TrackChanged
	TrackCreated
	DeviceChanged
	Failure
)

func (k EventKind) String() string {
	switch k {
	case StateChanged:
		return "state"
	case CursorMoved:
		return "cursor"
	case Underrun:
		return "underrun"
	case Overrun:
		return "overrun"
	case TrackChanged:
		return "track"
	case TrackCreated:
		return "track-created"
	case DeviceChanged:
		return "device"
	case Failure:
		return "failure"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }
func (s State) MarshalText() ([]byte, error)     { return []byte(s.String()), nil }

// Event reports something that changed since the previous tick. Only the
// fields relevant to Kind are set.
type Event struct {
	Kind      EventKind `json:"kind"`
	Direction Direction `json:"direction"`
	State     State     `json:"state"`
	Cursor    float64   `json:"cursor"`
	Count     int       `json:"count,omitempty"`
	TrackID   string    `json:"track_id,omitempty"`
	Version   uint64    `json:"version,omitempty"`
	Device    string    `json:"device,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// dirty collects what changed between flushes.
type dirty struct {
	state    [2]bool
	cursor   [2]bool
	underrun bool
	overrun  bool
	devices  bool
	created  []string
	failures []string
}

// trySend delivers v unless the channel is full.
func trySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// flush emits one event per dirty item. The caller holds e.mu.
func (e *Engine) flush() {
	d := &e.dirty
	for _, dir := range []Direction{Playback, Recording} {
		st := e.dir(dir)
		if d.state[dir] {
			trySend(e.events, Event{Kind: StateChanged, Direction: dir, State: st.state, Cursor: e.cursorOf(dir)})
		}
		if d.cursor[dir] && st.state != Stopped {
			trySend(e.events, Event{Kind: CursorMoved, Direction: dir, State: st.state, Cursor: e.cursorOf(dir)})
		}
	}
	if d.underrun {
		trySend(e.events, Event{Kind: Underrun, Direction: Playback, Count: e.play.underruns})
	}
	if d.overrun {
		trySend(e.events, Event{Kind: Overrun, Direction: Recording, Count: e.rec.overruns})
	}
	if d.devices {
		trySend(e.events, Event{Kind: DeviceChanged, Device: e.outID + " | " + e.inID})
	}
	for _, id := range d.created {
		trySend(e.events, Event{Kind: TrackCreated, Direction: Recording, TrackID: id})
	}
	for _, msg := range d.failures {
		trySend(e.events, Event{Kind: Failure, Message: msg})
	}
	e.flushTracks()
	*d = dirty{}
}

// flushTracks reports tracks of active groups whose version moved.
func (e *Engine) flushTracks() {
	seen := map[*timeline.Group]bool{}
	for _, st := range []*direction{&e.play, &e.rec} {
		if st.group == nil || seen[st.group] {
			continue
		}
		seen[st.group] = true
		for _, h := range st.group.Lanes() {
			tr, ok := e.reg.Track(h)
			if !ok {
				continue
			}
			v := tr.Version()
			if e.versions[tr.ID()] == v {
				continue
			}
			e.versions[tr.ID()] = v
			trySend(e.events, Event{Kind: TrackChanged, TrackID: tr.ID(), Version: v})
		}
	}
}
