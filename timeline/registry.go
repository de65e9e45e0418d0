// SPDX-License-Identifier: EPL-2.0

package timeline

import (
	"fmt"
	"sync"
)

// Handle is a weak reference to a lane in a Registry. The zero Handle refers
// to nothing.
type Handle struct {
	index uint32
	gen   uint32
}

func (h Handle) IsZero() bool { return h.gen == 0 }

func (h Handle) String() string {
	if h.IsZero() {
		return "lane(nil)"
	}
	return fmt.Sprintf("lane(%d#%d)", h.index, h.gen)
}

type slot struct {
	lane Lane
	gen  uint32
}

// Registry is an arena of lanes. Removing a lane bumps its slot generation
// so handles to it stop resolving, even after the slot is reused.
type Registry struct {
	mu    sync.RWMutex
	slots []slot
	free  []uint32
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(l Lane) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.free); n > 0 {
		idx := r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[idx].lane = l
		return Handle{index: idx, gen: r.slots[idx].gen}
	}

	r.slots = append(r.slots, slot{lane: l, gen: 1})
	return Handle{index: uint32(len(r.slots) - 1), gen: 1}
}

func (r *Registry) Get(h Handle) (Lane, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(h)
}

func (r *Registry) get(h Handle) (Lane, bool) {
	if h.IsZero() || int(h.index) >= len(r.slots) {
		return nil, false
	}
	s := r.slots[h.index]
	if s.gen != h.gen || s.lane == nil {
		return nil, false
	}
	return s.lane, true
}

// Track resolves h to the lane's current track.
func (r *Registry) Track(h Handle) (*Track, bool) {
	l, ok := r.Get(h)
	if !ok {
		return nil, false
	}
	t := l.CurrentTrack()
	return t, t != nil
}

// Remove detaches the lane behind h and returns it. The lane is not closed.
func (r *Registry) Remove(h Handle) (Lane, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.get(h)
	if !ok {
		return nil, ErrStaleHandle
	}
	s := &r.slots[h.index]
	s.lane = nil
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	r.free = append(r.free, h.index)
	return l, nil
}

// Lookup finds a lane by ID.
func (r *Registry) Lookup(id string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, s := range r.slots {
		if s.lane != nil && s.lane.ID() == id {
			return Handle{index: uint32(i), gen: s.gen}, true
		}
	}
	return Handle{}, false
}

// Handles lists live lanes in slot order.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Handle
	for i, s := range r.slots {
		if s.lane != nil {
			out = append(out, Handle{index: uint32(i), gen: s.gen})
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots) - len(r.free)
}
