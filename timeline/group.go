// SPDX-License-Identifier: EPL-2.0

package timeline

import (
	"slices"
	"sync"
)

// Group is a set of lanes transported together. Recording lands in the
// lanes named by the left and right record slots.
type Group struct {
	mu          sync.RWMutex
	name        string
	lanes       []Handle
	recordLeft  Handle
	recordRight Handle
	solo        Handle
	regionStart float64
}

func NewGroup(name string) *Group {
	return &Group{name: name}
}

func (g *Group) Name() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.name
}

// Add appends h unless it is already a member.
func (g *Group) Add(h Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h.IsZero() || slices.Contains(g.lanes, h) {
		return
	}
	g.lanes = append(g.lanes, h)
}

// Remove drops h from the group along with any slot pointing at it.
func (g *Group) Remove(h Handle) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := slices.Index(g.lanes, h)
	if i < 0 {
		return false
	}
	g.lanes = slices.Delete(g.lanes, i, i+1)
	if g.recordLeft == h {
		g.recordLeft = Handle{}
	}
	if g.recordRight == h {
		g.recordRight = Handle{}
	}
	if g.solo == h {
		g.solo = Handle{}
	}
	return true
}

func (g *Group) Lanes() []Handle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.lanes)
}

// SetRecordSlots picks the recording targets. Left alone takes the whole
// input; left and right set to different lanes split the input channels.
func (g *Group) SetRecordSlots(left, right Handle) {
	g.mu.Lock()
	g.recordLeft, g.recordRight = left, right
	g.mu.Unlock()
}

func (g *Group) RecordSlots() (left, right Handle) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.recordLeft, g.recordRight
}

// IsRecordTarget reports whether h is one of the record slots.
func (g *Group) IsRecordTarget(h Handle) bool {
	if h.IsZero() {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.recordLeft == h || g.recordRight == h
}

// SetSolo makes h the only lane heard. The zero Handle clears solo.
func (g *Group) SetSolo(h Handle) {
	g.mu.Lock()
	g.solo = h
	g.mu.Unlock()
}

func (g *Group) Solo() Handle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.solo
}

func (g *Group) SetRegionStart(t float64) {
	g.mu.Lock()
	g.regionStart = t
	g.mu.Unlock()
}

func (g *Group) RegionStart() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.regionStart
}
