// SPDX-License-Identifier: EPL-2.0

package timeline

import (
	"math"
	"sync"
)

// Lane is anything the engine can mix or record into.
type Lane interface {
	ID() string
	Name() string
	Hidden() bool
	Scale() float64
	Zero() float64
	// IsAudible reports whether the lane currently has audio to offer.
	IsAudible() bool
	// CurrentTrack returns the track holding the lane's audio, or nil.
	CurrentTrack() *Track
	Attributes() Attributes
	Close() error
}

// Attributes are the playback and display settings of a lane.
type Attributes struct {
	Gain   float64
	Pan    float64
	Muted  bool
	Hidden bool
	Scale  float64
	Zero   float64
}

// DefaultAttributes is unity gain, centered, visible.
var DefaultAttributes = Attributes{Gain: 1, Scale: 1}

type attrs struct {
	mu sync.RWMutex
	a  Attributes
}

func (l *attrs) Attributes() Attributes {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.a
}

func (l *attrs) SetAttributes(a Attributes) {
	a.Pan = clampPan(a.Pan)
	l.mu.Lock()
	l.a = a
	l.mu.Unlock()
}

func (l *attrs) update(fn func(a *Attributes)) {
	l.mu.Lock()
	fn(&l.a)
	l.mu.Unlock()
}

func (l *attrs) Hidden() bool  { return l.Attributes().Hidden }
func (l *attrs) Scale() float64 { return l.Attributes().Scale }
func (l *attrs) Zero() float64  { return l.Attributes().Zero }

func (l *attrs) SetGain(g float64)  { l.update(func(a *Attributes) { a.Gain = g }) }
func (l *attrs) SetPan(p float64)   { l.update(func(a *Attributes) { a.Pan = clampPan(p) }) }
func (l *attrs) SetMuted(m bool)    { l.update(func(a *Attributes) { a.Muted = m }) }
func (l *attrs) SetHidden(h bool)   { l.update(func(a *Attributes) { a.Hidden = h }) }
func (l *attrs) SetScale(s float64) { l.update(func(a *Attributes) { a.Scale = s }) }
func (l *attrs) SetZero(z float64)  { l.update(func(a *Attributes) { a.Zero = z }) }

func clampPan(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return max(-1, min(1, p))
}
