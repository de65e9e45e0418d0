// SPDX-License-Identifier: EPL-2.0

package timeline

import (
	"errors"
	"testing"
)

func newTrack(t *testing.T, name string, channels int) *Track {
	t.Helper()
	tr, err := NewTrack(name, rate, channels)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	return tr
}

func TestRegistryStaleHandles(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := newTrack(t, "a", 2)
	ha := r.Add(a)

	if l, ok := r.Get(ha); !ok || l != Lane(a) {
		t.Fatal("fresh handle does not resolve")
	}
	if tr, ok := r.Track(ha); !ok || tr != a {
		t.Error("Track should resolve to the track itself")
	}

	if _, err := r.Remove(ha); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Get(ha); ok {
		t.Error("removed handle still resolves")
	}
	if _, err := r.Remove(ha); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("double remove: %v", err)
	}

	// The slot is reused with a new generation.
	b := newTrack(t, "b", 1)
	hb := r.Add(b)
	if hb.index != ha.index || hb.gen == ha.gen {
		t.Errorf("slot reuse: old %v new %v", ha, hb)
	}
	if _, ok := r.Get(ha); ok {
		t.Error("stale handle resolves to the slot's new lane")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	if _, ok := r.Get(Handle{}); ok {
		t.Error("zero handle resolved")
	}
}

func TestRegistryLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a, b := newTrack(t, "a", 1), newTrack(t, "b", 1)
	r.Add(a)
	hb := r.Add(b)

	if h, ok := r.Lookup(b.ID()); !ok || h != hb {
		t.Errorf("Lookup(b) = %v %v", h, ok)
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("Lookup of unknown id succeeded")
	}
	if n := len(r.Handles()); n != 2 {
		t.Errorf("Handles = %d, want 2", n)
	}
}

func TestSmartTrack(t *testing.T) {
	t.Parallel()

	st := NewSmartTrack("takes")
	if st.IsAudible() || st.CurrentTrack() != nil {
		t.Error("smart track without takes must not be audible")
	}

	t1, t2 := newTrack(t, "take 1", 2), newTrack(t, "take 2", 2)
	st.AddTake(t1)
	st.AddTake(t2)
	if st.CurrentTrack() != t1 {
		t.Error("first take should be selected")
	}
	if err := st.Select(1); err != nil || st.CurrentTrack() != t2 {
		t.Errorf("Select(1): %v", err)
	}
	if err := st.Select(5); !errors.Is(err, ErrNoTake) {
		t.Errorf("Select(5): %v", err)
	}

	if _, err := st.RemoveTake(1); err != nil {
		t.Fatal(err)
	}
	if st.Selected() != 0 || st.CurrentTrack() != t1 {
		t.Errorf("selection after removing selected take = %d", st.Selected())
	}

	var lane Lane = st
	if !lane.IsAudible() {
		t.Error("smart track with an open take should be audible")
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	if !t1.Closed() || st.IsAudible() {
		t.Error("Close must close the takes")
	}
}

func TestAttributes(t *testing.T) {
	t.Parallel()

	tr := newTrack(t, "a", 2)
	if got := tr.Attributes(); got != DefaultAttributes {
		t.Errorf("defaults = %+v", got)
	}
	tr.SetPan(-3)
	tr.SetGain(0.5)
	tr.SetMuted(true)
	a := tr.Attributes()
	if a.Pan != -1 || a.Gain != 0.5 || !a.Muted {
		t.Errorf("attributes = %+v", a)
	}
	tr.SetHidden(true)
	if !tr.Hidden() {
		t.Error("Hidden not set")
	}
}

func TestGroup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ha := r.Add(newTrack(t, "a", 1))
	hb := r.Add(newTrack(t, "b", 1))

	g := NewGroup("main")
	g.Add(ha)
	g.Add(hb)
	g.Add(ha)
	if n := len(g.Lanes()); n != 2 {
		t.Fatalf("lanes = %d, want 2", n)
	}

	g.SetRecordSlots(ha, hb)
	g.SetSolo(hb)
	if !g.IsRecordTarget(ha) || !g.IsRecordTarget(hb) {
		t.Error("record targets not reported")
	}

	g.Remove(hb)
	left, right := g.RecordSlots()
	if left != ha || !right.IsZero() || !g.Solo().IsZero() {
		t.Errorf("slots after remove: %v %v solo %v", left, right, g.Solo())
	}

	g.SetRegionStart(2.5)
	if g.RegionStart() != 2.5 {
		t.Error("region start not kept")
	}
}
