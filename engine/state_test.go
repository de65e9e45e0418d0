// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseModes(t *testing.T) {
	t.Parallel()

	starts := map[string]StartMode{"": StartAuto, "Auto": StartAuto, "cursor": StartCursor, " region-start ": StartRegion}
	for in, want := range starts {
		got, err := ParseStartMode(in)
		if err != nil || got != want {
			t.Errorf("ParseStartMode(%q) = %v, %v", in, got, err)
		}
		if back, _ := ParseStartMode(got.String()); back != got {
			t.Errorf("%v does not round trip", got)
		}
	}
	if _, err := ParseStartMode("later"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParseStartMode(later) = %v", err)
	}

	if m, err := ParseStopMode("DUPLEX"); err != nil || m != StopDuplex {
		t.Errorf("ParseStopMode(DUPLEX) = %v, %v", m, err)
	}
	if _, err := ParseStopMode("never"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParseStopMode(never) = %v", err)
	}
}

func TestEventJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Event{Kind: StateChanged, Direction: Recording, State: Paused, Cursor: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"kind":"state","direction":"recording","state":"paused","cursor":1.5}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}
