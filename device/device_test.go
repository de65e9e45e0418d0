// SPDX-License-Identifier: EPL-2.0

package device

import (
	"errors"
	"testing"
)

func TestIdentity(t *testing.T) {
	t.Parallel()

	if got := Identity("ALSA", "USB Audio"); got != "ALSA: USB Audio" {
		t.Errorf("Identity = %q", got)
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	devs := NullDevices()
	if d, ok := Find(devs, "Null: Input"); !ok || d.Index != 1 {
		t.Errorf("Find(Null: Input) = %+v %v", d, ok)
	}
	for _, id := range []string{"", DefaultID, "ALSA: gone"} {
		if _, ok := Find(devs, id); ok {
			t.Errorf("Find(%q) matched", id)
		}
	}
}

func TestNullLifecycle(t *testing.T) {
	t.Parallel()

	n := NewNull()
	if _, err := n.Devices(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Devices before Init: %v", err)
	}
	if err := n.Init(); err != nil {
		t.Fatal(err)
	}

	var calls int
	s, err := n.OpenOutput(StreamConfig{Device: NoDevice, SampleRate: 48000, Channels: 2}, func(out []float32) {
		calls++
		for i := range out {
			out[i] = 0.5
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	ns := n.Output()
	if ns == nil || Stream(ns) != s {
		t.Fatal("Output() does not return the opened stream")
	}

	if got := ns.Pump(4); got != nil {
		t.Error("pump before Start ran the callback")
	}
	s.Start()
	got := ns.Pump(4)
	if len(got) != 8 || got[7] != 0.5 {
		t.Errorf("Pump = %v", got)
	}

	s.Stop()
	s.Close()
	if ns.Pump(4) != nil || calls != 1 {
		t.Errorf("callback ran after Stop; calls = %d", calls)
	}
	if err := s.Start(); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Start after Close: %v", err)
	}
}

func TestNullInput(t *testing.T) {
	t.Parallel()

	n := NewNull()
	n.Init()
	var got []float32
	s, err := n.OpenInput(StreamConfig{Device: 1, SampleRate: 48000, Channels: 2}, func(in []float32) {
		got = append(got, in...)
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	if !n.Input().Feed([]float32{1, 2}) || len(got) != 2 {
		t.Errorf("Feed delivered %v", got)
	}
}

func TestNullFailures(t *testing.T) {
	t.Parallel()

	n := NewNull()
	n.Init()
	cfg := StreamConfig{Device: NoDevice, SampleRate: 48000, Channels: 2}

	boom := errors.New("boom")
	n.FailOpen = boom
	if _, err := n.OpenOutput(cfg, func([]float32) {}); !errors.Is(err, boom) {
		t.Errorf("FailOpen: %v", err)
	}

	n.FailStart = boom
	s, _ := n.OpenOutput(cfg, func([]float32) {})
	if err := s.Start(); !errors.Is(err, boom) {
		t.Errorf("FailStart: %v", err)
	}

	if _, err := n.OpenOutput(StreamConfig{Device: 7, SampleRate: 48000, Channels: 2}, nil); !errors.Is(err, ErrBadDevice) {
		t.Errorf("bad device: %v", err)
	}
	if _, err := n.OpenOutput(StreamConfig{SampleRate: 0, Channels: 2}, nil); !errors.Is(err, ErrBadConfig) {
		t.Errorf("bad config: %v", err)
	}
}

func TestNullSetDevices(t *testing.T) {
	t.Parallel()

	n := NewNull()
	n.Init()
	n.SetDevices([]Info{{HostAPI: "ALSA", Name: "hw:1"}})
	devs, _ := n.Devices()
	if len(devs) != 1 || devs[0].ID != "ALSA: hw:1" || devs[0].Index != 0 {
		t.Errorf("devices = %+v", devs)
	}
}
