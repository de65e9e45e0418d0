// SPDX-License-Identifier: EPL-2.0

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ik5/audtrack/device"
	"github.com/ik5/audtrack/formats/wav"
	"github.com/ik5/audtrack/internal/audiotest"
)

func writeWAV(t *testing.T, path string, rate, channels, frames int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := wav.Encode(f, audiotest.NewSineSource(rate, channels, frames, 440), 16); err != nil {
		t.Fatal(err)
	}
}

func run(config string, args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--config", config, "--backend", "null"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func execute(t *testing.T, args ...string) string {
	t.Helper()

	out, err := run(filepath.Join(t.TempDir(), "none.yaml"), args...)
	if err != nil {
		t.Fatalf("audtrack %v: %v", args, err)
	}
	return out
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")
	writeWAV(t, in, 44100, 2, 44100)

	execute(t, "convert", in, out, "--rate", "8000", "--channels", "1", "--bits", "24")

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	src, err := wav.Decoder{}.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if src.SampleRate() != 8000 || src.Channels() != 1 {
		t.Errorf("converted format = %d Hz %d ch, want 8000 Hz 1 ch", src.SampleRate(), src.Channels())
	}
}

func TestInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 22050, 1, 100)

	got := execute(t, "info", path)
	if !strings.Contains(got, "wav, 22050 Hz, 1 ch, 16-bit") {
		t.Errorf("info output = %q", got)
	}
}

func TestDevicesNull(t *testing.T) {
	got := execute(t, "devices")
	if !strings.HasPrefix(got, "INDEX") {
		t.Errorf("devices output = %q", got)
	}
}

func TestPlayStopsAtEnd(t *testing.T) {
	null := device.NewNull()
	newNull = func() *device.Null { return null }
	t.Cleanup(func() { newNull = device.NewNull })

	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	writeWAV(t, path, 48000, 2, 4800)

	// Stand in for the audio device clock.
	done := make(chan struct{})
	defer close(done)
	go func() {
		tick := time.NewTicker(time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
			}
			if s := null.Output(); s != nil {
				s.Pump(1024)
			}
		}
	}()

	errc := make(chan error, 1)
	go func() {
		_, err := run(filepath.Join(dir, "none.yaml"), "play", path)
		errc <- err
	}()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("play: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("play without --duration kept running past the end of the file")
	}
}

func TestPlayStartPastEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 48000, 1, 480)

	_, err := run(filepath.Join(t.TempDir(), "none.yaml"), "play", path, "--start", "5")
	if !errors.Is(err, errNothingToPlay) {
		t.Errorf("err = %v, want %v", err, errNothingToPlay)
	}
	playOpts.start = 0
}
