// SPDX-License-Identifier: EPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ik5/audtrack/engine"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Audio.SampleRate != 48000 || cfg.Audio.Converter != "cubic" || cfg.Audio.OutputDevice != "default" {
		t.Errorf("defaults = %+v", cfg.Audio)
	}
	if cfg.Audio.RefillInterval != 50*time.Millisecond || cfg.Audio.WarmupTicks != 3 {
		t.Errorf("timing defaults = %v, %d", cfg.Audio.RefillInterval, cfg.Audio.WarmupTicks)
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "audtrack.yaml")
	doc := `
audio:
  backend: "null"
  sample_rate: 44100
  refill_interval: 20ms
  converter: sinc-fastest
  stop_mode: duplex
  output_device: "ALSA: USB"
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("AUDTRACK_LISTEN=:9999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv sets the variable for the whole process.
	t.Cleanup(func() { os.Unsetenv("AUDTRACK_LISTEN") })
	t.Setenv("AUDTRACK_SAMPLE_RATE", "96000")
	t.Setenv("AUDTRACK_INPUT_DEVICE", "ALSA: Mic")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	a := cfg.Audio
	if a.Backend != "null" || a.SampleRate != 96000 || a.RefillInterval != 20*time.Millisecond {
		t.Errorf("audio = %+v", a)
	}
	if a.OutputDevice != "ALSA: USB" || a.InputDevice != "ALSA: Mic" {
		t.Errorf("devices = %q, %q", a.OutputDevice, a.InputDevice)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Control.Listen != ":9999" {
		t.Errorf("listen = %q, want the .env value", cfg.Control.Listen)
	}

	ec, err := a.Engine()
	if err != nil {
		t.Fatal(err)
	}
	if ec.StopMode != engine.StopDuplex || ec.SampleRate != 96000 || ec.Converter == nil {
		t.Errorf("engine config = %+v", ec)
	}
}

func TestLoadRejects(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := []struct {
		name string
		env  string
		val  string
		want error
	}{
		{"backend", "AUDTRACK_BACKEND", "jack", ErrUnknownBackend},
		{"converter", "AUDTRACK_CONVERTER", "magic", ErrUnknownConverter},
		{"start mode", "AUDTRACK_START_MODE", "later", engine.ErrUnknownMode},
		{"rate", "AUDTRACK_SAMPLE_RATE", "-1", ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			if _, err := Load(""); !errors.Is(err, tt.want) {
				t.Errorf("Load = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "audtrack.yaml")
	cfg := Default()
	cfg.Audio.Backend = "null"
	cfg.Audio.OutputDevice = "Null: Output"
	cfg.Audio.RefillInterval = 25 * time.Millisecond
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Audio != cfg.Audio {
		t.Errorf("loaded %+v, saved %+v", got.Audio, cfg.Audio)
	}
}

func TestWatchReloads(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "audtrack.yaml")
	cfg := Default()
	cfg.Audio.Backend = "null"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { reloaded <- c })
	}()

	// Keep rewriting until the watcher is up and reports the change.
	cfg.Audio.SampleRate = 44100
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case c := <-reloaded:
			if c.Audio.SampleRate != 44100 {
				t.Fatalf("reloaded rate %d", c.Audio.SampleRate)
			}
			cancel()
			if err := <-done; !errors.Is(err, context.Canceled) {
				t.Errorf("Watch = %v", err)
			}
			return
		case <-ticker.C:
			if err := cfg.Save(path); err != nil {
				t.Fatal(err)
			}
		case <-ctx.Done():
			t.Fatal("no reload observed")
		}
	}
}
