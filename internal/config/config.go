// SPDX-License-Identifier: EPL-2.0

// Package config loads audtrack settings from YAML, a .env file and
// AUDTRACK_* environment variables, in that order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ik5/audtrack/audio"
	"github.com/ik5/audtrack/audio/sinc"
	"github.com/ik5/audtrack/device"
	"github.com/ik5/audtrack/engine"
	"github.com/ik5/audtrack/internal/logger"
)

var (
	ErrUnknownConverter = errors.New("unknown converter")
	ErrUnknownBackend   = errors.New("unknown backend")
	ErrInvalid          = errors.New("invalid configuration")
)

// Backends names the device backends a config may select.
var Backends = []string{"portaudio", "oto", "null"}

type Config struct {
	Audio   Audio         `yaml:"audio"`
	Log     logger.Config `yaml:"log"`
	Control Control       `yaml:"control"`
}

type Audio struct {
	Backend         string        `yaml:"backend"`
	SampleRate      int           `yaml:"sample_rate"`
	FramesPerBuffer int           `yaml:"frames_per_buffer"`
	RingSeconds     float64       `yaml:"ring_seconds"`
	RefillInterval  time.Duration `yaml:"refill_interval"`
	WarmupTicks     int           `yaml:"warmup_ticks"`
	Converter       string        `yaml:"converter"`
	StartMode       string        `yaml:"start_mode"`
	StopMode        string        `yaml:"stop_mode"`
	OutputDevice    string        `yaml:"output_device"`
	InputDevice     string        `yaml:"input_device"`
}

// Control configures the HTTP control surface.
type Control struct {
	Listen string `yaml:"listen"`
	// Origins lists websocket origins accepted besides the server's own.
	Origins []string `yaml:"origins"`
}

func Default() *Config {
	return &Config{
		Audio: Audio{
			Backend:        "portaudio",
			SampleRate:     48000,
			RingSeconds:    0.5,
			RefillInterval: 50 * time.Millisecond,
			WarmupTicks:    3,
			Converter:      "cubic",
			StartMode:      "auto",
			StopMode:       "auto",
			OutputDevice:   device.DefaultID,
			InputDevice:    device.DefaultID,
		},
		Log: logger.Config{
			Level:      logger.InfoLevel,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Console:    true,
		},
		Control: Control{Listen: "127.0.0.1:8740"},
	}
}

// Load starts from Default, overlays the YAML file at path when it exists,
// then the .env file next to the working directory and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Debug("config file not found, using defaults", zap.String("path", path))
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// godotenv never overrides variables already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("load .env", zap.Error(err))
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	a := &c.Audio
	a.Backend = getEnv("AUDTRACK_BACKEND", a.Backend)
	a.SampleRate = getEnvInt("AUDTRACK_SAMPLE_RATE", a.SampleRate)
	a.FramesPerBuffer = getEnvInt("AUDTRACK_FRAMES_PER_BUFFER", a.FramesPerBuffer)
	a.Converter = getEnv("AUDTRACK_CONVERTER", a.Converter)
	a.OutputDevice = getEnv("AUDTRACK_OUTPUT_DEVICE", a.OutputDevice)
	a.InputDevice = getEnv("AUDTRACK_INPUT_DEVICE", a.InputDevice)
	a.StartMode = getEnv("AUDTRACK_START_MODE", a.StartMode)
	a.StopMode = getEnv("AUDTRACK_STOP_MODE", a.StopMode)
	c.Log.Level = logger.Level(getEnv("AUDTRACK_LOG_LEVEL", string(c.Log.Level)))
	c.Log.OutputPath = getEnv("AUDTRACK_LOG_FILE", c.Log.OutputPath)
	c.Control.Listen = getEnv("AUDTRACK_LISTEN", c.Control.Listen)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func (c *Config) Validate() error {
	a := c.Audio
	if a.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate %d", ErrInvalid, a.SampleRate)
	}
	if a.RingSeconds <= 0 || a.RefillInterval <= 0 || a.WarmupTicks < 0 || a.FramesPerBuffer < 0 {
		return fmt.Errorf("%w: ring_seconds, refill_interval, warmup_ticks and frames_per_buffer must not be negative", ErrInvalid)
	}
	if !slices.Contains(Backends, a.Backend) {
		return fmt.Errorf("%w: %q", ErrUnknownBackend, a.Backend)
	}
	if _, err := ConverterFactory(a.Converter); err != nil {
		return err
	}
	if _, err := engine.ParseStartMode(a.StartMode); err != nil {
		return err
	}
	if _, err := engine.ParseStopMode(a.StopMode); err != nil {
		return err
	}
	return nil
}

// ConverterFactory resolves a converter name: "cubic" or one of the
// libsamplerate kinds ("sinc-best", "sinc-medium", "sinc-fastest", "zoh",
// "linear").
func ConverterFactory(name string) (audio.ConverterFactory, error) {
	if name == "" || name == "cubic" {
		return audio.CubicFactory, nil
	}
	kind, ok := sinc.KindByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConverter, name)
	}
	return sinc.Factory(kind), nil
}

// Engine converts the audio section into an engine configuration.
func (a Audio) Engine() (engine.Config, error) {
	conv, err := ConverterFactory(a.Converter)
	if err != nil {
		return engine.Config{}, err
	}
	start, err := engine.ParseStartMode(a.StartMode)
	if err != nil {
		return engine.Config{}, err
	}
	stop, err := engine.ParseStopMode(a.StopMode)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		SampleRate:      a.SampleRate,
		FramesPerBuffer: a.FramesPerBuffer,
		RingSeconds:     a.RingSeconds,
		RefillInterval:  a.RefillInterval,
		WarmupTicks:     a.WarmupTicks,
		StartMode:       start,
		StopMode:        stop,
		OutputDevice:    a.OutputDevice,
		InputDevice:     a.InputDevice,
		Converter:       conv,
	}, nil
}

// Save writes c to path through a temporary file so readers never see a
// partial document.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".audtrack-*.yaml")
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Watch calls fn with the reloaded config whenever the file at path is
// written or replaced, until ctx is done. Configs that fail to load are
// logged and skipped.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and Save replace the file by rename.
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log := logger.Named("config")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				log.Warn("reload config", zap.String("path", path), zap.Error(err))
				continue
			}
			log.Info("config reloaded", zap.String("path", path))
			fn(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("config watcher", zap.Error(err))
		}
	}
}
