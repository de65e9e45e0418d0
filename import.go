// SPDX-License-Identifier: EPL-2.0

package audtrack

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"go.uber.org/zap"

	"github.com/ik5/audtrack/audio"
	"github.com/ik5/audtrack/internal/logger"
	"github.com/ik5/audtrack/timeline"
)

type importOptions struct {
	name     string
	rate     int
	channels int
	offset   float64
	log      *zap.Logger
}

type ImportOption func(*importOptions)

// WithName names the new track. ImportFile defaults to the file's base name.
func WithName(name string) ImportOption {
	return func(o *importOptions) { o.name = name }
}

// WithRate resamples the input to rate before storing it.
func WithRate(rate int) ImportOption {
	return func(o *importOptions) { o.rate = rate }
}

// WithChannels remixes the input to n channels before storing it.
func WithChannels(n int) ImportOption {
	return func(o *importOptions) { o.channels = n }
}

// WithOffset places the first imported frame at t seconds.
func WithOffset(t float64) ImportOption {
	return func(o *importOptions) { o.offset = t }
}

func WithLogger(l *zap.Logger) ImportOption {
	return func(o *importOptions) { o.log = l }
}

// Import drains src into a new track and closes src.
func Import(src audio.Source, opts ...ImportOption) (*timeline.Track, error) {
	o := importOptions{name: "Import"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Named("import")
	}
	if o.rate < 0 || o.channels < 0 {
		src.Close()
		return nil, fmt.Errorf("%w: rate %d channels %d", ErrInvalidRate, o.rate, o.channels)
	}

	if o.rate > 0 && o.rate != src.SampleRate() {
		src = audio.NewResampler(src, o.rate)
	}
	if o.channels > 0 && o.channels != src.Channels() {
		src = audio.NewChannelMixer(src, o.channels)
	}
	defer src.Close()

	tr, err := timeline.NewTrack(o.name, src.SampleRate(), src.Channels())
	if err != nil {
		return nil, err
	}

	ch := src.Channels()
	size := src.BufSize()
	size = max(size-size%ch, ch)
	buf := &goaudio.Float32Buffer{
		Data:   make([]float32, size),
		Format: &goaudio.Format{NumChannels: ch, SampleRate: src.SampleRate()},
	}

	t := o.offset
	data := buf.Data
	for {
		n, err := src.ReadSamples(data)
		n -= n % ch
		if n > 0 {
			buf.Data = data[:n]
			next, werr := tr.SetData(buf, t, 0)
			if werr != nil {
				tr.Close()
				return nil, fmt.Errorf("store at %.6fs: %w", t, werr)
			}
			t = next
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			tr.Close()
			return nil, fmt.Errorf("read source: %w", err)
		}
		if n == 0 {
			break
		}
	}

	if tr.Duration() == 0 {
		tr.Close()
		return nil, ErrEmptySource
	}
	o.log.Debug("imported",
		zap.String("track", tr.Name()),
		zap.Int("rate", tr.SampleRate()),
		zap.Int("channels", ch),
		zap.Float64("duration", tr.Duration()),
	)
	return tr, nil
}

// ImportFile decodes path with the decoder registered for its extension and
// imports it.
func ImportFile(path string, reg *audio.Registry, opts ...ImportOption) (*timeline.Track, error) {
	dec, _, err := reg.ForPath(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := dec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tr, err := Import(src, append([]ImportOption{WithName(name)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return tr, nil
}
