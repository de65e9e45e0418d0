// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
)

// fakeMP3 serves int16 samples as little-endian bytes, at most step bytes per Read.
type fakeMP3 struct {
	data []byte
	step int
}

func newFakeMP3(step int, samples ...int16) *fakeMP3 {
	var b bytes.Buffer
	for _, s := range samples {
		binary.Write(&b, binary.LittleEndian, s)
	}
	return &fakeMP3{data: b.Bytes(), step: step}
}

func (f *fakeMP3) SampleRate() int { return 44100 }
func (f *fakeMP3) Length() int64   { return int64(len(f.data)) }

func (f *fakeMP3) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p[:min(len(p), f.step)], f.data)
	f.data = f.data[n:]
	return n, nil
}

func readAll(t *testing.T, s *source, size int) []float32 {
	t.Helper()

	var out []float32
	buf := make([]float32, size)
	for range 1000 {
		n, err := s.ReadSamples(buf)
		if n%channels != 0 {
			t.Fatalf("ReadSamples() returned %d samples, not whole frames", n)
		}
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}
	t.Fatal("source never reached EOF")
	return nil
}

func TestReadSamples(t *testing.T) {
	t.Parallel()

	samples := []int16{16384, -16384, 32767, -32768, 0, 8192}
	want := []float32{0.5, -0.5, 32767.0 / 32768, -1, 0, 0.25}

	tests := []struct {
		name string
		step int
		size int
	}{
		{name: "single read", step: 1 << 10, size: 64},
		{name: "odd byte reads", step: 3, size: 64},
		{name: "one frame buffer", step: 5, size: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := &source{dec: newFakeMP3(tt.step, samples...)}
			got := readAll(t, s, tt.size)
			if len(got) != len(want) {
				t.Fatalf("got %d samples, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestSourceInfo(t *testing.T) {
	t.Parallel()

	s := &source{dec: newFakeMP3(16, 1, 2, 3, 4, 5, 6)}
	if s.Channels() != 2 || s.SampleRate() != 44100 {
		t.Errorf("format = %d Hz %d ch", s.SampleRate(), s.Channels())
	}
	if s.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", s.Frames())
	}
	if s.BufSize() != defaultBufSize {
		t.Errorf("BufSize() = %d, want %d", s.BufSize(), defaultBufSize)
	}
	if n, err := s.ReadSamples(make([]float32, 1)); n != 0 || err != nil {
		t.Errorf("ReadSamples(short) = %d, %v; want 0, nil", n, err)
	}
}

func TestDecodeInvalid(t *testing.T) {
	t.Parallel()

	_, err := Decoder{}.Decode(strings.NewReader("no frames here"))
	if !errors.Is(err, ErrNotMP3File) {
		t.Errorf("Decode() error = %v, want ErrNotMP3File", err)
	}
}

func BenchmarkReadSamples(b *testing.B) {
	samples := make([]int16, 8192)
	buf := make([]float32, 4096)
	b.ReportAllocs()
	for b.Loop() {
		s := &source{dec: newFakeMP3(1<<20, samples...), buf: make([]byte, 0, 8192)}
		for {
			if _, err := s.ReadSamples(buf); err != nil {
				break
			}
		}
	}
}
