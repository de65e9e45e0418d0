// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ik5/audtrack/audio"
	"github.com/ik5/audtrack/internal/audiotest"
)

func encodeFile(t *testing.T, src audio.Source, bitDepth int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := Encode(f, src, bitDepth); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return path
}

func decodeAll(t *testing.T, path string) (audio.Source, []float32) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	src, err := Decoder{}.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	var out []float32
	buf := make([]float32, 256)
	for {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}
	return src, out
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bitDepth  int
		tolerance float64
	}{
		{bitDepth: 8, tolerance: 1.0 / 64},
		{bitDepth: 16, tolerance: 1e-4},
		{bitDepth: 24, tolerance: 1e-6},
		{bitDepth: 32, tolerance: 1e-6},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dbit", tt.bitDepth), func(t *testing.T) {
			t.Parallel()

			wave := func(i, ch int) float32 {
				if ch == 1 {
					return -0.25
				}
				return 0.5
			}
			src := audiotest.NewMockSource(22050, 2, 300, wave)
			got, samples := decodeAll(t, encodeFile(t, src, tt.bitDepth))

			if got.SampleRate() != 22050 || got.Channels() != 2 {
				t.Fatalf("format = %d Hz %d ch, want 22050 Hz 2 ch", got.SampleRate(), got.Channels())
			}
			if len(samples) != 600 {
				t.Fatalf("decoded %d samples, want 600", len(samples))
			}
			for i, v := range samples {
				want := wave(i/2, i%2)
				if math.Abs(float64(v-want)) > tt.tolerance {
					t.Fatalf("sample %d = %v, want %v", i, v, want)
				}
			}
		})
	}
}

func TestEncodeFrames(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	frames, err := Encode(f, audiotest.NewSineSource(8000, 1, 10000, 440), 16)
	if err != nil {
		t.Fatal(err)
	}
	if frames != 10000 {
		t.Errorf("Encode() frames = %d, want 10000", frames)
	}

	// 44 byte header + 2 bytes per sample.
	info, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 44+20000 {
		t.Errorf("file size = %d, want %d", info.Size(), 44+20000)
	}
}

func TestEncodeRejectsBitDepth(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "bad.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	_, err = Encode(f, audiotest.NewSilentSource(8000, 1, 10), 12)
	if !errors.Is(err, ErrUnsupportedBitDepth) {
		t.Errorf("Encode() error = %v, want ErrUnsupportedBitDepth", err)
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()

	// IEEE float header, format tag 3.
	var float bytes.Buffer
	float.WriteString("RIFF")
	binary.Write(&float, binary.LittleEndian, uint32(36+8))
	float.WriteString("WAVEfmt ")
	binary.Write(&float, binary.LittleEndian, uint32(16))
	binary.Write(&float, binary.LittleEndian, uint16(3))
	binary.Write(&float, binary.LittleEndian, uint16(1))
	binary.Write(&float, binary.LittleEndian, uint32(8000))
	binary.Write(&float, binary.LittleEndian, uint32(32000))
	binary.Write(&float, binary.LittleEndian, uint16(4))
	binary.Write(&float, binary.LittleEndian, uint16(32))
	float.WriteString("data")
	binary.Write(&float, binary.LittleEndian, uint32(8))
	float.Write(make([]byte, 8))

	tests := []struct {
		name  string
		input io.Reader
		want  error
	}{
		{name: "garbage", input: strings.NewReader("definitely not a riff file"), want: ErrNotWavFile},
		{name: "empty", input: bytes.NewReader(nil), want: ErrNotWavFile},
		{name: "float", input: bytes.NewReader(float.Bytes()), want: ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := (Decoder{}).Decode(tt.input); !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func BenchmarkDecode(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.wav")
	f, err := os.Create(path)
	if err != nil {
		b.Fatal(err)
	}
	if _, err := Encode(f, audiotest.NewSineSource(44100, 2, 44100, 440), 16); err != nil {
		b.Fatal(err)
	}
	f.Close()
	data, err := os.ReadFile(path)
	if err != nil {
		b.Fatal(err)
	}

	buf := make([]float32, 4096)
	b.ReportAllocs()
	for b.Loop() {
		src, err := Decoder{}.Decode(bytes.NewReader(data))
		if err != nil {
			b.Fatal(err)
		}
		for {
			if _, err := src.ReadSamples(buf); err != nil {
				break
			}
		}
	}
}
