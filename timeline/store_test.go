// SPDX-License-Identifier: EPL-2.0

package timeline

import (
	"errors"
	"math"
	"runtime"
	"sync"
	"testing"

	goaudio "github.com/go-audio/audio"
)

const rate = 44100

func vec(channels int, samples ...float32) *goaudio.Float32Buffer {
	return &goaudio.Float32Buffer{
		Format: &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:   samples,
	}
}

func rampVec(frames, channels int, offset float32) *goaudio.Float32Buffer {
	data := make([]float32, frames*channels)
	for i := range data {
		data[i] = offset + float32(i)
	}
	return vec(channels, data...)
}

func newStore(t *testing.T, channels int) *Store {
	t.Helper()
	s, err := NewStore(rate, channels)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

// checkInvariants verifies blocks are sorted, disjoint and non-empty.
func checkInvariants(t *testing.T, s *Store) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, e := range s.entries {
		if e.blk.Frames() == 0 {
			t.Fatalf("block %d is empty", k)
		}
		if e.blk.Channels() != s.channels {
			t.Fatalf("block %d has %d channels, store has %d", k, e.blk.Channels(), s.channels)
		}
		if e.start < 0 {
			t.Fatalf("block %d starts before 0: %d", k, e.start)
		}
		if k > 0 && s.entries[k-1].end() > e.start {
			t.Fatalf("block %d [%d,%d) overlaps previous ending at %d",
				k, e.start, e.end(), s.entries[k-1].end())
		}
	}
}

func flatten(segs []Segment) []float32 {
	var out []float32
	for _, sg := range segs {
		out = append(out, sg.Buf.Data...)
	}
	return out
}

func equalSamples(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWriteOneSecondStereo(t *testing.T) {
	t.Parallel()

	s := newStore(t, 2)
	v := rampVec(rate, 2, 0)

	next, err := s.SetData(v, 0, 0)
	if err != nil {
		t.Fatalf("SetData: %v", err)
	}
	if next != 1.0 {
		t.Errorf("tNext = %v, want 1.0", next)
	}

	segs, err := s.GetData(0, 1.0)
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if len(segs) != 1 || segs[0].Frames() != rate || segs[0].Time != 0 {
		t.Fatalf("got %d segments", len(segs))
	}
	if !equalSamples(segs[0].Buf.Data, v.Data) {
		t.Error("read back differs from written vector")
	}
}

func TestSplitHalfSecond(t *testing.T) {
	t.Parallel()

	s := newStore(t, 2)
	if _, err := s.SetData(rampVec(rate, 2, 0), 0, 0); err != nil {
		t.Fatal(err)
	}

	at, err := s.SplitBlock(0.5)
	if err != nil {
		t.Fatalf("SplitBlock: %v", err)
	}
	if at != 0.5 {
		t.Errorf("split at %v, want 0.5", at)
	}

	info, err := s.GetDataBlocksInfo(0, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	want := []BlockInfo{{0, rate / 2}, {0.5, rate / 2}}
	if len(info) != len(want) {
		t.Fatalf("got %d blocks, want %d", len(info), len(want))
	}
	for i := range want {
		if info[i] != want[i] {
			t.Errorf("block %d = %+v, want %+v", i, info[i], want[i])
		}
	}
	checkInvariants(t, s)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		channels int
		t0       float64
		frames   int
	}{
		{"mono at zero", 1, 0, 10},
		{"stereo offset", 2, 0.25, 1000},
		{"odd position", 2, 1.0 / 3.0, 777},
		{"single frame", 1, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newStore(t, tt.channels)
			// Surround the write with existing material.
			if _, err := s.SetData(rampVec(rate, tt.channels, 1e6), 0, 0); err != nil {
				t.Fatal(err)
			}
			v := rampVec(tt.frames, tt.channels, -5000)
			if _, err := s.SetData(v, tt.t0, 0); err != nil {
				t.Fatal(err)
			}

			segs, err := s.GetData(tt.t0, float64(tt.frames)/rate)
			if err != nil {
				t.Fatal(err)
			}
			if got := flatten(segs); !equalSamples(got, v.Data) {
				t.Errorf("got %d samples back, want %d identical", len(got), len(v.Data))
			}
			checkInvariants(t, s)
		})
	}
}

func TestSetDataMerging(t *testing.T) {
	t.Parallel()

	t.Run("append at end extends", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 1)
		next, _ := s.SetData(rampVec(100, 1, 0), 0, 0)
		if _, err := s.SetData(rampVec(50, 1, 100), next, 0); err != nil {
			t.Fatal(err)
		}
		info := s.Blocks()
		if len(info) != 1 || info[0].Frames != 150 {
			t.Fatalf("blocks = %+v, want one of 150 frames", info)
		}
	})

	t.Run("write before touching block stays separate", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 1)
		s.SetData(rampVec(100, 1, 0), 100.0/rate, 0)
		s.SetData(rampVec(100, 1, 0), 0, 0)
		if n := len(s.Blocks()); n != 2 {
			t.Fatalf("got %d blocks, want 2", n)
		}
	})

	t.Run("overwrite into block head rejoins", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 1)
		s.SetData(rampVec(100, 1, 0), 50.0/rate, 0)
		s.SetData(rampVec(100, 1, 1000), 0, 0)
		info := s.Blocks()
		if len(info) != 1 || info[0].Frames != 150 || info[0].Time != 0 {
			t.Fatalf("blocks = %+v, want one of 150 frames at 0", info)
		}
		segs, _ := s.GetData(0, math.Inf(1))
		got := flatten(segs)
		if got[99] != 1099 || got[100] != 50 {
			t.Errorf("boundary samples = %v %v, want 1099 50", got[99], got[100])
		}
	})

	t.Run("write spanning gap bridges blocks", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 1)
		s.SetData(rampVec(10, 1, 0), 0, 0)
		s.SetData(rampVec(10, 1, 0), 20.0/rate, 0)
		s.SetData(rampVec(20, 1, 0), 5.0/rate, 0)
		info := s.Blocks()
		if len(info) != 1 || info[0].Frames != 30 {
			t.Fatalf("blocks = %+v, want one of 30 frames", info)
		}
		checkInvariants(t, s)
	})

	t.Run("in place overwrite keeps block", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, 2)
		s.SetData(rampVec(100, 2, 0), 0, 0)
		v := s.Version()
		next, err := s.SetData(vec(2, 9, 9), 10.0/rate, 0)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(next-11.0/rate) > Tolerance {
			t.Errorf("tNext = %v", next)
		}
		if s.Version() == v {
			t.Error("version not bumped")
		}
		segs, _ := s.GetData(10.0/rate, 1.0/rate)
		if got := flatten(segs); !equalSamples(got, []float32{9, 9}) {
			t.Errorf("got %v", got)
		}
	})
}

func TestSetDataFill(t *testing.T) {
	t.Parallel()

	s := newStore(t, 2)
	next, err := s.SetData(vec(2, 1, -1, 2, -2), 0, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if next != 0.5 {
		t.Errorf("tNext = %v, want 0.5", next)
	}

	segs, _ := s.GetData(0, 0.5)
	got := flatten(segs)
	if len(got) != rate/2*2 {
		t.Fatalf("got %d samples, want %d", len(got), rate)
	}
	for f := 0; f < len(got)/2; f++ {
		want := float32(1 + f%2)
		if got[2*f] != want || got[2*f+1] != -want {
			t.Fatalf("frame %d = %v %v", f, got[2*f], got[2*f+1])
		}
	}
}

func TestSetDataFillBeyondRepeatCap(t *testing.T) {
	t.Parallel()

	s := newStore(t, 1)
	total := MaxFillRepeats*2 + 3
	next, err := s.SetData(vec(1, 0.5), 0, float64(total)/rate)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(next-float64(total)/rate) > Tolerance {
		t.Errorf("tNext = %v", next)
	}
	info := s.Blocks()
	if len(info) != 1 || info[0].Frames != total {
		t.Fatalf("blocks = %+v, want one block of %d", info, total)
	}
}

func TestSetDataErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  *goaudio.Float32Buffer
		t0   float64
		dur  float64
		want error
	}{
		{"nil vector", nil, 0, 0, ErrEmptyVector},
		{"empty vector", vec(2), 0, 0, ErrEmptyVector},
		{"channel mismatch", vec(1, 1, 2), 0, 0, ErrChannelMismatch},
		{"ragged", vec(2, 1, 2, 3), 0, 0, ErrChannelMismatch},
		{"nan start", vec(2, 1, 2), math.NaN(), 0, ErrInvalidTime},
		{"inf start", vec(2, 1, 2), math.Inf(1), 0, ErrInvalidTime},
		{"negative start", vec(2, 1, 2), -1, 0, ErrInvalidTime},
		{"inf fill", vec(2, 1, 2), 0, math.Inf(1), ErrInvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t, 2)
			next, err := s.SetData(tt.buf, tt.t0, tt.dur)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if !math.IsNaN(next) {
				t.Errorf("tNext = %v, want NaN", next)
			}
			if len(s.Blocks()) != 0 || s.Version() != 0 {
				t.Error("failed write mutated the store")
			}
		})
	}
}

func TestReadonlyAndClosed(t *testing.T) {
	t.Parallel()

	s := newStore(t, 1)
	s.SetData(vec(1, 1, 2, 3), 0, 0)

	s.SetReadonly(true)
	if _, err := s.SetData(vec(1, 5), 0, 0); !errors.Is(err, ErrReadonly) {
		t.Errorf("SetData readonly: %v", err)
	}
	if err := s.DeleteData(0, 1); !errors.Is(err, ErrReadonly) {
		t.Errorf("DeleteData readonly: %v", err)
	}
	if _, err := s.MoveBlocks(1, 0, 1); !errors.Is(err, ErrReadonly) {
		t.Errorf("MoveBlocks readonly: %v", err)
	}
	if segs, err := s.GetData(0, 1); err != nil || len(segs) != 1 {
		t.Errorf("reads must still work on readonly tracks: %v", err)
	}

	s.SetReadonly(false)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetData(0, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("GetData closed: %v", err)
	}
	if _, err := s.SetData(vec(1, 1), 0, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("SetData closed: %v", err)
	}
	if _, ok := s.FindBlock(0, true); ok {
		t.Error("FindBlock on closed store")
	}
}

func TestDeleteLeavesGap(t *testing.T) {
	t.Parallel()

	s := newStore(t, 1)
	s.SetData(rampVec(100, 1, 0), 0, 0)
	if err := s.DeleteData(40.0/rate, 20.0/rate); err != nil {
		t.Fatal(err)
	}

	want := []BlockInfo{{0, 40}, {60.0 / rate, 40}}
	got := s.Blocks()
	if len(got) != 2 || got[0] != want[0] || got[1].Frames != 40 ||
		math.Abs(got[1].Time-want[1].Time) > Tolerance {
		t.Fatalf("blocks = %+v, want %+v", got, want)
	}
	checkInvariants(t, s)

	segs, _ := s.GetData(0, 1)
	if len(segs) != 2 || segs[1].Buf.Data[0] != 60 {
		t.Errorf("unexpected data after delete: %d segments", len(segs))
	}
}

func TestCutData(t *testing.T) {
	t.Parallel()

	s := newStore(t, 1)
	s.SetData(rampVec(10, 1, 0), 0, 0)
	s.SetData(rampVec(10, 1, 100), 20.0/rate, 0)

	cut, err := s.CutData(5.0/rate, 20.0/rate)
	if err != nil {
		t.Fatal(err)
	}
	if len(cut) != 2 {
		t.Fatalf("got %d cut segments, want 2", len(cut))
	}
	if got := flatten(cut); !equalSamples(got, []float32{5, 6, 7, 8, 9, 100, 101, 102, 103, 104}) {
		t.Errorf("cut = %v", got)
	}
	if info := s.Blocks(); len(info) != 2 || info[0].Frames != 5 || info[1].Frames != 5 {
		t.Errorf("remaining blocks = %+v", info)
	}
	checkInvariants(t, s)
}

func TestSplitBlockBoundaries(t *testing.T) {
	t.Parallel()

	s := newStore(t, 1)
	s.SetData(rampVec(100, 1, 0), 1, 0)

	if at, err := s.SplitBlock(1); err != nil || at != 1 {
		t.Errorf("split at block start = %v %v, want no-op at 1", at, err)
	}
	if len(s.Blocks()) != 1 {
		t.Error("split on a boundary created a block")
	}

	// Between two samples rounds up to the next boundary.
	at, err := s.SplitBlock(1 + 10.5/rate)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(at-(1+11.0/rate)) > Tolerance {
		t.Errorf("split at %v, want %v", at, 1+11.0/rate)
	}

	if _, err := s.SplitBlock(0.5); !errors.Is(err, ErrNoBlock) {
		t.Errorf("split in gap: %v", err)
	}
	if at, err := s.SplitBlock(math.NaN()); !errors.Is(err, ErrInvalidTime) || !math.IsNaN(at) {
		t.Errorf("split at NaN: %v %v", at, err)
	}
	checkInvariants(t, s)
}

func TestSplitThenJoinRestores(t *testing.T) {
	t.Parallel()

	s := newStore(t, 2)
	orig := rampVec(1000, 2, 0)
	s.SetData(orig, 0.1, 0)

	at, err := s.SplitBlock(0.1 + 333.0/rate)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Blocks()) != 2 {
		t.Fatal("split did not produce two blocks")
	}

	merged, err := s.JoinBlocks(at-1e-4, 1000.0/rate)
	if err != nil {
		t.Fatal(err)
	}
	if merged != 1 {
		t.Errorf("merged = %d, want 1", merged)
	}

	info := s.Blocks()
	if len(info) != 1 || info[0].Frames != 1000 {
		t.Fatalf("blocks = %+v", info)
	}
	segs, _ := s.GetData(0.1, 1000.0/rate)
	if !equalSamples(flatten(segs), orig.Data) {
		t.Error("join did not restore the original contents")
	}
}

func TestJoinSkipsGaps(t *testing.T) {
	t.Parallel()

	s := newStore(t, 1)
	s.SetData(rampVec(10, 1, 0), 0, 0)
	s.SplitBlock(5.0 / rate)
	s.SetData(rampVec(10, 1, 0), 20.0/rate, 0)

	merged, err := s.JoinBlocks(0, math.Inf(1))
	if err != nil {
		t.Fatal(err)
	}
	if merged != 1 || len(s.Blocks()) != 2 {
		t.Errorf("merged %d, %d blocks left; want 1 and 2", merged, len(s.Blocks()))
	}
}

func TestMoveBlocks(t *testing.T) {
	t.Parallel()

	layout := func(t *testing.T) *Store {
		s := newStore(t, 1)
		// Blocks at [100,200), [300,400), [600,700) samples.
		for _, at := range []float64{100, 300, 600} {
			s.SetData(rampVec(100, 1, 0), at/rate, 0)
		}
		return s
	}

	tests := []struct {
		name       string
		dt, t0, d  float64
		want       float64
		movedStart float64
	}{
		{"free move right", 50.0 / rate, 300.0 / rate, 100.0 / rate, 50.0 / rate, 350.0 / rate},
		{"clamped right", 500.0 / rate, 300.0 / rate, 100.0 / rate, 200.0 / rate, 500.0 / rate},
		{"clamped left", -500.0 / rate, 300.0 / rate, 100.0 / rate, -100.0 / rate, 200.0 / rate},
		{"clamped at zero", -500.0 / rate, 0, 150.0 / rate, -100.0 / rate, 0},
		{"sub-sample truncates", 0.4 / rate, 300.0 / rate, 100.0 / rate, 0, 300.0 / rate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := layout(t)
			got, err := s.MoveBlocks(tt.dt, tt.t0, tt.d)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > Tolerance {
				t.Errorf("actualDt = %v, want %v", got, tt.want)
			}
			if math.Abs(got) > math.Abs(tt.dt)+Tolerance {
				t.Errorf("|actualDt| %v exceeds |dt| %v", got, tt.dt)
			}
			if info, ok := s.FindBlock(tt.movedStart, false); !ok || math.Abs(info.Time-tt.movedStart) > Tolerance {
				t.Errorf("no block at %v after move: %+v", tt.movedStart, info)
			}
			checkInvariants(t, s)
		})
	}
}

func TestMoveBlocksNeverOverlaps(t *testing.T) {
	t.Parallel()

	for _, dt := range []float64{-3, -0.01, -1e-3, 1e-3, 0.01, 3} {
		s := newStore(t, 1)
		for i := range 5 {
			s.SetData(rampVec(441, 1, 0), float64(i)*0.02, 0)
		}
		got, err := s.MoveBlocks(dt, 0.04, 0.02)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got) > math.Abs(dt)+Tolerance {
			t.Errorf("dt=%v: |actualDt| = %v", dt, got)
		}
		checkInvariants(t, s)
	}
}

func TestFindBlock(t *testing.T) {
	t.Parallel()

	s := newStore(t, 1)
	s.SetData(rampVec(100, 1, 0), 0, 0)
	s.SetData(rampVec(100, 1, 0), 200.0/rate, 0)
	end := 100.0 / rate

	if info, ok := s.FindBlock(end, false); !ok || math.Abs(info.Time-200.0/rate) > Tolerance {
		t.Errorf("FindBlock(end, false) = %+v %v, want next block", info, ok)
	}
	if info, ok := s.FindBlock(end, true); !ok || info.Time != 0 {
		t.Errorf("FindBlock(end, true) = %+v %v, want first block", info, ok)
	}
	if info, ok := s.FindBlock(50.0/rate, false); !ok || info.Time != 0 {
		t.Errorf("FindBlock inside = %+v %v", info, ok)
	}
	if _, ok := s.FindBlock(1, true); ok {
		t.Error("FindBlock past the end should fail")
	}
}

func TestGetDataInfiniteDuration(t *testing.T) {
	t.Parallel()

	s := newStore(t, 1)
	s.SetData(rampVec(10, 1, 0), 0, 0)
	s.SplitBlock(5.0 / rate)
	s.SetData(rampVec(10, 1, 0), 20.0/rate, 0)

	segs, err := s.GetData(2.0/rate, math.Inf(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 2 || len(flatten(segs)) != 8 {
		t.Errorf("got %d segments / %d samples, want the contiguous run only", len(segs), len(flatten(segs)))
	}

	if _, err := s.GetData(0, math.NaN()); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("NaN duration: %v", err)
	}
	if segs, _ := s.GetData(0, 0); len(segs) != 0 {
		t.Error("zero duration returned segments")
	}
}

func TestGetAvgData(t *testing.T) {
	t.Parallel()

	s := newStore(t, 1)
	s.SetData(rampVec(1024, 1, 0), 0, 0)

	dec, segs, err := s.GetAvgData(0, 1024.0/rate, 100)
	if err != nil {
		t.Fatal(err)
	}
	if dec != 64 {
		t.Errorf("decimation = %d, want 64", dec)
	}
	if len(segs) != 1 || segs[0].Frames() != 16 {
		t.Fatalf("got %d segments", len(segs))
	}
	// Average of 0..63.
	if segs[0].Buf.Data[0] != 31.5 {
		t.Errorf("first bucket avg = %v, want 31.5", segs[0].Buf.Data[0])
	}

	prev := 0
	for hint := -1; hint < 70000; hint += 37 {
		dec, _, _ := s.GetAvgData(0, 0.01, hint)
		if dec < prev {
			t.Fatalf("decimation decreased at hint %d", hint)
		}
		prev = dec
	}
}

func TestGetSummaryAlignsToBuckets(t *testing.T) {
	t.Parallel()

	s := newStore(t, 1)
	s.SetData(rampVec(256, 1, 0), 0, 0)

	_, segs, err := s.GetSummary(20.0/rate, 30.0/rate, 16)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments", len(segs))
	}
	sm := segs[0].Summary
	// Frames 20..49 fall in buckets 1..3.
	if math.Abs(segs[0].Time-16.0/rate) > Tolerance || sm.Buckets() != 3 {
		t.Errorf("time=%v buckets=%d", segs[0].Time, sm.Buckets())
	}
	if sm.Min[0] != 16 || sm.Max[2] != 63 {
		t.Errorf("min=%v max=%v", sm.Min, sm.Max)
	}
}

// Not parallel: it reads process-wide allocation counters.
func TestSummaryCostFollowsWindow(t *testing.T) {
	s := newStore(t, 2)
	next := 0.0
	for range 60 {
		var err error
		if next, err = s.SetData(rampVec(rate, 2, 0), next, 0); err != nil {
			t.Fatalf("SetData: %v", err)
		}
	}
	if n := len(s.Blocks()); n != 1 {
		t.Fatalf("appends produced %d blocks, want 1", n)
	}

	measure := func(fn func()) uint64 {
		var before, after runtime.MemStats
		runtime.GC()
		runtime.ReadMemStats(&before)
		fn()
		runtime.ReadMemStats(&after)
		return after.TotalAlloc - before.TotalAlloc
	}

	var segs []Segment
	avg := measure(func() { _, segs, _ = s.GetAvgData(30, 0.01, 1) })
	if avg > 64<<10 {
		t.Errorf("GetAvgData over 10 ms allocated %d bytes", avg)
	}
	if len(segs) != 1 || segs[0].Frames() != 441 {
		t.Fatalf("got %d segments", len(segs))
	}
	// 30 s is a whole number of one-second ramps.
	if segs[0].Buf.Data[0] != 0 || segs[0].Buf.Data[1] != 1 {
		t.Errorf("first frame = %v", segs[0].Buf.Data[:2])
	}

	sum := measure(func() { _, _, _ = s.GetSummary(30, 0.01, 16) })
	if sum > 1<<20 {
		t.Errorf("GetSummary over 10 ms allocated %d bytes", sum)
	}

	// Appending keeps earlier pages, so a repeated query stays cheap.
	if _, err := s.SetData(rampVec(rate, 2, 0), next, 0); err != nil {
		t.Fatal(err)
	}
	again := measure(func() { _, _, _ = s.GetSummary(30, 0.01, 16) })
	if again > 64<<10 {
		t.Errorf("repeated GetSummary allocated %d bytes", again)
	}
}

func TestStartEndDuration(t *testing.T) {
	t.Parallel()

	s := newStore(t, 1)
	if s.Start() != 0 || s.End() != 0 || s.Duration() != 0 {
		t.Error("empty store must report zeros")
	}
	s.SetData(rampVec(rate, 1, 0), 1, 0)
	s.SetData(rampVec(rate, 1, 0), 3, 0)
	if s.Start() != 1 || s.End() != 4 || s.Duration() != 3 {
		t.Errorf("start=%v end=%v duration=%v", s.Start(), s.End(), s.Duration())
	}
	if err := s.Clear(); err != nil || len(s.Blocks()) != 0 {
		t.Errorf("Clear: %v", err)
	}
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	t.Parallel()

	s := newStore(t, 2)
	s.SetData(rampVec(rate, 2, 0), 0, 0)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				if _, err := s.GetData(0, 1); err != nil {
					t.Error(err)
					return
				}
				s.GetAvgData(0, 1, 256)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 200 {
			s.SetData(rampVec(64, 2, float32(i)), float64(i%100)/1000, 0)
		}
	}()
	wg.Wait()
	checkInvariants(t, s)
}

func BenchmarkGetData(b *testing.B) {
	s, _ := NewStore(rate, 2)
	for i := range 100 {
		s.SetData(rampVec(4410, 2, 0), float64(i)*0.2, 0)
	}
	b.ReportAllocs()
	for b.Loop() {
		s.GetData(5, 1)
	}
}

func BenchmarkSetDataAppend(b *testing.B) {
	s, _ := NewStore(rate, 2)
	v := rampVec(2205, 2, 0)
	next := 0.0
	b.ReportAllocs()
	for b.Loop() {
		next, _ = s.SetData(v, next, 0)
	}
}
