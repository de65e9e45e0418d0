// SPDX-License-Identifier: EPL-2.0

package timeline

import (
	"math"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	goaudio "github.com/go-audio/audio"

	"github.com/ik5/audtrack/block"
)

const (
	// Tolerance in seconds absorbs floating error when converting times to
	// sample indices.
	Tolerance = 1e-6

	// MaxFillRepeats caps how many pattern repetitions are materialized at
	// once by a fill. Longer fills are written in successive chunks.
	MaxFillRepeats = 0x10000

	// maxIndex keeps t*rate well inside int64.
	maxIndex = 1 << 62
)

// BlockInfo describes a stored block without copying its samples.
type BlockInfo struct {
	Time   float64
	Frames int
}

// Segment is a run of interleaved samples starting at Time seconds.
type Segment struct {
	Time float64
	Buf  *goaudio.Float32Buffer
}

// Frames returns the number of frames in the segment.
func (s Segment) Frames() int {
	if s.Buf == nil || s.Buf.Format == nil || s.Buf.Format.NumChannels == 0 {
		return 0
	}
	return len(s.Buf.Data) / s.Buf.Format.NumChannels
}

// SummarySegment carries decimated statistics starting at Time seconds.
type SummarySegment struct {
	Time    float64
	Summary *block.Summary
}

type entry struct {
	start int64
	blk   *block.Block
}

func (e entry) end() int64 { return e.start + int64(e.blk.Frames()) }

// Store is an ordered, non-overlapping set of blocks addressed by time.
type Store struct {
	mu       sync.RWMutex
	rate     int
	channels int
	entries  []entry
	closed   bool

	readonly atomic.Bool
	version  atomic.Uint64
}

func NewStore(rate, channels int) (*Store, error) {
	if rate <= 0 {
		return nil, ErrInvalidRate
	}
	if channels < 1 {
		return nil, ErrChannelMismatch
	}
	return &Store{rate: rate, channels: channels}, nil
}

func (s *Store) SampleRate() int { return s.rate }
func (s *Store) Channels() int   { return s.channels }

// Version increases on every mutation.
func (s *Store) Version() uint64 { return s.version.Load() }

func (s *Store) Readonly() bool       { return s.readonly.Load() }
func (s *Store) SetReadonly(ro bool) { s.readonly.Store(ro) }

func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close frees every block. Later calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.entries = nil
	s.closed = true
	s.version.Add(1)
	return nil
}

// Clear removes every block, leaving the store usable.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}
	s.entries = nil
	s.version.Add(1)
	return nil
}

// Start returns the start of the first block, or 0 when empty.
func (s *Store) Start() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return 0
	}
	return s.seconds(s.entries[0].start)
}

// End returns the end of the last block, or 0 when empty.
func (s *Store) End() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return 0
	}
	return s.seconds(s.entries[len(s.entries)-1].end())
}

func (s *Store) Duration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return 0
	}
	return s.seconds(s.entries[len(s.entries)-1].end() - s.entries[0].start)
}

// Blocks lists every block in order.
func (s *Store) Blocks() []BlockInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BlockInfo, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, s.info(e))
	}
	return out
}

// GetData returns the trimmed overlap of every block with [t0, t0+dur).
// An infinite dur reads to the end of the contiguous run at or after t0.
func (s *Store) GetData(t0, dur float64) ([]Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	i0, i1, err := s.resolve(t0, dur)
	if err != nil {
		return nil, err
	}

	var segs []Segment
	s.overlaps(i0, i1, func(e entry, from, to int64) {
		segs = append(segs, s.segment(e, from, to))
	})
	return segs, nil
}

// GetAvgData returns per-bucket averages at the decimation chosen for hint.
// Segment rates are divided by the decimation used.
func (s *Store) GetAvgData(t0, dur float64, hint int) (int, []Segment, error) {
	dec, sums, err := s.GetSummary(t0, dur, hint)
	if err != nil {
		return dec, nil, err
	}
	segs := make([]Segment, 0, len(sums))
	for _, ss := range sums {
		segs = append(segs, Segment{
			Time: ss.Time,
			Buf: &goaudio.Float32Buffer{
				Format: &goaudio.Format{
					NumChannels: s.channels,
					SampleRate:  max(1, s.rate/dec),
				},
				Data:           ss.Summary.Avg,
				SourceBitDepth: 32,
			},
		})
	}
	return dec, segs, nil
}

// GetSummary returns min, max, avg and variance buckets covering
// [t0, t0+dur) at the decimation chosen for hint.
func (s *Store) GetSummary(t0, dur float64, hint int) (int, []SummarySegment, error) {
	dec := block.SelectDecimation(hint)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return dec, nil, ErrClosed
	}
	i0, i1, err := s.resolve(t0, dur)
	if err != nil {
		return dec, nil, err
	}

	var segs []SummarySegment
	s.overlaps(i0, i1, func(e entry, from, to int64) {
		d := int64(dec)
		b0 := (from - e.start) / d
		b1 := (to - e.start + d - 1) / d
		segs = append(segs, SummarySegment{
			Time:    s.seconds(e.start + b0*d),
			Summary: e.blk.SummaryRange(dec, int(b0), int(b1)),
		})
	})
	return dec, segs, nil
}

// GetDataBlocksInfo lists the blocks overlapping [t0, t0+dur).
func (s *Store) GetDataBlocksInfo(t0, dur float64) ([]BlockInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	i0, i1, err := s.resolve(t0, dur)
	if err != nil {
		return nil, err
	}

	var out []BlockInfo
	s.overlaps(i0, i1, func(e entry, _, _ int64) {
		out = append(out, s.info(e))
	})
	return out, nil
}

// SetData writes buf at t0 and returns the time right after the last
// written frame. With dur > 0 buf is tiled as a fill pattern over dur.
// The rate carried by buf is not checked; callers resample first.
// On failure the store is untouched and the returned time is NaN.
func (s *Store) SetData(buf *goaudio.Float32Buffer, t0, dur float64) (float64, error) {
	nan := math.NaN()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return nan, err
	}
	if buf == nil || len(buf.Data) == 0 {
		return nan, ErrEmptyVector
	}
	if buf.Format == nil || buf.Format.NumChannels != s.channels || len(buf.Data)%s.channels != 0 {
		return nan, ErrChannelMismatch
	}
	if !s.validStart(t0) || math.IsNaN(dur) || math.IsInf(dur, 0) {
		return nan, ErrInvalidTime
	}

	i0 := s.floorIndex(t0)
	frames := int64(len(buf.Data) / s.channels)

	if dur <= 0 {
		s.write(i0, buf.Data)
		s.version.Add(1)
		return s.seconds(i0 + frames), nil
	}

	total := s.span(dur)
	if total == 0 {
		return s.seconds(i0), nil
	}

	chunk := min(total, frames*MaxFillRepeats)
	tile := make([]float32, chunk*int64(s.channels))
	for off := 0; off < len(tile); off += len(buf.Data) {
		copy(tile[off:], buf.Data)
	}
	for done := int64(0); done < total; {
		n := min(chunk, total-done)
		s.write(i0+done, tile[:n*int64(s.channels)])
		done += n
	}
	s.version.Add(1)
	return s.seconds(i0 + total), nil
}

// DeleteData removes [t0, t0+dur), leaving a gap.
func (s *Store) DeleteData(t0, dur float64) error {
	_, err := s.remove(t0, dur, false)
	return err
}

// CutData removes [t0, t0+dur) and returns the removed samples.
func (s *Store) CutData(t0, dur float64) ([]Segment, error) {
	return s.remove(t0, dur, true)
}

func (s *Store) remove(t0, dur float64, keep bool) ([]Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return nil, err
	}
	i0, i1, err := s.resolve(t0, dur)
	if err != nil {
		return nil, err
	}

	var cut []Segment
	var dst *[]Segment
	if keep {
		dst = &cut
	}
	if _, removed := s.removeRange(i0, i1, dst); removed {
		s.version.Add(1)
	}
	return cut, nil
}

// SplitBlock splits the block containing t0 at the first sample boundary at
// or after t0 and returns that boundary. When t0 already sits on a boundary
// the block is left alone.
func (s *Store) SplitBlock(t0 float64) (float64, error) {
	nan := math.NaN()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return nan, err
	}
	if !isFinite(t0) || math.Abs(t0*float64(s.rate)) >= maxIndex {
		return nan, ErrInvalidTime
	}

	i := s.floorIndex(t0)
	k := s.search(i)
	if k == len(s.entries) || s.entries[k].start > i {
		return nan, ErrNoBlock
	}

	e := s.entries[k]
	at := max(s.ceilIndex(t0), e.start)
	if at == e.start {
		return s.seconds(e.start), nil
	}
	if at >= e.end() {
		return s.seconds(e.end()), nil
	}

	tail, err := e.blk.Split(int(at - e.start))
	if err != nil {
		panic("timeline: split inside block failed: " + err.Error())
	}
	s.entries = slices.Insert(s.entries, k+1, entry{start: at, blk: tail})
	s.version.Add(1)
	return s.seconds(at), nil
}

// JoinBlocks merges every block lying fully inside [t0, t0+dur) into its
// predecessor when the two are contiguous. Returns the number of merges.
func (s *Store) JoinBlocks(t0, dur float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return 0, err
	}
	i0, i1, err := s.resolve(t0, dur)
	if err != nil {
		return 0, err
	}

	merged := 0
	for k := max(1, s.search(i0)); k < len(s.entries) && s.entries[k].start < i1; {
		e := s.entries[k]
		prev := s.entries[k-1]
		if e.start >= i0 && e.end() <= i1 && prev.end() == e.start {
			if err := prev.blk.Append(e.blk); err != nil {
				panic("timeline: join of mismatched blocks: " + err.Error())
			}
			s.entries = slices.Delete(s.entries, k, k+1)
			merged++
			continue
		}
		k++
	}

	if merged > 0 {
		s.version.Add(1)
	}
	return merged, nil
}

// MoveBlocks shifts every block overlapping [t0, t0+dur) by dt, rounded to
// whole samples. The shift is clamped so the group never overlaps the
// neighbour outside the range and never starts before 0. Returns the shift
// applied, whose magnitude never exceeds |dt|.
func (s *Store) MoveBlocks(dt, t0, dur float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return 0, err
	}
	if !isFinite(dt) || math.Abs(dt*float64(s.rate)) >= maxIndex {
		return 0, ErrInvalidTime
	}
	i0, i1, err := s.resolve(t0, dur)
	if err != nil {
		return 0, err
	}
	if i1 <= i0 {
		return 0, nil
	}

	first := s.search(i0)
	last := first
	for last < len(s.entries) && s.entries[last].start < i1 {
		last++
	}
	if first == last {
		return 0, nil
	}

	d := s.shift(dt)
	groupStart := s.entries[first].start
	groupEnd := s.entries[last-1].end()
	if d > 0 && last < len(s.entries) {
		d = min(d, s.entries[last].start-groupEnd)
	}
	if d < 0 {
		lo := -groupStart
		if first > 0 {
			lo = s.entries[first-1].end() - groupStart
		}
		d = max(d, lo)
	}
	if d == 0 {
		return 0, nil
	}

	for k := first; k < last; k++ {
		s.entries[k].start += d
	}
	s.version.Add(1)
	return s.seconds(d), nil
}

// FindBlock returns the first block ending after t0. With bottomAllowed a
// block ending exactly at t0 also matches, which is what appenders want.
func (s *Store) FindBlock(t0 float64, bottomAllowed bool) (BlockInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || !isFinite(t0) || math.Abs(t0*float64(s.rate)) >= maxIndex {
		return BlockInfo{}, false
	}

	i := s.floorIndex(t0)
	k := s.search(i)
	if bottomAllowed {
		k = sort.Search(len(s.entries), func(j int) bool { return s.entries[j].end() >= i })
	}
	if k == len(s.entries) {
		return BlockInfo{}, false
	}
	return s.info(s.entries[k]), true
}

// write stores data at i0. The caller holds the write lock.
func (s *Store) write(i0 int64, data []float32) {
	i1 := i0 + int64(len(data)/s.channels)

	k := s.search(i0)
	if k < len(s.entries) {
		if e := s.entries[k]; e.start <= i0 && e.end() >= i1 {
			e.blk.Write(data, int(i0-e.start))
			return
		}
	}

	// Only a block the write cut into is rejoined with it; a neighbour
	// that merely touches i1 stays separate.
	overlapsNext := false
	for j := k; j < len(s.entries) && s.entries[j].start < i1; j++ {
		if s.entries[j].end() > i1 {
			overlapsNext = true
		}
	}

	pos, _ := s.removeRange(i0, i1, nil)
	if pos > 0 && s.entries[pos-1].end() == i0 {
		pos--
		if err := s.entries[pos].blk.AppendSamples(data); err != nil {
			panic("timeline: append to predecessor failed: " + err.Error())
		}
	} else {
		blk, err := block.FromSamples(s.channels, data)
		if err != nil {
			panic("timeline: block from samples failed: " + err.Error())
		}
		s.entries = slices.Insert(s.entries, pos, entry{start: i0, blk: blk})
	}

	if overlapsNext && pos+1 < len(s.entries) && s.entries[pos+1].start == i1 {
		if err := s.entries[pos].blk.Append(s.entries[pos+1].blk); err != nil {
			panic("timeline: append of successor failed: " + err.Error())
		}
		s.entries = slices.Delete(s.entries, pos+1, pos+2)
	}
}

// removeRange deletes [i0, i1), splitting boundary blocks. It returns the
// index where a block starting at i0 belongs afterwards. Removed samples are
// appended to cut when it is non-nil.
func (s *Store) removeRange(i0, i1 int64, cut *[]Segment) (int, bool) {
	removed := false
	k := s.search(i0)
	for i1 > i0 && k < len(s.entries) && s.entries[k].start < i1 {
		e := s.entries[k]
		from, to := max(i0, e.start), min(i1, e.end())
		if cut != nil {
			*cut = append(*cut, s.segment(e, from, to))
		}
		removed = true

		switch {
		case from == e.start && to == e.end():
			s.entries = slices.Delete(s.entries, k, k+1)
		case from == e.start:
			tail, err := e.blk.Split(int(to - e.start))
			if err != nil {
				panic("timeline: head removal failed: " + err.Error())
			}
			s.entries[k] = entry{start: to, blk: tail}
			k++
		case to == e.end():
			if err := e.blk.Truncate(int(from - e.start)); err != nil {
				panic("timeline: tail removal failed: " + err.Error())
			}
			k++
		default:
			tail, err := e.blk.Split(int(to - e.start))
			if err == nil {
				err = e.blk.Truncate(int(from - e.start))
			}
			if err != nil {
				panic("timeline: middle removal failed: " + err.Error())
			}
			s.entries = slices.Insert(s.entries, k+1, entry{start: to, blk: tail})
			k += 2
		}
	}
	return s.search(i0), removed
}

// overlaps calls fn for every block intersecting [i0, i1) with the
// intersection bounds.
func (s *Store) overlaps(i0, i1 int64, fn func(e entry, from, to int64)) {
	if i1 <= i0 {
		return
	}
	for k := s.search(i0); k < len(s.entries) && s.entries[k].start < i1; k++ {
		e := s.entries[k]
		fn(e, max(i0, e.start), min(i1, e.end()))
	}
}

// search returns the first block ending after i.
func (s *Store) search(i int64) int {
	return sort.Search(len(s.entries), func(k int) bool { return s.entries[k].end() > i })
}

// contiguousEnd returns the end of the run of touching blocks that starts
// with the block at or after i.
func (s *Store) contiguousEnd(i int64) int64 {
	k := s.search(i)
	if k == len(s.entries) {
		return i
	}
	end := s.entries[k].end()
	for k++; k < len(s.entries) && s.entries[k].start == end; k++ {
		end = s.entries[k].end()
	}
	return end
}

func (s *Store) resolve(t0, dur float64) (int64, int64, error) {
	if !isFinite(t0) || math.IsNaN(dur) || math.IsInf(dur, -1) ||
		math.Abs(t0*float64(s.rate)) >= maxIndex {
		return 0, 0, ErrInvalidTime
	}
	i0 := s.floorIndex(t0)
	if math.IsInf(dur, 1) {
		return i0, max(i0, s.contiguousEnd(i0)), nil
	}
	if dur*float64(s.rate) >= maxIndex {
		return 0, 0, ErrInvalidTime
	}
	return i0, i0 + s.span(dur), nil
}

func (s *Store) validStart(t0 float64) bool {
	return isFinite(t0) && t0 >= -Tolerance && t0*float64(s.rate) < maxIndex
}

func (s *Store) writable() error {
	if s.closed {
		return ErrClosed
	}
	if s.readonly.Load() {
		return ErrReadonly
	}
	return nil
}

func (s *Store) floorIndex(t float64) int64 {
	r := float64(s.rate)
	return int64(math.Floor(t*r + Tolerance*r))
}

func (s *Store) ceilIndex(t float64) int64 {
	r := float64(s.rate)
	return int64(math.Ceil(t*r - Tolerance*r))
}

// span converts a duration to a frame count.
func (s *Store) span(d float64) int64 {
	if d <= 0 {
		return 0
	}
	r := float64(s.rate)
	return max(0, int64(math.Ceil(d*r-Tolerance*r)))
}

// shift converts a time offset to whole samples, truncating towards zero
// unless dt is within Tolerance of a sample boundary.
func (s *Store) shift(dt float64) int64 {
	r := float64(s.rate)
	x := dt * r
	n := math.Round(x)
	if math.Abs(n-x) <= Tolerance*r {
		return int64(n)
	}
	return int64(math.Trunc(x))
}

func (s *Store) seconds(i int64) float64 { return float64(i) / float64(s.rate) }

func (s *Store) info(e entry) BlockInfo {
	return BlockInfo{Time: s.seconds(e.start), Frames: e.blk.Frames()}
}

func (s *Store) segment(e entry, from, to int64) Segment {
	n := int(to - from)
	data := make([]float32, n*s.channels)
	e.blk.Read(data, int(from-e.start), n)
	return Segment{
		Time: s.seconds(from),
		Buf: &goaudio.Float32Buffer{
			Format:         &goaudio.Format{NumChannels: s.channels, SampleRate: s.rate},
			Data:           data,
			SourceBitDepth: 32,
		},
	}
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
