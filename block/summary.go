// SPDX-License-Identifier: EPL-2.0

package block

import "math"

// Decimations are the allowed summary bucket sizes, ascending. Hints are
// rounded down into this set so that similar zoom levels share a cache entry.
var Decimations = []int{1, 4, 16, 64, 256, 1024, 4096, 16384, 65536}

// SelectDecimation rounds hint down to the nearest allowed decimation. It is
// monotonically non-decreasing in hint and never returns less than 1.
func SelectDecimation(hint int) int {
	chosen := Decimations[0]
	for _, d := range Decimations {
		if d > hint {
			break
		}
		chosen = d
	}
	return chosen
}

// Summary holds per-bucket, per-channel statistics, interleaved the same way
// as samples: bucket b, channel c lives at index b*Channels+c. The last
// bucket may cover fewer than Decimation frames.
type Summary struct {
	Decimation int
	Channels   int
	Min        []float32
	Max        []float32
	Avg        []float32
	Var        []float32
}

func (s *Summary) Buckets() int { return len(s.Avg) / s.Channels }

// Slice returns a copy of buckets [from, to).
func (s *Summary) Slice(from, to int) *Summary {
	ch := s.Channels
	cp := func(v []float32) []float32 {
		out := make([]float32, (to-from)*ch)
		copy(out, v[from*ch:to*ch])
		return out
	}
	return &Summary{
		Decimation: s.Decimation,
		Channels:   ch,
		Min:        cp(s.Min),
		Max:        cp(s.Max),
		Avg:        cp(s.Avg),
		Var:        cp(s.Var),
	}
}

// pageFrames is the span of one cached page at decimations below it. Larger
// decimations cache one bucket per page.
const pageFrames = 1 << 16

func pageBuckets(dec int) int { return max(1, pageFrames/dec) }

func newSummary(dec, ch, buckets int) *Summary {
	return &Summary{
		Decimation: dec,
		Channels:   ch,
		Min:        make([]float32, buckets*ch),
		Max:        make([]float32, buckets*ch),
		Avg:        make([]float32, buckets*ch),
		Var:        make([]float32, buckets*ch),
	}
}

func (b *Block) buckets(dec int) int {
	return (b.Frames() + dec - 1) / dec
}

// Summary returns the statistics of the whole block at decimation.
func (b *Block) Summary(decimation int) *Summary {
	dec := max(1, decimation)
	return b.SummaryRange(dec, 0, b.buckets(dec))
}

// SummaryRange returns buckets [from, to) at decimation, which must come
// from Decimations. The cost is bounded by the window, not the block:
// decimation 1 is copied straight from the samples and coarser decimations
// are cached in pages that survive appends.
func (b *Block) SummaryRange(decimation, from, to int) *Summary {
	dec := max(1, decimation)
	ch := b.channels
	from = max(from, 0)
	to = min(to, b.buckets(dec))
	out := newSummary(dec, ch, max(0, to-from))
	if to <= from {
		return out
	}

	if dec == 1 {
		raw := b.data[from*ch : to*ch]
		copy(out.Min, raw)
		copy(out.Max, raw)
		copy(out.Avg, raw)
		return out
	}

	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()

	per := pageBuckets(dec)
	for p := from / per; p*per < to; p++ {
		pg := b.page(dec, p, per)
		lo := max(from, p*per)
		hi := min(to, p*per+pg.Buckets())
		src, dst := (lo-p*per)*ch, (lo-from)*ch
		n := (hi - lo) * ch
		copy(out.Min[dst:dst+n], pg.Min[src:])
		copy(out.Max[dst:dst+n], pg.Max[src:])
		copy(out.Avg[dst:dst+n], pg.Avg[src:])
		copy(out.Var[dst:dst+n], pg.Var[src:])
	}
	return out
}

// page returns cached page p of dec, building it if needed. cacheMu must
// be held.
func (b *Block) page(dec, p, per int) *Summary {
	if pg, ok := b.cache[dec][p]; ok {
		return pg
	}
	pg := b.build(dec, p*per, min((p+1)*per, b.buckets(dec)))
	if b.cache == nil {
		b.cache = make(map[int]map[int]*Summary)
	}
	if b.cache[dec] == nil {
		b.cache[dec] = make(map[int]*Summary)
	}
	b.cache[dec][p] = pg
	return pg
}

// invalidateFrom drops every cached page covering frames at or after frame.
func (b *Block) invalidateFrom(frame int) {
	b.invalidateRange(frame, math.MaxInt)
}

// invalidateRange drops the cached pages overlapping frames [from, to).
func (b *Block) invalidateRange(from, to int) {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	for dec, pages := range b.cache {
		span := pageBuckets(dec) * dec
		for p := range pages {
			if p*span < to && (p+1)*span > from {
				delete(pages, p)
			}
		}
	}
}

// build computes buckets [from, to) at dec.
func (b *Block) build(dec, from, to int) *Summary {
	ch := b.channels
	frames := b.Frames()
	s := newSummary(dec, ch, to-from)

	for bk := from; bk < to; bk++ {
		f0 := bk * dec
		f1 := min(f0+dec, frames)
		n := float64(f1 - f0)
		for c := range ch {
			lo := b.data[f0*ch+c]
			hi := lo
			var sum, sumSq float64
			for f := f0; f < f1; f++ {
				v := b.data[f*ch+c]
				lo = min(lo, v)
				hi = max(hi, v)
				sum += float64(v)
				sumSq += float64(v) * float64(v)
			}
			mean := sum / n
			i := (bk-from)*ch + c
			s.Min[i] = lo
			s.Max[i] = hi
			s.Avg[i] = float32(mean)
			s.Var[i] = float32(max(0, sumSq/n-mean*mean))
		}
	}
	return s
}
