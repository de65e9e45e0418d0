// SPDX-License-Identifier: EPL-2.0

// Package ringbuf provides a single-producer single-consumer float32 ring
// buffer for handing samples between a control goroutine and a real-time
// audio callback.
//
// Neither side ever blocks or allocates. A writer with too little room drops
// the excess, and a reader with too little data receives silence for the
// shortfall. The two cursors are published with atomic loads and stores, so
// the producer's stores are visible to the consumer before it reads them.
package ringbuf

import "sync/atomic"

type Buffer struct {
	data []float32
	cap  int64

	// read is owned by the consumer, write by the producer.
	read  atomic.Int64
	write atomic.Int64
	reads atomic.Int64
}

// New returns a buffer holding up to length samples. One extra slot
// separates full from empty.
func New(length int) *Buffer {
	length = max(length, 0)
	return &Buffer{
		data: make([]float32, length+1),
		cap:  int64(length + 1),
	}
}

// Capacity is the internal slot count, one more than the usable length.
func (b *Buffer) Capacity() int { return int(b.cap) }

// AvailableLength is the number of samples ready to read.
func (b *Buffer) AvailableLength() int {
	w := b.write.Load()
	r := b.read.Load()
	return int((w - r + b.cap) % b.cap)
}

// AvailableSpace is the number of samples that can be written.
func (b *Buffer) AvailableSpace() int {
	return int(b.cap) - 1 - b.AvailableLength()
}

// Reads counts Read calls.
func (b *Buffer) Reads() int64 { return b.reads.Load() }

// Write copies as much of samples as fits and returns how many were copied.
// Producer side only.
func (b *Buffer) Write(samples []float32) int {
	w := b.write.Load()
	r := b.read.Load()
	space := b.cap - 1 - (w-r+b.cap)%b.cap
	n := min(int64(len(samples)), space)
	if n <= 0 {
		return 0
	}

	first := min(n, b.cap-w)
	copy(b.data[w:w+first], samples[:first])
	copy(b.data, samples[first:n])

	b.write.Store((w + n) % b.cap)
	return int(n)
}

// Read fills dst, zero-padding whatever the buffer cannot supply, and
// returns how many samples came from the buffer. Consumer side only.
func (b *Buffer) Read(dst []float32) int {
	r := b.read.Load()
	w := b.write.Load()
	avail := (w - r + b.cap) % b.cap
	n := min(int64(len(dst)), avail)

	if n > 0 {
		first := min(n, b.cap-r)
		copy(dst[:first], b.data[r:r+first])
		copy(dst[first:n], b.data[:n-first])
		b.read.Store((r + n) % b.cap)
	}
	clear(dst[n:])

	b.reads.Add(1)
	return int(n)
}

// Reset drops any buffered samples. It must not race with Read or Write.
func (b *Buffer) Reset() {
	b.read.Store(0)
	b.write.Store(0)
}
