// SPDX-License-Identifier: EPL-2.0

package block

import (
	"fmt"
	"sync"
)

type Block struct {
	channels int
	data     []float32

	cacheMu sync.Mutex
	// cache holds summary pages by decimation, then page index.
	cache map[int]map[int]*Summary
}

// New returns a silent block of frames frames.
func New(channels, frames int) *Block {
	return &Block{
		channels: channels,
		data:     make([]float32, frames*channels),
	}
}

// FromSamples copies interleaved samples into a new block.
func FromSamples(channels int, samples []float32) (*Block, error) {
	if channels < 1 || len(samples)%channels != 0 {
		return nil, ErrRaggedSamples
	}
	data := make([]float32, len(samples))
	copy(data, samples)
	return &Block{channels: channels, data: data}, nil
}

func (b *Block) Channels() int { return b.channels }
func (b *Block) Frames() int   { return len(b.data) / b.channels }

// Samples exposes the backing storage. Callers must not modify it and must
// not keep it past the next mutation.
func (b *Block) Samples() []float32 { return b.data }

func (b *Block) String() string {
	return fmt.Sprintf("Block(channels=%d frames=%d)", b.channels, b.Frames())
}

// Read copies up to frames frames starting at frame offset into dst and
// returns how many frames were copied.
func (b *Block) Read(dst []float32, offset, frames int) int {
	if offset < 0 || offset >= b.Frames() {
		return 0
	}
	n := min(frames, b.Frames()-offset, len(dst)/b.channels)
	copy(dst, b.data[offset*b.channels:(offset+n)*b.channels])
	return n
}

// Write overwrites frames starting at offset. The block never grows here;
// frames past the end are ignored. Returns frames written.
func (b *Block) Write(src []float32, offset int) int {
	if offset < 0 || offset >= b.Frames() {
		return 0
	}
	n := min(len(src)/b.channels, b.Frames()-offset)
	copy(b.data[offset*b.channels:], src[:n*b.channels])
	b.invalidateRange(offset, offset+n)
	return n
}

// Split truncates b to [0, frame) and returns a new block owning the frames
// from frame onwards.
func (b *Block) Split(frame int) (*Block, error) {
	if frame <= 0 || frame >= b.Frames() {
		return nil, ErrSplitRange
	}
	tail := make([]float32, len(b.data)-frame*b.channels)
	copy(tail, b.data[frame*b.channels:])
	b.data = b.data[:frame*b.channels:frame*b.channels]
	b.invalidateFrom(frame)
	return &Block{channels: b.channels, data: tail}, nil
}

// Truncate drops every frame from frame onwards.
func (b *Block) Truncate(frame int) error {
	if frame <= 0 || frame > b.Frames() {
		return ErrOutOfRange
	}
	b.data = b.data[:frame*b.channels]
	b.invalidateFrom(frame)
	return nil
}

// Append grows b by the frames of other.
func (b *Block) Append(other *Block) error {
	if other.channels != b.channels {
		return ErrChannelMismatch
	}
	end := b.Frames()
	b.data = append(b.data, other.data...)
	b.invalidateFrom(end)
	return nil
}

// AppendSamples grows b by interleaved samples.
func (b *Block) AppendSamples(samples []float32) error {
	if len(samples)%b.channels != 0 {
		return ErrRaggedSamples
	}
	end := b.Frames()
	b.data = append(b.data, samples...)
	b.invalidateFrom(end)
	return nil
}

// Slice copies frames [from, to) into a new block.
func (b *Block) Slice(from, to int) (*Block, error) {
	if from < 0 || to > b.Frames() || from >= to {
		return nil, ErrOutOfRange
	}
	return FromSamples(b.channels, b.data[from*b.channels:to*b.channels])
}
