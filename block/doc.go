// SPDX-License-Identifier: EPL-2.0

// Package block implements the unit of timeline storage: a contiguous run of
// interleaved float32 frames with a fixed channel count.
//
// Blocks can be read and overwritten in place, split in two (each half owning
// its own samples) and grown by appending another block of the same channel
// count. For coarse reads, a block lazily builds per-channel min, max, mean
// and variance over buckets of a decimation factor taken from Decimations;
// any write drops the cached summaries.
package block
