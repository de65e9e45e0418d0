// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes uncompressed AIFF files through
// github.com/go-audio/aiff.
//
// Samples are big-endian signed integers of 8, 16, 24 or 32 bits; the decoder
// yields them as float32 in [-1, 1] with the file's rate and channel count.
// AIFF-C compressed variants are rejected.
package aiff
