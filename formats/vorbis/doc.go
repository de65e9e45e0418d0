// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis files through github.com/jfreymuth/oggvorbis.
//
// The decoder already produces interleaved float32, so the Source returned by
// Decoder passes samples through unchanged.
package vorbis
