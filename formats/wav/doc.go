// SPDX-License-Identifier: EPL-2.0

// Package wav reads and writes integer PCM WAV files through
// github.com/go-audio/wav.
//
// Decoder yields an audio.Source of float32 samples in [-1, 1] for 8, 16, 24
// and 32-bit files with any channel count. Encode drains an audio.Source into
// a new file at the requested bit depth:
//
//	f, _ := os.Create("out.wav")
//	defer f.Close()
//	frames, err := wav.Encode(f, src, 24)
package wav
