// SPDX-License-Identifier: EPL-2.0

// Package audtrack moves audio between files and timeline tracks.
//
// The packages underneath do the real work: timeline stores sparse audio
// blocks, stream renders them at a host rate, engine plays and records them
// on a device and formats/* decode files. This package glues those together
// for the common cases:
//
//	tr, err := audtrack.ImportFile("take.wav", audtrack.Formats(),
//		audtrack.WithRate(48000))
//	...
//	f, _ := os.Create("bounce.wav")
//	frames, err := audtrack.ExportWAV(f, tr, 0, tr.End(), 48000, 24)
//
// Imported tracks keep the file's rate and channel count unless an option
// asks otherwise. Exports render through a stream.Reader, so gaps come out
// as silence and the track is resampled to the requested rate.
package audtrack
