// SPDX-License-Identifier: EPL-2.0

// Package audio provides low-level audio processing primitives.
//
// This package contains the building blocks shared by the timeline, the
// stream bridges and the decoders:
//   - Source interface for pull-style audio input
//   - Converter, a stateful push-style sample-rate converter
//   - Resampler, a Source that resamples another Source
//   - ChannelMixer and Remix for channel count changes
//   - Registry for decoder lookup by format or file extension
//
// # Converters
//
// A Converter keeps its interpolation state between calls, so a continuous
// stream can be converted in chunks of any size. The caller hands it all
// input it has and gets back how many input frames were consumed; the rest
// must be supplied again next time:
//
//	conv := audio.NewCubicConverter(2)
//	consumed, produced, err := conv.Convert(in, out, 48000.0/44100.0, 0)
//
// The ratio is input rate over output rate. A non-zero outOffset leaves that
// many frames of silence at the start of out, which is how a reader pads the
// gap before data that starts late. Call Reset after a seek.
//
// CubicConverter is pure Go (Catmull-Rom with a one-pole low-pass when
// downsampling). The audio/sinc subpackage offers libsamplerate converters
// with the same interface.
//
// # Resampling a Source
//
//	resampler := audio.NewResampler(source, 16000)
//	buf := make([]float32, 4096)
//	n, err := resampler.ReadSamples(buf)
//
// # Channel Mixing
//
//	mono := audio.NewMonoMixer(source)
//	stereo := audio.NewChannelMixer(source, 2)
//
// Stereo to mono sums both channels and halves the result.
//
// # Sample Format
//
// Samples are interleaved float32 in [-1.0, 1.0]. Sources return io.EOF when
// no more data is available.
package audio
