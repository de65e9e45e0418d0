// SPDX-License-Identifier: EPL-2.0

package audtrack

import (
	"github.com/ik5/audtrack/audio"
	"github.com/ik5/audtrack/formats/aiff"
	"github.com/ik5/audtrack/formats/mp3"
	"github.com/ik5/audtrack/formats/vorbis"
	"github.com/ik5/audtrack/formats/wav"
)

// Formats returns a registry holding every built-in decoder.
func Formats() *audio.Registry {
	r := audio.NewRegistry()
	r.Register("wav", wav.Decoder{}, "wav", "wave")
	r.Register("aiff", aiff.Decoder{}, "aiff", "aif")
	r.Register("mp3", mp3.Decoder{}, "mp3")
	r.Register("vorbis", vorbis.Decoder{}, "ogg", "oga")
	return r
}

// framer is implemented by sources that know their length up front.
type framer interface {
	Frames() int64
}

// Frames reports the length of src in frames, or -1 when it is unknown.
func Frames(src audio.Source) int64 {
	if f, ok := src.(framer); ok {
		return f.Frames()
	}
	return -1
}
