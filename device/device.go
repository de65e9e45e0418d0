// SPDX-License-Identifier: EPL-2.0

package device

import "fmt"

// NoDevice is the index used when no specific device is selected, which
// means the backend's default.
const NoDevice = -1

// DefaultID names the system default device.
const DefaultID = "default"

// Info describes one enumerated device.
type Info struct {
	ID                string
	Index             int
	HostAPI           string
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	DefaultInput      bool
	DefaultOutput     bool
}

// Identity builds the persisted identity string of a device.
func Identity(hostAPI, name string) string {
	return fmt.Sprintf("%s: %s", hostAPI, name)
}

func (i Info) String() string { return i.ID }

// Find looks up id among devs. DefaultID and the empty string match no
// device; callers treat that as NoDevice.
func Find(devs []Info, id string) (Info, bool) {
	if id == "" || id == DefaultID {
		return Info{}, false
	}
	for _, d := range devs {
		if d.ID == id {
			return d, true
		}
	}
	return Info{}, false
}

// StreamConfig describes a stream to open. Device is an index from the
// latest Devices call or NoDevice.
type StreamConfig struct {
	Device          int
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// Validate reports whether c can be opened.
func (c StreamConfig) Validate() error {
	if c.SampleRate <= 0 || c.Channels <= 0 || c.FramesPerBuffer < 0 {
		return fmt.Errorf("%w: %+v", ErrBadConfig, c)
	}
	return nil
}

// OutputCallback fills out completely, with silence if need be.
type OutputCallback func(out []float32)

// InputCallback consumes all of in.
type InputCallback func(in []float32)

type Stream interface {
	Start() error
	Stop() error
	Close() error
}

type Backend interface {
	Name() string
	Init() error
	Terminate() error
	Devices() ([]Info, error)
	OpenOutput(cfg StreamConfig, fn OutputCallback) (Stream, error)
	OpenInput(cfg StreamConfig, fn InputCallback) (Stream, error)
}
