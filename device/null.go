// SPDX-License-Identifier: EPL-2.0

package device

import (
	"slices"
	"sync"
)

// Null is a Backend without hardware. Streams only run their callbacks when
// pumped, which makes the timing fully deterministic.
type Null struct {
	mu          sync.Mutex
	devices     []Info
	initialized bool
	inits       int
	outputs     []*NullStream
	inputs      []*NullStream

	// FailOpen and FailStart, when set, are returned by the next open or
	// start respectively.
	FailOpen  error
	FailStart error
}

// NullDevices is the device list a Null backend starts with.
func NullDevices() []Info {
	return []Info{
		{ID: Identity("Null", "Output"), Index: 0, HostAPI: "Null", Name: "Output",
			MaxOutputChannels: 2, DefaultSampleRate: 48000, DefaultOutput: true},
		{ID: Identity("Null", "Input"), Index: 1, HostAPI: "Null", Name: "Input",
			MaxInputChannels: 2, DefaultSampleRate: 48000, DefaultInput: true},
	}
}

func NewNull() *Null {
	return &Null{devices: NullDevices()}
}

func (n *Null) Name() string { return "null" }

func (n *Null) Init() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.initialized = true
	n.inits++
	return nil
}

func (n *Null) Terminate() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.initialized = false
	return nil
}

// Inits counts Init calls.
func (n *Null) Inits() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inits
}

// SetDevices replaces the device list, as if hardware changed. Indices are
// renumbered in order.
func (n *Null) SetDevices(devs []Info) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.devices = slices.Clone(devs)
	for i := range n.devices {
		n.devices[i].Index = i
		if n.devices[i].ID == "" {
			n.devices[i].ID = Identity(n.devices[i].HostAPI, n.devices[i].Name)
		}
	}
}

func (n *Null) Devices() ([]Info, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.initialized {
		return nil, ErrNotInitialized
	}
	return slices.Clone(n.devices), nil
}

func (n *Null) OpenOutput(cfg StreamConfig, fn OutputCallback) (Stream, error) {
	s, err := n.open(cfg)
	if err != nil {
		return nil, err
	}
	s.out = fn
	n.mu.Lock()
	n.outputs = append(n.outputs, s)
	n.mu.Unlock()
	return s, nil
}

func (n *Null) OpenInput(cfg StreamConfig, fn InputCallback) (Stream, error) {
	s, err := n.open(cfg)
	if err != nil {
		return nil, err
	}
	s.in = fn
	n.mu.Lock()
	n.inputs = append(n.inputs, s)
	n.mu.Unlock()
	return s, nil
}

func (n *Null) open(cfg StreamConfig) (*NullStream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.initialized {
		return nil, ErrNotInitialized
	}
	if cfg.Device != NoDevice && (cfg.Device < 0 || cfg.Device >= len(n.devices)) {
		return nil, ErrBadDevice
	}
	if err := n.FailOpen; err != nil {
		n.FailOpen = nil
		return nil, err
	}
	s := &NullStream{cfg: cfg, owner: n}
	return s, nil
}

// Output returns the most recently opened output stream, or nil.
func (n *Null) Output() *NullStream {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.outputs) == 0 {
		return nil
	}
	return n.outputs[len(n.outputs)-1]
}

// Input returns the most recently opened input stream, or nil.
func (n *Null) Input() *NullStream {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.inputs) == 0 {
		return nil
	}
	return n.inputs[len(n.inputs)-1]
}

func (n *Null) takeStartFailure() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.FailStart
	n.FailStart = nil
	return err
}

// NullStream runs its callback only from Pump or Feed.
type NullStream struct {
	owner *Null
	cfg   StreamConfig
	out   OutputCallback
	in    InputCallback

	mu      sync.Mutex
	running bool
	closed  bool
	calls   int
	buf     []float32
}

func (s *NullStream) Config() StreamConfig { return s.cfg }

func (s *NullStream) Start() error {
	if err := s.owner.takeStartFailure(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.running = true
	return nil
}

func (s *NullStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *NullStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.closed = true
	return nil
}

func (s *NullStream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *NullStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Calls counts callback invocations.
func (s *NullStream) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Pump runs an output callback for frames frames and returns a copy of what
// it produced, or nil when the stream is not running.
func (s *NullStream) Pump(frames int) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.out == nil {
		return nil
	}
	n := frames * s.cfg.Channels
	if cap(s.buf) < n {
		s.buf = make([]float32, n)
	}
	s.buf = s.buf[:n]
	s.out(s.buf)
	s.calls++
	return slices.Clone(s.buf)
}

// Feed hands samples to an input callback. It reports false when the
// stream is not running.
func (s *NullStream) Feed(samples []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.in == nil {
		return false
	}
	s.in(samples)
	s.calls++
	return true
}
