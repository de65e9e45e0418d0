// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ik5/audtrack/device"
)

// Devices lists what the backend currently offers.
func (e *Engine) Devices() ([]device.Info, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend.Devices()
}

// OutputDevice returns the selected output identity and its index.
func (e *Engine) OutputDevice() (string, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outID, e.outIndex
}

func (e *Engine) InputDevice() (string, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inID, e.inIndex
}

// SetOutputDevice selects the output by identity. Both directions stop.
func (e *Engine) SetOutputDevice(id string) error {
	return e.setDevice(id, func(id string, index int) { e.outID, e.outIndex = id, index })
}

// SetInputDevice selects the input by identity. Both directions stop.
func (e *Engine) SetInputDevice(id string) error {
	return e.setDevice(id, func(id string, index int) { e.inID, e.inIndex = id, index })
}

func (e *Engine) setDevice(id string, set func(string, int)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	index := device.NoDevice
	if id == "" || id == device.DefaultID {
		id = device.DefaultID
	} else {
		devs, err := e.backend.Devices()
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}
		info, ok := device.Find(devs, id)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownDevice, id)
		}
		index = info.Index
	}

	err := e.forceStop()
	set(id, index)
	e.dirty.devices = true
	e.log.Info("device selected", zap.String("id", id), zap.Int("index", index))
	return err
}

func (e *Engine) SampleRate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// SetSampleRate changes the device rate. Both directions stop.
func (e *Engine) SetSampleRate(rate int) error {
	if rate <= 0 {
		return ErrInvalidRate
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if rate == e.rate {
		return nil
	}
	err := e.forceStop()
	e.rate = rate
	for tr, r := range e.readers {
		err = errors.Join(err, r.Close())
		delete(e.readers, tr)
	}
	e.dirty.devices = true
	e.log.Info("sample rate changed", zap.Int("rate", rate))
	return err
}

// CheckDevices stops both directions, restarts the backend and maps the
// selected identities onto the new device list. Selections that vanished
// fall back to the default.
func (e *Engine) CheckDevices() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	err := e.forceStop()
	if terr := e.backend.Terminate(); terr != nil {
		e.log.Warn("terminate backend", zap.Error(terr))
	}
	if ierr := e.backend.Init(); ierr != nil {
		return errors.Join(err, fmt.Errorf("init %s: %w", e.backend.Name(), ierr))
	}
	devs, lerr := e.backend.Devices()
	if lerr != nil {
		return errors.Join(err, fmt.Errorf("list devices: %w", lerr))
	}

	e.outID, e.outIndex = e.remap(devs, e.outID, "output")
	e.inID, e.inIndex = e.remap(devs, e.inID, "input")
	e.dirty.devices = true
	return err
}

// remap resolves id against devs, falling back to the default device.
func (e *Engine) remap(devs []device.Info, id, kind string) (string, int) {
	if id == "" || id == device.DefaultID {
		return device.DefaultID, device.NoDevice
	}
	info, ok := device.Find(devs, id)
	if !ok {
		e.log.Warn("device not found, using default", zap.String("kind", kind), zap.String("id", id))
		return device.DefaultID, device.NoDevice
	}
	return info.ID, info.Index
}
