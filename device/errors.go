// SPDX-License-Identifier: EPL-2.0

package device

import "errors"

var (
	ErrNotInitialized = errors.New("audio backend not initialized")
	ErrNoInput        = errors.New("backend has no input devices")
	ErrNoOutput       = errors.New("backend has no output devices")
	ErrBadDevice      = errors.New("device index out of range")
	ErrStreamClosed   = errors.New("stream closed")
	ErrBadConfig      = errors.New("invalid stream configuration")
)
