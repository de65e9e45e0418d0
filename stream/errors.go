// SPDX-License-Identifier: EPL-2.0

package stream

import "errors"

var (
	ErrInvalidRate  = errors.New("host sample rate must be positive")
	ErrShortBuffer  = errors.New("destination buffer too small")
	ErrRaggedFrames = errors.New("sample count is not a multiple of channels")
	ErrNoStore      = errors.New("no store attached")
)
