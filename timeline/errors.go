// SPDX-License-Identifier: EPL-2.0

package timeline

import "errors"

var (
	ErrChannelMismatch = errors.New("vector channel count does not match track")
	ErrInvalidTime     = errors.New("invalid time or time range")
	ErrReadonly        = errors.New("track is readonly")
	ErrEmptyVector     = errors.New("empty sample vector")
	ErrClosed          = errors.New("track is closed")
	ErrNoBlock         = errors.New("no block at position")
	ErrInvalidRate     = errors.New("sample rate must be positive")
	ErrStaleHandle     = errors.New("lane handle is stale or unknown")
	ErrNoTake          = errors.New("smart track has no such take")
)
