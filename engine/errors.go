// SPDX-License-Identifier: EPL-2.0

package engine

import "errors"

var (
	ErrPlaybackActive  = errors.New("playback already active")
	ErrRecordingActive = errors.New("recording already active")
	ErrNotPlaying      = errors.New("direction is not playing")
	ErrNotPaused       = errors.New("direction is not paused")
	ErrNoGroup         = errors.New("no group given")
	ErrInvalidTime     = errors.New("invalid start time")
	ErrUnknownDevice   = errors.New("unknown audio device")
	ErrInvalidRate     = errors.New("sample rate must be positive")
	ErrReadonlyTarget  = errors.New("recording target is readonly")
	ErrNoTarget        = errors.New("record slot has no track")
	ErrClosed          = errors.New("engine closed")
	ErrUnknownMode     = errors.New("unknown mode")
)
