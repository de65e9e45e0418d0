// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"fmt"
	"strings"
)

type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Direction int

const (
	Playback Direction = iota
	Recording
)

func (d Direction) String() string {
	if d == Recording {
		return "recording"
	}
	return "playback"
}

// StartMode decides where a direction starts.
type StartMode int

const (
	// StartAuto starts at the time the caller passes.
	StartAuto StartMode = iota
	// StartCursor resumes where the direction last stopped.
	StartCursor
	// StartRegion starts at the group's region start.
	StartRegion
)

func (m StartMode) String() string {
	switch m {
	case StartCursor:
		return "cursor"
	case StartRegion:
		return "region"
	}
	return "auto"
}

func ParseStartMode(s string) (StartMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return StartAuto, nil
	case "cursor":
		return StartCursor, nil
	case "region", "region-start", "region_start":
		return StartRegion, nil
	}
	return StartAuto, fmt.Errorf("%w: start mode %q", ErrUnknownMode, s)
}

// StopMode decides what a stop request stops.
type StopMode int

const (
	// StopAuto stops only the direction asked.
	StopAuto StopMode = iota
	// StopDuplex stops both directions when they run on the same group.
	StopDuplex
)

func (m StopMode) String() string {
	if m == StopDuplex {
		return "duplex"
	}
	return "auto"
}

func ParseStopMode(s string) (StopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return StopAuto, nil
	case "duplex":
		return StopDuplex, nil
	}
	return StopAuto, fmt.Errorf("%w: stop mode %q", ErrUnknownMode, s)
}
