// SPDX-License-Identifier: EPL-2.0

// Package engine runs playback and recording of timeline groups against an
// audio device.
//
// Each direction is independently Stopped, Playing or Paused. A device
// callback only ever touches a ring buffer; the control side fills the
// playback ring from the mix and drains the recording ring into tracks on
// every Tick, which Run calls on a timer. When one group plays and records
// at once, the second direction to start takes its start time from the
// first one's device position so both stay sample aligned.
//
// All exported methods are safe for concurrent use.
package engine
