// SPDX-License-Identifier: EPL-2.0

// Package stream moves audio between a timeline store and a device running
// at its own sample rate.
//
// A Reader pulls track-rate data for a host-rate window and converts it,
// treating gaps as silence. A Writer converts host-rate input to the track
// rate and stores it. Both keep converter state across calls and reset it
// when the caller's position jumps.
package stream
