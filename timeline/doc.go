// SPDX-License-Identifier: EPL-2.0

// Package timeline stores multi-channel audio as a sparse, time-addressed
// sequence of blocks.
//
// A Store keeps its blocks sorted by start and pairwise disjoint. Times
// cross the API in seconds and are converted once, with Tolerance, into
// int64 sample indices; everything behind the boundary is exact integer
// arithmetic. Queries take a shared lock and mutations an exclusive one, so
// concurrent visualization reads never block each other.
//
// A Track is a Store with identity and playback attributes. SmartTrack
// groups several takes of the same material and exposes the selected one.
// Both satisfy Lane and can be held in a Registry by generation-checked
// Handle and arranged into a Group.
package timeline
