// SPDX-License-Identifier: EPL-2.0

// Package device abstracts audio hardware behind Backend and Stream.
//
// Devices are identified by "<hostAPI>: <device>" strings, which survive a
// backend re-initialization while numeric indices do not. Callbacks receive
// interleaved float32 frames and must not block.
//
// Stop and Close are synchronous: once either returns, the stream's callback
// is not running and will not run again. Callers rely on this to free the
// buffers the callback touches.
//
// Null is an in-process backend driven by hand, for tests and headless use.
package device
