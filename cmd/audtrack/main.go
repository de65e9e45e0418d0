// SPDX-License-Identifier: EPL-2.0

// Command audtrack plays, records and converts audio against timeline tracks
// and serves the engine over HTTP.
package main

func main() {
	Execute()
}
