// SPDX-License-Identifier: EPL-2.0

package mp3

import "errors"

// ErrNotMP3File wraps the decoder's complaint when the stream has no valid frame.
var ErrNotMP3File = errors.New("not an MP3 file")
