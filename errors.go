// SPDX-License-Identifier: EPL-2.0

package audtrack

import "errors"

var (
	ErrEmptySource  = errors.New("source produced no audio")
	ErrInvalidRange = errors.New("invalid export range")
	ErrInvalidRate  = errors.New("invalid sample rate")
)
