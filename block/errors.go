// SPDX-License-Identifier: EPL-2.0

package block

import "errors"

var (
	ErrChannelMismatch = errors.New("block channel counts differ")
	ErrSplitRange      = errors.New("split point must lie strictly inside the block")
	ErrOutOfRange      = errors.New("frame range outside of block")
	ErrRaggedSamples   = errors.New("sample count is not a multiple of channels")
)
