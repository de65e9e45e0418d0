// SPDX-License-Identifier: EPL-2.0

package utils

// FullScale returns the magnitude used to normalize signed PCM of the given bit
// depth into [-1, 1]. Unknown depths are treated as 16-bit.
func FullScale(bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return 128.0
	case 24:
		return 8388608.0
	case 32:
		return 2147483648.0
	default:
		return 32768.0
	}
}

// Clamp limits x to [-1, 1].
func Clamp(x float32) float32 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

// FloatToPCM converts a normalized sample into a signed integer of bitDepth
// bits. The positive peak is scaled by FullScale-1 so 1.0 never overflows.
func FloatToPCM(x float32, bitDepth int) int {
	scale := FullScale(bitDepth)
	return int(Clamp(x) * (scale - 1))
}

// PCMToFloat is the inverse of FloatToPCM, without clamping.
func PCMToFloat(v int, bitDepth int) float32 {
	return float32(v) / FullScale(bitDepth)
}
