// SPDX-License-Identifier: MIT
package audio

import "math"

// PeakLevel returns the largest absolute sample in buf as a fraction of full
// scale. The scan is branchless and does not allocate.
func PeakLevel(buf []int16) float64 {
	return float64(peakAmplitude(buf)) / -math.MinInt16
}

// peakAmplitude returns max(|s|) over buf.
func peakAmplitude(buf []int16) int32 {
	var maxAmplitude int32
	for _, s := range buf {
		sample := int32(s)
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask

		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 31)) ^ diff
	}
	return maxAmplitude
}
