// SPDX-License-Identifier: MIT
package utils

import "math"

// sineAmplitude keeps generated signals just below full scale.
const sineAmplitude = 0.9

// GenerateSineWave returns size samples of a sine at frequency Hz, scaled to
// the [-1, 1] range.
func GenerateSineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * sineAmplitude
	}
	return buffer
}

// GenerateSineWave16 is GenerateSineWave scaled to signed 16-bit samples.
func GenerateSineWave16(size int, sampleRate, frequency float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int16(math.Sin(2*math.Pi*frequency*t) * sineAmplitude * math.MaxInt16)
	}
	return buffer
}

// GenerateComplexWave returns a 440Hz fundamental with its 2nd and 3rd harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
	}
	return buffer
}

// SineOscillator produces a continuous sine across successive buffers.
type SineOscillator struct {
	phase     float64
	increment float64
	amplitude float64
}

// NewSineOscillator creates an oscillator at frequency Hz. Amplitude is a
// fraction of full scale and is clamped to [0, 1].
func NewSineOscillator(sampleRate, frequency, amplitude float64) *SineOscillator {
	amplitude = math.Max(0, math.Min(1, amplitude))
	return &SineOscillator{
		increment: 2 * math.Pi * frequency / sampleRate,
		amplitude: amplitude,
	}
}

// Fill writes len(dst)/channels frames into dst, interleaved, with the same
// value on every channel.
func (o *SineOscillator) Fill(dst []int16, channels int) {
	if channels < 1 {
		channels = 1
	}
	for f := 0; f+channels <= len(dst); f += channels {
		v := int16(math.Sin(o.phase) * o.amplitude * math.MaxInt16)
		for c := range channels {
			dst[f+c] = v
		}
		o.phase += o.increment
		if o.phase >= 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	if startBin > endBin {
		return 0
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
