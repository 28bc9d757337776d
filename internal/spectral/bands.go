package spectral

import (
	"math"
	"sort"

	"spectrograph/pkg/utils"

	"gonum.org/v1/gonum/floats"
)

// Band is a named frequency range, inclusive of LowHz and exclusive of HighHz.
type Band struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands covers the audible range in six perceptual bands. The last
// band extends to Nyquist.
var DefaultBands = []Band{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// BandEnergy is the RMS magnitude within a Band.
type BandEnergy struct {
	Name   string  `json:"name"`
	Energy float64 `json:"energy"`
}

// Bands returns the RMS magnitude of l within each of DefaultBands. Bands
// without any bin report zero.
func Bands(l Line) []BandEnergy {
	return BandsOf(l, DefaultBands)
}

// BandsOf is Bands for an arbitrary band layout. l.Freqs must be ascending.
func BandsOf(l Line, bands []Band) []BandEnergy {
	out := make([]BandEnergy, len(bands))
	for i, b := range bands {
		out[i].Name = b.Name
		lo := sort.SearchFloat64s(l.Freqs, b.LowHz)
		hi := sort.SearchFloat64s(l.Freqs, b.HighHz)
		if hi > len(l.Magnitudes) {
			hi = len(l.Magnitudes)
		}
		if lo >= hi {
			continue
		}
		m := l.Magnitudes[lo:hi]
		out[i].Energy = math.Sqrt(floats.Dot(m, m) / float64(len(m)))
	}
	return out
}

// PeakBin returns the index of the largest magnitude in l, or -1 when l is
// empty.
func PeakBin(l Line) int {
	if len(l.Magnitudes) == 0 {
		return -1
	}
	return utils.FindPeakBin(l.Magnitudes, 0, len(l.Magnitudes)-1)
}

// PeakFrequency returns the frequency of PeakBin, or 0 when l is empty.
func PeakFrequency(l Line) float64 {
	bin := PeakBin(l)
	if bin < 0 || bin >= len(l.Freqs) {
		return 0
	}
	return l.Freqs[bin]
}
