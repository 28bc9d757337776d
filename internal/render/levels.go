package render

import (
	"math"

	"spectrograph/internal/spectral"
)

// DefaultFloorDB is the quietest level shown by the heat map, relative to
// the loudest cell.
const DefaultFloorDB = -90.0

// toDB converts v to decibels relative to ref. Non-positive values map to
// -Inf.
func toDB(v, ref float64) float64 {
	if v <= 0 || ref <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v/ref)
}

// normalizedLevel maps v onto [0, 1], where 0 is floorDB (or quieter) below
// ref and 1 is ref.
func normalizedLevel(v, ref, floorDB float64) float64 {
	db := toDB(v, ref)
	if math.IsInf(db, -1) || db <= floorDB {
		return 0
	}
	if db >= 0 {
		return 1
	}
	return 1 - db/floorDB
}

// matrixLevels returns the normalized level of every cell of m, one row per
// frequency bin. An empty matrix yields nil.
func matrixLevels(m spectral.Matrix, floorDB float64) [][]float64 {
	if m.Empty() {
		return nil
	}
	ref := m.Max()
	rows, cols := m.Dims()
	levels := make([][]float64, rows)
	for r := range rows {
		row := m.Magnitudes.RawRowView(r)
		levels[r] = make([]float64, cols)
		for c, v := range row {
			levels[r][c] = normalizedLevel(v, ref, floorDB)
		}
	}
	return levels
}

// downsample reduces mags to at most n points, keeping the largest value of
// each bucket so peaks survive. The result reuses dst when it is large
// enough.
func downsample(dst, mags []float64, n int) []float64 {
	if n <= 0 || len(mags) <= n {
		return append(dst[:0], mags...)
	}
	dst = dst[:0]
	for i := range n {
		lo := i * len(mags) / n
		hi := (i + 1) * len(mags) / n
		peak := mags[lo]
		for _, v := range mags[lo+1 : hi] {
			peak = max(peak, v)
		}
		dst = append(dst, peak)
	}
	return dst
}
