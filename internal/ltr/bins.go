package ltr

import (
	"math"
	"sort"
)

const maxBinLimit = 65535

// binMapper discretises one feature. A value v falls into the first bin whose
// upper bound is >= v; values above every bound land in the last bin.
type binMapper struct {
	uppers []float64
}

func (m binMapper) numBins() int { return len(m.uppers) + 1 }

func (m binMapper) bin(v float64) uint16 {
	return uint16(sort.SearchFloat64s(m.uppers, clean(v)))
}

// threshold returns the split value separating bins <= b from the rest.
func (m binMapper) threshold(b int) float64 {
	return m.uppers[b]
}

// newBinMapper places bin boundaries halfway between distinct values. With
// more distinct values than maxBin the boundaries follow quantiles of the
// distinct values instead.
func newBinMapper(values []float64, maxBin int) binMapper {
	maxBin = min(max(maxBin, 2), maxBinLimit)
	distinct := make([]float64, 0, len(values))
	for _, v := range values {
		distinct = append(distinct, clean(v))
	}
	sort.Float64s(distinct)
	distinct = compact(distinct)
	if len(distinct) <= 1 {
		return binMapper{}
	}
	if len(distinct) <= maxBin {
		uppers := make([]float64, len(distinct)-1)
		for i := range uppers {
			uppers[i] = (distinct[i] + distinct[i+1]) / 2
		}
		return binMapper{uppers: uppers}
	}
	uppers := make([]float64, 0, maxBin-1)
	for k := 1; k < maxBin; k++ {
		idx := k * len(distinct) / maxBin
		u := (distinct[idx-1] + distinct[idx]) / 2
		if n := len(uppers); n > 0 && uppers[n-1] >= u {
			continue
		}
		uppers = append(uppers, u)
	}
	return binMapper{uppers: uppers}
}

func compact(sorted []float64) []float64 {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func clean(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// binnedMatrix is the row-major bin matrix of a training set.
type binnedMatrix struct {
	mappers []binMapper
	bins    [][]uint16 // [feature][row]
	rows    int
}

func newBinnedMatrix(rows [][]float64, numFeatures, maxBin int) binnedMatrix {
	m := binnedMatrix{
		mappers: make([]binMapper, numFeatures),
		bins:    make([][]uint16, numFeatures),
		rows:    len(rows),
	}
	column := make([]float64, len(rows))
	for f := 0; f < numFeatures; f++ {
		for r, row := range rows {
			column[r] = row[f]
		}
		m.mappers[f] = newBinMapper(column, maxBin)
		m.bins[f] = make([]uint16, len(rows))
		for r, v := range column {
			m.bins[f][r] = m.mappers[f].bin(v)
		}
	}
	return m
}
