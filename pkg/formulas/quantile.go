package formulas

import (
	"math"
	"sort"
)

// Quantile returns the p-quantile (0 <= p <= 1) of the series using linear
// interpolation between closest ranks, the same convention numpy's
// percentile function uses. Returns nil for an empty series.
func Quantile(data []float64, p float64) *float64 {
	n := len(data)
	if n == 0 {
		return nil
	}

	sorted := make([]float64, n)
	copy(sorted, data)
	sort.Float64s(sorted)

	if n == 1 {
		v := sorted[0]
		return &v
	}

	if p <= 0 {
		v := sorted[0]
		return &v
	}
	if p >= 1 {
		v := sorted[n-1]
		return &v
	}

	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)

	v := sorted[lo]*(1-frac) + sorted[hi]*frac
	return &v
}

// Median returns the 50th percentile of the series, or nil when empty.
func Median(data []float64) *float64 {
	return Quantile(data, 0.5)
}
