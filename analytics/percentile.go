package analytics

import (
	"math"

	dto "github.com/prometheus/client_model/go"
)

// Histogram is an aggregated view of one or more histogram series sharing
// the same bucket layout. Counts are cumulative in boundary order ("le"
// semantics); the implicit +Inf bucket equals Count.
type Histogram struct {
	UpperBounds      []float64
	CumulativeCounts []uint64
	Count            uint64
	Sum              float64
}

// histogramFromDTO converts a gathered histogram into the aggregate form,
// dropping any explicit +Inf bucket in favor of Count
func histogramFromDTO(h *dto.Histogram) Histogram {
	agg := Histogram{
		Count: h.GetSampleCount(),
		Sum:   h.GetSampleSum(),
	}
	for _, b := range h.Bucket {
		if math.IsInf(b.GetUpperBound(), +1) {
			continue
		}
		agg.UpperBounds = append(agg.UpperBounds, b.GetUpperBound())
		agg.CumulativeCounts = append(agg.CumulativeCounts, b.GetCumulativeCount())
	}
	return agg
}

// Merge accumulates another histogram with an identical bucket layout.
// Mismatched layouts are ignored, which can only happen if two series of the
// same family were registered with different buckets.
func (h *Histogram) Merge(other Histogram) {
	if len(h.UpperBounds) == 0 {
		*h = other
		return
	}
	if len(other.UpperBounds) != len(h.UpperBounds) {
		return
	}
	for i := range h.CumulativeCounts {
		h.CumulativeCounts[i] += other.CumulativeCounts[i]
	}
	h.Count += other.Count
	h.Sum += other.Sum
}

// Quantile estimates the q-th quantile (0 < q < 1) by linear interpolation
// inside the bucket that crosses the target cumulative count. Observations
// landing in the overflow bucket yield +Inf, since nothing bounds them above.
// An empty histogram yields NaN.
func (h Histogram) Quantile(q float64) float64 {
	if h.Count == 0 || math.IsNaN(q) {
		return math.NaN()
	}
	if q <= 0 {
		return math.Inf(-1)
	}
	if q >= 1 {
		return math.Inf(+1)
	}

	rank := q * float64(h.Count)

	for i, cum := range h.CumulativeCounts {
		if float64(cum) < rank {
			continue
		}

		lower := 0.0
		prevCum := 0.0
		if i > 0 {
			lower = h.UpperBounds[i-1]
			prevCum = float64(h.CumulativeCounts[i-1])
		}
		upper := h.UpperBounds[i]

		bucketCount := float64(cum) - prevCum
		if bucketCount == 0 {
			return upper
		}
		return lower + (upper-lower)*(rank-prevCum)/bucketCount
	}

	// Target falls in the +Inf overflow bucket.
	return math.Inf(+1)
}
