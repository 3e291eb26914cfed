package metric

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/eth-easl/bencher/pkg/common"
)

// Summary condenses a sample sequence into the headline statistics of a
// benchmark report.
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	StdDev float64
	CV     float64
	Min    float64
	Max    float64
	P50    float64
	P90    float64
	P95    float64
	P99    float64
}

// Summarize computes the summary of a latency sequence in milliseconds.
// An empty input yields the zero summary.
func Summarize(samples []float64) Summary {
	if len(samples) == 0 {
		return Summary{}
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	mean := stat.Mean(sorted, nil)
	stdDev := 0.0
	if len(sorted) > 1 {
		stdDev = stat.StdDev(sorted, nil)
	}

	cv := common.UndefinedCV
	if mean > 0.0 {
		cv = stdDev / mean
	}

	median := percentile(sorted, 0.50)

	return Summary{
		Count:  len(samples),
		Mean:   mean,
		Median: median,
		StdDev: stdDev,
		CV:     cv,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P50:    median,
		P90:    percentile(sorted, 0.90),
		P95:    percentile(sorted, 0.95),
		P99:    percentile(sorted, 0.99),
	}
}

// percentile interpolates linearly between the two closest order statistics.
// The input must be sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0.0
	}

	rank := p * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)

	return sorted[lower]*(1.0-weight) + sorted[upper]*weight
}

// DegradationThreshold is the slowdown factor between the earliest and the
// most recent measurement window above which a run counts as degrading
// rather than merely noisy.
const DegradationThreshold = 1.5

// IsDegrading compares the newest window of samples against the earliest
// one. Latencies drifting upward over a run poison every whole-sequence
// statistic, so the driver reports this separately from instability.
func IsDegrading(samples []float64, window int) bool {
	if window <= 0 || len(samples) < window*2 {
		return false
	}

	first := stat.Mean(samples[:window], nil)
	last := stat.Mean(samples[len(samples)-window:], nil)
	if first <= 0.0 {
		return false
	}

	return last/first >= DegradationThreshold
}
