// Package stats implements the statistical machinery behind adaptive
// benchmarking: confidence intervals, consensus outlier detection,
// significance testing, and measurement stability analysis. All analyzers
// are stateless and safe for concurrent use as long as the configuration
// they were built with is not mutated.
package stats

import (
	"math"
	"sort"

	"github.com/eth-easl/bencher/pkg/common"
)

// Shared sample statistics. Helpers never mutate their input; anything that
// needs ordering works on a sorted copy.

func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, v := range samples {
		sum += v
	}

	return sum / float64(len(samples))
}

// sampleVariance uses the unbiased n-1 denominator.
func sampleVariance(samples []float64) float64 {
	if len(samples) < common.MinSamplesForAnalysis {
		return 0.0
	}

	m := mean(samples)
	sumSq := 0.0
	for _, v := range samples {
		d := v - m
		sumSq += d * d
	}

	return sumSq / float64(len(samples)-1)
}

func sampleStdDev(samples []float64) float64 {
	return math.Sqrt(sampleVariance(samples))
}

// coefficientOfVariation returns common.UndefinedCV whenever the dispersion
// is not meaningful (fewer than two samples or a non-positive mean).
func coefficientOfVariation(samples []float64) float64 {
	if len(samples) < common.MinSamplesForAnalysis {
		return common.UndefinedCV
	}

	m := mean(samples)
	if m <= 0.0 {
		return common.UndefinedCV
	}

	return sampleStdDev(samples) / m
}

func sortedCopy(samples []float64) []float64 {
	out := make([]float64, len(samples))
	copy(out, samples)
	sort.Float64s(out)

	return out
}

// medianSorted expects ascending input.
func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0.0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}

	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}

func median(samples []float64) float64 {
	return medianSorted(sortedCopy(samples))
}

// medianAbsDeviation is the raw MAD without the 1.4826 consistency factor;
// callers that want a sigma estimate scale it themselves.
func medianAbsDeviation(samples []float64) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	med := median(samples)
	deviations := make([]float64, len(samples))
	for i, v := range samples {
		deviations[i] = math.Abs(v - med)
	}
	sort.Float64s(deviations)

	return medianSorted(deviations)
}

// percentileSorted interpolates linearly between the two closest ranks of an
// ascending slice.
func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0.0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper {
		return sorted[lower]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1.0-weight) + sorted[upper]*weight
}

func interquartileRange(sorted []float64) float64 {
	if len(sorted) < 4 {
		return 0.0
	}

	return percentileSorted(sorted, 0.75) - percentileSorted(sorted, 0.25)
}

// trimmedMean drops the given fraction of samples from each tail. Sequences
// too short to trim fall back to the plain mean.
func trimmedMean(samples []float64, trimFraction float64) float64 {
	if len(samples) < 4 {
		return mean(samples)
	}

	sorted := sortedCopy(samples)
	trim := int(float64(len(sorted)) * trimFraction)

	sum, count := 0.0, 0
	for i := trim; i < len(sorted)-trim; i++ {
		sum += sorted[i]
		count++
	}
	if count == 0 {
		return 0.0
	}

	return sum / float64(count)
}

// indexSlope fits value against iteration index by ordinary least squares
// and returns the slope only. Used for drift detection, where the intercept
// carries no information.
func indexSlope(samples []float64) float64 {
	n := len(samples)
	if n < common.MinSamplesForAnalysis {
		return 0.0
	}

	fn := float64(n)
	sumX := fn * (fn - 1.0) / 2.0
	sumXX := (fn - 1.0) * fn * (2.0*fn - 1.0) / 6.0

	sumY, sumXY := 0.0, 0.0
	for i, v := range samples {
		sumY += v
		sumXY += float64(i) * v
	}

	denominator := fn*sumXX - sumX*sumX
	if denominator == 0.0 {
		return 0.0
	}

	return (fn*sumXY - sumX*sumY) / denominator
}

// populationMoments returns the skewness and excess kurtosis computed with
// population (n) denominators. Zero spread yields (0, 0).
func populationMoments(samples []float64) (skewness, excessKurtosis float64) {
	n := len(samples)
	if n < common.MinSamplesForAnalysis {
		return 0.0, 0.0
	}

	m := mean(samples)
	fn := float64(n)

	variance := 0.0
	for _, v := range samples {
		d := v - m
		variance += d * d
	}
	variance /= fn
	if variance == 0.0 {
		return 0.0, 0.0
	}
	sigma := math.Sqrt(variance)

	m3, m4 := 0.0, 0.0
	for _, v := range samples {
		d := (v - m) / sigma
		m3 += d * d * d
		m4 += d * d * d * d
	}

	return m3 / fn, m4/fn - 3.0
}
