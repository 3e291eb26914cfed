/*
 * MIT License
 *
 * Copyright (c) 2023 EASL and the vHive community
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package stats

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/eth-easl/bencher/pkg/common"
)

const defaultBootstrapIterations = 10_000

// ConfidenceInterval brackets a point estimate. Mean holds whatever the
// interval was built around: the sample mean for location intervals, the
// median for RobustInterval, the sample variance for VarianceInterval.
type ConfidenceInterval struct {
	Lower  float64
	Upper  float64
	Mean   float64
	Margin float64
	Level  float64
	Method string
}

func (ci ConfidenceInterval) Width() float64 {
	return ci.Upper - ci.Lower
}

// RelativeWidth is the interval width normalized by the point estimate, the
// quantity stopping rules compare against the configured margin of error.
func (ci ConfidenceInterval) RelativeWidth() float64 {
	if ci.Mean == 0.0 {
		return common.UndefinedCV
	}

	return ci.Width() / math.Abs(ci.Mean)
}

func (ci ConfidenceInterval) Contains(v float64) bool {
	return v >= ci.Lower && v <= ci.Upper
}

func (ci ConfidenceInterval) String() string {
	return fmt.Sprintf("[%.4f, %.4f] around %.4f (%s, %.0f%% confidence)",
		ci.Lower, ci.Upper, ci.Mean, ci.Method, ci.Level*100.0)
}

// IntervalCalculator derives confidence intervals for benchmark sample
// sequences. All methods are total: degenerate input (fewer than two
// samples) yields a zero-width interval centered on the single value, or on
// zero for an empty sequence, never an error or a panic.
type IntervalCalculator struct {
	level float64
	seed  int64
}

func NewIntervalCalculator(cfg *common.AdaptiveConfig) *IntervalCalculator {
	return &IntervalCalculator{
		level: cfg.ConfidenceLevel,
		seed:  cfg.Seed,
	}
}

// TInterval is the classic mean +/- t * s/sqrt(n) interval.
func (c *IntervalCalculator) TInterval(samples []float64) ConfidenceInterval {
	if len(samples) < common.MinSamplesForAnalysis {
		return c.degenerate(samples, "t-distribution")
	}

	n := float64(len(samples))
	m := mean(samples)
	se := sampleStdDev(samples) / math.Sqrt(n)

	t := tCritical(len(samples)-1, c.alpha()/2.0)
	margin := t * se

	return ConfidenceInterval{
		Lower:  m - margin,
		Upper:  m + margin,
		Mean:   m,
		Margin: margin,
		Level:  c.level,
		Method: "t-distribution",
	}
}

// BootstrapInterval resamples the sequence with replacement and takes the
// percentile interval of the resampled means. Resampling is seeded from the
// configuration, so repeated calls on the same input return the same
// interval. iterations <= 0 selects the default of 10000.
func (c *IntervalCalculator) BootstrapInterval(samples []float64, iterations int) ConfidenceInterval {
	if len(samples) < common.MinSamplesForAnalysis {
		return c.degenerate(samples, "bootstrap-percentile")
	}
	if iterations <= 0 {
		iterations = defaultBootstrapIterations
	}

	rng := rand.New(rand.NewSource(c.seed))
	n := len(samples)

	bootMeans := make([]float64, iterations)
	for b := 0; b < iterations; b++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += samples[rng.Intn(n)]
		}
		bootMeans[b] = sum / float64(n)
	}
	sort.Float64s(bootMeans)

	alpha := c.alpha()
	lowerIdx := int(math.Ceil(alpha/2.0*float64(iterations))) - 1
	upperIdx := int(math.Floor((1.0-alpha/2.0)*float64(iterations))) - 1
	lowerIdx = common.MaxOf(0, common.MinOf(lowerIdx, iterations-1))
	upperIdx = common.MaxOf(0, common.MinOf(upperIdx, iterations-1))

	m := mean(samples)
	// Heavily skewed resamples can land both percentiles on one side of the
	// sample mean; the point estimate stays inside the interval regardless.
	lower := math.Min(bootMeans[lowerIdx], m)
	upper := math.Max(bootMeans[upperIdx], m)

	return ConfidenceInterval{
		Lower:  lower,
		Upper:  upper,
		Mean:   m,
		Margin: math.Max(m-lower, upper-m),
		Level:  c.level,
		Method: "bootstrap-percentile",
	}
}

// RobustInterval centers on the median and scales the median absolute
// deviation into a sigma estimate, so single extreme samples barely move it.
func (c *IntervalCalculator) RobustInterval(samples []float64) ConfidenceInterval {
	if len(samples) < common.MinSamplesForAnalysis {
		return c.degenerate(samples, "median-mad")
	}

	n := float64(len(samples))
	med := median(samples)
	mad := medianAbsDeviation(samples)

	t := tCritical(len(samples)-1, c.alpha()/2.0)
	margin := t * 1.4826 * mad / math.Sqrt(n)

	return ConfidenceInterval{
		Lower:  med - margin,
		Upper:  med + margin,
		Mean:   med,
		Margin: margin,
		Level:  c.level,
		Method: "median-mad",
	}
}

// VarianceInterval brackets the sample variance with the chi-square interval
// (n-1)s^2 / chi2. Unlike the location intervals it is asymmetric around the
// point estimate.
func (c *IntervalCalculator) VarianceInterval(samples []float64) ConfidenceInterval {
	if len(samples) < common.MinSamplesForAnalysis {
		return c.degenerate(samples, "variance-chi-square")
	}

	df := len(samples) - 1
	variance := sampleVariance(samples)
	alpha := c.alpha()

	scaled := float64(df) * variance
	lower := scaled / chiSquareQuantile(df, 1.0-alpha/2.0)
	upper := scaled / chiSquareQuantile(df, alpha/2.0)

	return ConfidenceInterval{
		Lower:  lower,
		Upper:  upper,
		Mean:   variance,
		Margin: math.Max(variance-lower, upper-variance),
		Level:  c.level,
		Method: "variance-chi-square",
	}
}

// MeetsPrecisionTarget reports whether the interval is narrow enough
// relative to its point estimate.
func (c *IntervalCalculator) MeetsPrecisionTarget(ci ConfidenceInterval, maxRelativeWidth float64) bool {
	return ci.RelativeWidth() <= maxRelativeWidth
}

// RequiredSampleSize estimates how many samples a run needs for the desired
// absolute margin of error, assuming the spread seen so far. A sequence too
// short to estimate spread from returns a conservative 100.
func (c *IntervalCalculator) RequiredSampleSize(samples []float64, desiredMargin float64) int {
	if len(samples) < common.MinSamplesForAnalysis || desiredMargin <= 0.0 {
		return 100
	}

	z := zCritical(c.alpha() / 2.0)
	sigma := sampleStdDev(samples)
	required := math.Ceil(math.Pow(z*sigma/desiredMargin, 2.0))

	return common.MaxOf(common.MinSamplesForAnalysis, int(required))
}

func (c *IntervalCalculator) alpha() float64 {
	return 1.0 - c.level
}

func (c *IntervalCalculator) degenerate(samples []float64, method string) ConfidenceInterval {
	center := 0.0
	if len(samples) == 1 {
		center = samples[0]
	}

	return ConfidenceInterval{
		Lower:  center,
		Upper:  center,
		Mean:   center,
		Margin: 0.0,
		Level:  c.level,
		Method: method,
	}
}
