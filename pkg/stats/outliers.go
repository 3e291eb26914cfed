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
	"sort"

	"github.com/eth-easl/bencher/pkg/common"
)

// consensusThreshold is the weighted vote fraction a sample must reach
// before it is treated as an outlier. 0.3 means roughly a third of the
// applicable methods, more if the agreeing methods carry low weights.
const consensusThreshold = 0.3

// minSamplesForOutlierDetection is the floor below which no method produces
// a trustworthy verdict.
const minSamplesForOutlierDetection = 4

// HandlingStrategy says what to do with flagged samples. The zero value
// keeps the data untouched.
type HandlingStrategy int

const (
	// MarkOnly keeps every sample and only reports the indices.
	MarkOnly HandlingStrategy = iota
	// Winsorize clamps flagged samples to the nearest non-outlier value.
	Winsorize
	// Remove drops flagged samples from the sequence.
	Remove
	// Transform log-shifts the whole sequence to shrink extreme values.
	Transform
	// UseRobustStats keeps the data and tells the caller to rely on
	// median/MAD statistics instead of mean/stddev.
	UseRobustStats
)

func (s HandlingStrategy) String() string {
	switch s {
	case MarkOnly:
		return "mark-only"
	case Winsorize:
		return "winsorize"
	case Remove:
		return "remove"
	case Transform:
		return "transform"
	case UseRobustStats:
		return "robust-stats"
	default:
		return "unknown"
	}
}

// OutlierAnalysis is the consensus verdict over all applicable detection
// methods for one sample sequence.
type OutlierAnalysis struct {
	// Indices of flagged samples, ascending.
	Indices []int
	// Scores holds the weighted vote fraction for every sample at least one
	// method flagged, keyed by sample index.
	Scores map[int]float64
	// Rate is flagged count over sequence length.
	Rate     float64
	MaxScore float64
	Strategy HandlingStrategy
	Reason   string
	// MethodHits holds the raw per-method detections, keyed by method name.
	// Only methods applicable to the sequence length appear.
	MethodHits map[string][]int
	Statistics map[string]float64
}

func (a OutlierAnalysis) HasOutliers() bool {
	return len(a.Indices) > 0
}

func (a OutlierAnalysis) Count() int {
	return len(a.Indices)
}

func (a OutlierAnalysis) String() string {
	return fmt.Sprintf("outliers=%d rate=%.3f strategy=%s (%s)",
		a.Count(), a.Rate, a.Strategy, a.Reason)
}

// outlierMethod is one registry entry. The applicability predicate gates
// both detection and the consensus denominator, so a method that cannot run
// on a short sequence does not dilute the votes of those that can.
type outlierMethod struct {
	name       string
	weight     float64
	applicable func(n int) bool
	detect     func(d *OutlierDetector, samples []float64) []int
}

var outlierMethods = []outlierMethod{
	{"iqr", 1.0, func(n int) bool { return n >= minSamplesForOutlierDetection }, (*OutlierDetector).detectIQR},
	{"modified-z-score", 1.2, func(n int) bool { return n >= minSamplesForOutlierDetection }, (*OutlierDetector).detectModifiedZScore},
	{"grubbs", 1.1, func(n int) bool { return n >= 3 }, (*OutlierDetector).detectGrubbs},
	{"dixon-q", 0.8, func(n int) bool { return n >= 3 && n <= 30 }, (*OutlierDetector).detectDixonQ},
	{"hampel", 1.0, func(n int) bool { return n >= 7 }, (*OutlierDetector).detectHampel},
	{"isolation", 0.9, func(n int) bool { return n >= 8 }, (*OutlierDetector).detectIsolation},
}

// OutlierDetector runs every applicable detection method over a sequence and
// merges their votes into a single consensus verdict.
type OutlierDetector struct {
	threshold float64
}

func NewOutlierDetector(cfg *common.AdaptiveConfig) *OutlierDetector {
	return &OutlierDetector{threshold: cfg.OutlierThreshold}
}

// Detect runs all applicable methods and builds the consensus analysis.
// Sequences shorter than four samples yield an empty MarkOnly analysis.
func (d *OutlierDetector) Detect(samples []float64) OutlierAnalysis {
	n := len(samples)
	if n < minSamplesForOutlierDetection {
		return OutlierAnalysis{
			Scores:     map[int]float64{},
			Strategy:   MarkOnly,
			Reason:     "Insufficient data for outlier detection",
			MethodHits: map[string][]int{},
			Statistics: map[string]float64{},
		}
	}

	hits := make(map[string][]int, len(outlierMethods))
	applicableWeight := 0.0
	applicableCount := 0
	for _, m := range outlierMethods {
		if !m.applicable(n) {
			continue
		}
		applicableWeight += m.weight
		applicableCount++
		hits[m.name] = m.detect(d, samples)
	}

	scores := consensusScores(hits, applicableWeight)

	var flagged []int
	maxScore := 0.0
	for idx, score := range scores {
		if score > maxScore {
			maxScore = score
		}
		if score >= consensusThreshold {
			flagged = append(flagged, idx)
		}
	}
	sort.Ints(flagged)

	rate := float64(len(flagged)) / float64(n)
	strategy := recommendStrategy(rate, n, maxScore)

	statistics := map[string]float64{
		"totalMeasurements":  float64(n),
		"outliersFound":      float64(len(flagged)),
		"outlierRate":        rate,
		"consensusThreshold": consensusThreshold,
	}
	addFlaggedValueStats(statistics, samples, flagged)

	return OutlierAnalysis{
		Indices:    flagged,
		Scores:     scores,
		Rate:       rate,
		MaxScore:   maxScore,
		Strategy:   strategy,
		Reason:     buildOutlierReason(hits, applicableCount, rate, strategy),
		MethodHits: hits,
		Statistics: statistics,
	}
}

// Handle applies the analysis' recommended strategy and returns a new
// sequence; the input is never mutated. Without flagged samples every
// strategy degenerates to a plain copy.
func (d *OutlierDetector) Handle(samples []float64, analysis OutlierAnalysis) []float64 {
	if !analysis.HasOutliers() {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}

	switch analysis.Strategy {
	case Remove:
		return removeIndices(samples, analysis.Indices)
	case Winsorize:
		return winsorize(samples, analysis.Indices)
	case Transform:
		return logTransform(samples)
	default:
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}
}

// RobustStatistics summarizes a sequence with measures that tolerate the
// flagged samples: cleaned mean and stddev, plus median-family statistics of
// the full sequence. robustCV carries the CV sentinel when the median or MAD
// is zero.
func (d *OutlierDetector) RobustStatistics(samples []float64, outlierIndices []int) map[string]float64 {
	stats := make(map[string]float64)
	if len(samples) == 0 {
		return stats
	}

	clean := removeIndices(samples, outlierIndices)
	if len(clean) > 0 {
		stats["robustMean"] = mean(clean)
		stats["robustStdDev"] = sampleStdDev(clean)
	}

	sorted := sortedCopy(samples)
	med := medianSorted(sorted)
	mad := medianAbsDeviation(samples)

	stats["median"] = med
	stats["mad"] = mad
	stats["iqr"] = interquartileRange(sorted)
	stats["trimmedMean"] = trimmedMean(samples, 0.1)

	if med != 0.0 && mad != 0.0 {
		stats["robustCV"] = (mad * 1.4826) / math.Abs(med)
	} else {
		stats["robustCV"] = common.UndefinedCV
	}

	return stats
}

// Detection methods. Each returns the indices it would flag on its own;
// disagreement is resolved by the weighted consensus.

func (d *OutlierDetector) detectIQR(samples []float64) []int {
	sorted := sortedCopy(samples)
	q1 := percentileSorted(sorted, 0.25)
	q3 := percentileSorted(sorted, 0.75)
	iqr := q3 - q1

	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	var outliers []int
	for i, v := range samples {
		if v < lower || v > upper {
			outliers = append(outliers, i)
		}
	}

	return outliers
}

func (d *OutlierDetector) detectModifiedZScore(samples []float64) []int {
	med := median(samples)
	mad := medianAbsDeviation(samples)
	if mad == 0.0 {
		return nil
	}

	var outliers []int
	for i, v := range samples {
		modifiedZ := 0.6745 * (v - med) / mad
		if math.Abs(modifiedZ) > d.threshold {
			outliers = append(outliers, i)
		}
	}

	return outliers
}

func (d *OutlierDetector) detectGrubbs(samples []float64) []int {
	if len(samples) < 3 {
		return nil
	}

	m := mean(samples)
	sd := sampleStdDev(samples)
	if sd == 0.0 {
		return nil
	}

	critical := grubbsCriticalValue(len(samples))

	var outliers []int
	for i, v := range samples {
		if math.Abs(v-m)/sd > critical {
			outliers = append(outliers, i)
		}
	}

	return outliers
}

// detectDixonQ tests only the two extreme values, which is all the Q test is
// defined for. Applicable to small samples; the step table approximates the
// 95% critical values.
func (d *OutlierDetector) detectDixonQ(samples []float64) []int {
	n := len(samples)
	if n <= 3 || n > 30 {
		return nil
	}

	sorted := sortedCopy(samples)
	valueRange := sorted[n-1] - sorted[0]
	if valueRange == 0.0 {
		return nil
	}

	critical := dixonCriticalValue(n)

	var outliers []int
	if (sorted[1]-sorted[0])/valueRange > critical {
		if idx := indexOfValue(samples, sorted[0]); idx >= 0 {
			outliers = append(outliers, idx)
		}
	}
	if (sorted[n-1]-sorted[n-2])/valueRange > critical {
		if idx := indexOfValue(samples, sorted[n-1]); idx >= 0 {
			outliers = append(outliers, idx)
		}
	}

	return outliers
}

// detectHampel scores each sample against the median of a sliding window
// around it, so it catches local spikes that global methods absorb.
func (d *OutlierDetector) detectHampel(samples []float64) []int {
	n := len(samples)
	if n < 7 {
		return nil
	}

	windowSize := common.MinOf(7, n/3)

	var outliers []int
	for i := range samples {
		start := common.MaxOf(0, i-windowSize/2)
		end := common.MinOf(n, i+windowSize/2+1)
		window := samples[start:end]

		med := median(window)
		mad := medianAbsDeviation(window)
		if mad <= 0.0 {
			continue
		}

		if 0.6745*math.Abs(samples[i]-med)/mad > d.threshold {
			outliers = append(outliers, i)
		}
	}

	return outliers
}

// detectIsolation approximates an isolation score by squashing the plain
// z-score through tanh, which saturates for far-out samples.
func (d *OutlierDetector) detectIsolation(samples []float64) []int {
	if len(samples) < 8 {
		return nil
	}

	m := mean(samples)
	sd := sampleStdDev(samples)
	if sd == 0.0 {
		return nil
	}

	var outliers []int
	for i, v := range samples {
		score := math.Tanh(math.Abs(v-m) / sd / 3.0)
		if score > 0.7 {
			outliers = append(outliers, i)
		}
	}

	return outliers
}

// Consensus and handling helpers.

func consensusScores(hits map[string][]int, totalWeight float64) map[int]float64 {
	scores := make(map[int]float64)
	if totalWeight <= 0.0 {
		return scores
	}

	for _, m := range outlierMethods {
		indices, ran := hits[m.name]
		if !ran {
			continue
		}
		for _, idx := range indices {
			scores[idx] += m.weight
		}
	}
	for idx := range scores {
		scores[idx] /= totalWeight
	}

	return scores
}

func recommendStrategy(rate float64, sampleCount int, maxScore float64) HandlingStrategy {
	if rate == 0.0 {
		return MarkOnly
	}
	if rate > 0.2 {
		return UseRobustStats
	}
	if rate > 0.1 {
		return Winsorize
	}
	if sampleCount < 50 {
		return Winsorize
	}
	if maxScore > 0.8 {
		return Remove
	}

	return Winsorize
}

func buildOutlierReason(hits map[string][]int, applicableCount int, rate float64, strategy HandlingStrategy) string {
	if rate == 0.0 {
		return "No outliers detected by any method"
	}

	methodsWithHits := 0
	for _, indices := range hits {
		if len(indices) > 0 {
			methodsWithHits++
		}
	}

	return fmt.Sprintf("%.1f%% outliers detected by %d/%d methods, recommended strategy: %s",
		rate*100.0, methodsWithHits, applicableCount, strategy)
}

func removeIndices(samples []float64, indices []int) []float64 {
	drop := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		drop[idx] = struct{}{}
	}

	cleaned := make([]float64, 0, len(samples))
	for i, v := range samples {
		if _, dropped := drop[i]; !dropped {
			cleaned = append(cleaned, v)
		}
	}

	return cleaned
}

// winsorize clamps flagged samples to the min/max of the unflagged ones.
// A flagged sample already inside that range is left as is.
func winsorize(samples []float64, indices []int) []float64 {
	out := make([]float64, len(samples))
	copy(out, samples)
	if len(indices) == 0 {
		return out
	}

	clean := removeIndices(samples, indices)
	if len(clean) == 0 {
		return out
	}
	sort.Float64s(clean)

	lower := clean[0]
	upper := clean[len(clean)-1]
	for _, idx := range indices {
		if out[idx] < lower {
			out[idx] = lower
		} else if out[idx] > upper {
			out[idx] = upper
		}
	}

	return out
}

// logTransform shifts the sequence positive if needed and takes the log of
// every sample, outlier or not, so relative ordering is preserved.
func logTransform(samples []float64) []float64 {
	min := samples[0]
	for _, v := range samples {
		if v < min {
			min = v
		}
	}

	offset := 0.0
	if min <= 0.0 {
		offset = math.Abs(min) + 1.0
	}

	out := make([]float64, len(samples))
	for i, v := range samples {
		out[i] = math.Log(v + offset)
	}

	return out
}

func addFlaggedValueStats(stats map[string]float64, samples []float64, indices []int) {
	if len(indices) == 0 {
		return
	}

	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = samples[idx]
	}
	sorted := sortedCopy(values)

	stats["outlierMean"] = mean(values)
	stats["outlierStdDev"] = sampleStdDev(values)
	stats["outlierMin"] = sorted[0]
	stats["outlierMax"] = sorted[len(sorted)-1]
}

// indexOfValue finds the first sample matching v up to float tolerance.
func indexOfValue(samples []float64, v float64) int {
	for i, s := range samples {
		if math.Abs(s-v) < 1e-10 {
			return i
		}
	}

	return -1
}

// grubbsCriticalValue approximates the two-sided Grubbs critical value with
// a fixed t of 2.0, which is close enough for the moderate sample sizes the
// consensus vote runs at.
func grubbsCriticalValue(n int) float64 {
	if n < 3 {
		return math.MaxFloat64
	}

	t := 2.0
	fn := float64(n)

	return (fn - 1.0) / math.Sqrt(fn) * math.Sqrt(t*t/(fn-2.0+t*t))
}

// dixonCriticalValue steps through approximate 95% critical values of the
// Q test by sample-size band.
func dixonCriticalValue(n int) float64 {
	switch {
	case n <= 3:
		return 0.970
	case n <= 7:
		return 0.568
	case n <= 10:
		return 0.466
	case n <= 14:
		return 0.546
	default:
		return 0.525
	}
}
