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
	"strings"

	"github.com/eth-easl/bencher/pkg/common"
)

// changePointThreshold is the two-segment test statistic above which a
// split is reported as a level shift.
const changePointThreshold = 2.0

// StabilityAnalysis describes how settled the most recent measurement
// window looks.
type StabilityAnalysis struct {
	Stable bool
	// CV of the analyzed window; common.UndefinedCV when not computable.
	CV         float64
	TrendSlope float64

	HasChangePoint bool
	// ChangePointIndex is an index into the full analyzed sequence, or -1
	// when no change point was found.
	ChangePointIndex int

	Stationary bool
	// Score in [0,1], multiplicative penalties for every instability signal.
	Score float64
	// WindowSize is how many trailing samples the verdict is based on; for
	// insufficient input it reports the sequence length that was available.
	WindowSize int
	Reason     string
	Metrics    map[string]float64
}

func (a StabilityAnalysis) String() string {
	return fmt.Sprintf("stable=%t cv=%.4f score=%.3f (%s)", a.Stable, a.CV, a.Score, a.Reason)
}

// StabilityAnalyzer decides whether a sequence of measurements has settled
// enough to trust, looking only at the trailing stability window.
type StabilityAnalyzer struct {
	cfg *common.AdaptiveConfig
}

func NewStabilityAnalyzer(cfg *common.AdaptiveConfig) *StabilityAnalyzer {
	return &StabilityAnalyzer{cfg: cfg}
}

// Analyze inspects the most recent StabilityWindowSize samples. Sequences
// shorter than the window are never stable; the verdict carries the reason.
func (a *StabilityAnalyzer) Analyze(samples []float64) StabilityAnalysis {
	if len(samples) < a.cfg.StabilityWindowSize {
		return StabilityAnalysis{
			Stable:           false,
			CV:               common.UndefinedCV,
			ChangePointIndex: -1,
			Score:            0.0,
			WindowSize:       len(samples),
			Reason:           "Insufficient data for analysis",
			Metrics:          map[string]float64{},
		}
	}

	windowSize := common.MinOf(a.cfg.StabilityWindowSize, len(samples))
	offset := len(samples) - windowSize
	window := samples[offset:]

	metrics := make(map[string]float64)

	m := mean(window)
	sd := sampleStdDev(window)
	cv := common.UndefinedCV
	if m > 0.0 {
		cv = sd / m
	}
	metrics["mean"] = m
	metrics["stdDev"] = sd
	metrics["cv"] = cv

	slope := indexSlope(window)
	trendSig := trendSignificance(window, slope)
	metrics["trendSlope"] = slope
	metrics["trendSignificance"] = trendSig

	changePoint := detectChangePoint(window)
	if changePoint >= 0 {
		changePoint += offset
	}
	hasChangePoint := changePoint >= 0
	metrics["changePointIndex"] = float64(changePoint)

	stationary := testStationarity(window)
	if stationary {
		metrics["stationary"] = 1.0
	} else {
		metrics["stationary"] = 0.0
	}

	score := a.stabilityScore(cv, trendSig, hasChangePoint, stationary)
	metrics["stabilityScore"] = score

	cvStable := cv <= a.cfg.CVThreshold
	trendStable := math.Abs(slope) < m*0.01
	noChangePoint := !hasChangePoint

	return StabilityAnalysis{
		Stable:           cvStable && trendStable && noChangePoint && stationary,
		CV:               cv,
		TrendSlope:       slope,
		HasChangePoint:   hasChangePoint,
		ChangePointIndex: changePoint,
		Stationary:       stationary,
		Score:            score,
		WindowSize:       windowSize,
		Reason:           buildStabilityReason(cvStable, trendStable, noChangePoint, stationary),
		Metrics:          metrics,
	}
}

// IsConverging compares the CV of the two most recent convergence windows:
// converging means the spread is shrinking and already below the threshold.
func (a *StabilityAnalyzer) IsConverging(samples []float64) bool {
	w := a.cfg.ConvergenceWindow
	if len(samples) < w*2 {
		return false
	}

	earlier := samples[len(samples)-2*w : len(samples)-w]
	later := samples[len(samples)-w:]

	earlierCV := coefficientOfVariation(earlier)
	laterCV := coefficientOfVariation(later)

	return laterCV < earlierCV && laterCV <= a.cfg.CVThreshold
}

// ConvergenceRate is the per-sample decrease of the sliding-window CV; a
// positive rate means the measurements are tightening.
func (a *StabilityAnalyzer) ConvergenceRate(samples []float64) float64 {
	w := a.cfg.ConvergenceWindow
	if len(samples) < w*3 {
		return 0.0
	}

	cvSeries := make([]float64, 0, len(samples)-w+1)
	for i := w; i <= len(samples); i++ {
		cvSeries = append(cvSeries, coefficientOfVariation(samples[i-w:i]))
	}

	return -indexSlope(cvSeries)
}

// EstimateAdditionalMeasurements extrapolates how many more samples the run
// needs, assuming the CV shrinks with sqrt(n). The estimate is clamped to
// the remaining sample budget.
func (a *StabilityAnalyzer) EstimateAdditionalMeasurements(samples []float64) int {
	n := len(samples)
	if n == 0 {
		return a.cfg.MinSamples
	}

	analysis := a.Analyze(samples)
	if analysis.Stable {
		return 0
	}

	currentCV := analysis.CV
	targetCV := a.cfg.CVThreshold

	if currentCV <= targetCV {
		// Spread is fine already; some other criterion is unmet.
		return common.MaxOf(10, a.cfg.MinSamples-n)
	}

	ratio := currentCV / targetCV
	estimatedTotal := float64(n) * ratio * ratio
	// An unknown CV extrapolates to astronomical totals; the budget cap
	// keeps the conversion to int sane.
	if estimatedTotal > float64(a.cfg.MaxSamples) {
		estimatedTotal = float64(a.cfg.MaxSamples)
	}

	additional := common.MaxOf(0, int(estimatedTotal)-n)

	return common.MaxOf(0, common.MinOf(additional, a.cfg.MaxSamples-n))
}

// trendSignificance is the t statistic of the slope against the standard
// error of the window mean.
func trendSignificance(window []float64, slope float64) float64 {
	if len(window) < 3 {
		return 0.0
	}

	stdError := sampleStdDev(window) / math.Sqrt(float64(len(window)))
	if stdError == 0.0 {
		return 0.0
	}

	return math.Abs(slope / stdError)
}

// detectChangePoint maximizes a two-segment mean-shift statistic over all
// interior split points and reports the best split when it clears the
// threshold. Returns -1 when the window is too short or no split stands out.
func detectChangePoint(window []float64) int {
	n := len(window)
	if n < 6 {
		return -1
	}

	best := -1
	maxStatistic := 0.0
	for k := 2; k < n-2; k++ {
		statistic := splitStatistic(window, k)
		if statistic > maxStatistic {
			maxStatistic = statistic
			best = k
		}
	}

	if maxStatistic > changePointThreshold {
		return best
	}

	return -1
}

func splitStatistic(window []float64, k int) float64 {
	before := window[:k]
	after := window[k:]

	meanBefore := mean(before)
	meanAfter := mean(after)
	overall := mean(window)

	pooledVar := ((float64(len(before))-1.0)*sampleVariance(before) +
		(float64(len(after))-1.0)*sampleVariance(after)) / float64(len(window)-2)
	if pooledVar == 0.0 {
		return 0.0
	}

	return (float64(len(before))*math.Pow(meanBefore-overall, 2.0) +
		float64(len(after))*math.Pow(meanAfter-overall, 2.0)) / pooledVar
}

// testStationarity compares the first and last third of the window: a
// settled process keeps its mean within 20% and its variance within 50%.
// Short windows pass vacuously.
func testStationarity(window []float64) bool {
	if len(window) < 10 {
		return true
	}

	segment := len(window) / 3
	if segment < 2 {
		return true
	}

	first := window[:segment]
	last := window[len(window)-segment:]

	meanDiff := math.Abs(mean(first) - mean(last))
	varDiff := math.Abs(sampleVariance(first) - sampleVariance(last))

	overallMean := mean(window)
	overallVar := sampleVariance(window)

	meanStationary := overallMean == 0.0 || meanDiff/math.Abs(overallMean) < 0.2
	varStationary := overallVar == 0.0 || varDiff/overallVar < 0.5

	return meanStationary && varStationary
}

func (a *StabilityAnalyzer) stabilityScore(cv, trendSig float64, hasChangePoint, stationary bool) float64 {
	score := math.Exp(-cv / a.cfg.CVThreshold)
	score *= math.Exp(-trendSig / 2.0)
	if hasChangePoint {
		score *= 0.5
	}
	if !stationary {
		score *= 0.7
	}

	return common.Clamp(score, 0.0, 1.0)
}

func buildStabilityReason(cvStable, trendStable, noChangePoint, stationary bool) string {
	var issues []string
	if !cvStable {
		issues = append(issues, "high coefficient of variation")
	}
	if !trendStable {
		issues = append(issues, "significant trend detected")
	}
	if !noChangePoint {
		issues = append(issues, "change point detected")
	}
	if !stationary {
		issues = append(issues, "non-stationary behavior")
	}

	if len(issues) == 0 {
		return "Measurements are stable"
	}

	return "Issues: " + strings.Join(issues, ", ")
}
