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

// Package warmup drives the pre-measurement phase of a benchmark run: it
// tracks whether the runtime itself has settled (GC activity plateaued,
// execution times no longer drifting) and orchestrates warmup iterations
// until measurements are trustworthy or a budget runs out.
package warmup

import (
	"fmt"
	"math"
	"strings"

	"github.com/eth-easl/bencher/pkg/common"
)

// RuntimeState is a snapshot of how settled the runtime looks to the
// detector.
type RuntimeState struct {
	// Stable means overhead has plateaued and execution times show neither
	// excessive spread nor a trend.
	Stable bool
	// WarmedUp additionally requires the minimum warmup iteration count.
	WarmedUp bool
	// TotalOverheadMs is the probe's cumulative counter; RecentOverheadMs is
	// the share accrued since the detector was initialized.
	TotalOverheadMs  float64
	RecentOverheadMs float64
	// Variance and CV of the retained execution times; the CV sentinel when
	// not computable.
	Variance float64
	CV       float64
	Samples  int
	Reason   string
}

func (s RuntimeState) String() string {
	return fmt.Sprintf("RuntimeState{stable=%t, warmed=%t, cv=%.4f, samples=%d, reason=%q}",
		s.Stable, s.WarmedUp, s.CV, s.Samples, s.Reason)
}

// Detector watches execution times together with a cumulative
// runtime-overhead counter and decides when the runtime has stabilized.
// One detector serves one benchmark run; Reset prepares it for the next.
type Detector struct {
	cfg   *common.AdaptiveConfig
	probe OverheadProbe

	execTimes      []float64
	overheadDeltas []float64

	initialOverheadMs float64
	initialized       bool
}

// NewDetector builds a detector on the GC CPU probe, the closest runtime
// analog of a managed runtime's compilation-time counter.
func NewDetector(cfg *common.AdaptiveConfig) *Detector {
	return NewDetectorWithProbe(cfg, NewGCOverheadProbe())
}

func NewDetectorWithProbe(cfg *common.AdaptiveConfig, probe OverheadProbe) *Detector {
	return &Detector{cfg: cfg, probe: probe}
}

// RecordExecution feeds one execution time into the detector and samples the
// overhead counter. The first call snapshots the counter so only overhead
// accrued during this run counts.
func (d *Detector) RecordExecution(executionMs float64) {
	if !d.initialized {
		d.initialOverheadMs = d.probe.CumulativeMs()
		d.initialized = true
	}

	d.execTimes = append(d.execTimes, executionMs)
	d.overheadDeltas = append(d.overheadDeltas, d.probe.CumulativeMs()-d.initialOverheadMs)

	// Keep only recent history: twice the stability window for execution
	// times, one window for overhead samples.
	if len(d.execTimes) > d.cfg.StabilityWindowSize*2 {
		d.execTimes = append(d.execTimes[:0], d.execTimes[1:]...)
	}
	if len(d.overheadDeltas) > d.cfg.StabilityWindowSize {
		d.overheadDeltas = append(d.overheadDeltas[:0], d.overheadDeltas[1:]...)
	}
}

// State analyzes the retained history. Below a full stability window the
// runtime is never considered stable.
func (d *Detector) State() RuntimeState {
	n := len(d.execTimes)
	if !d.initialized || n < d.cfg.StabilityWindowSize {
		return RuntimeState{
			TotalOverheadMs: d.probe.CumulativeMs(),
			Variance:        common.UndefinedCV,
			CV:              common.UndefinedCV,
			Samples:         n,
			Reason:          "Insufficient samples for analysis",
		}
	}

	total := d.probe.CumulativeMs()
	recent := total - d.initialOverheadMs

	m := meanOf(d.execTimes)
	variance := sampleVarianceOf(d.execTimes)
	cv := common.UndefinedCV
	if m > 0.0 {
		cv = math.Sqrt(variance) / m
	}

	overheadStable := d.overheadPlateaued()
	executionStable := cv <= d.cfg.WarmupCVThreshold
	trendStable := d.executionTrendStable()
	minimumMet := n >= d.cfg.MinWarmupIterations

	stable := overheadStable && executionStable && trendStable

	return RuntimeState{
		Stable:           stable,
		WarmedUp:         stable && minimumMet,
		TotalOverheadMs:  total,
		RecentOverheadMs: recent,
		Variance:         variance,
		CV:               cv,
		Samples:          n,
		Reason:           buildRuntimeReason(overheadStable, executionStable, trendStable, minimumMet),
	}
}

// Stable reports whether the runtime looks settled right now.
func (d *Detector) Stable() bool {
	return d.State().Stable
}

// WarmupComplete reports whether the runtime is settled AND the minimum
// warmup work has been done.
func (d *Detector) WarmupComplete() bool {
	return d.State().WarmedUp
}

// RecommendedIterations estimates how many more warmup iterations are
// worthwhile: zero when warmed up, otherwise a CV-ratio extrapolation with a
// floor of the remaining minimum (at least 10) and a cap at the remaining
// iteration budget.
func (d *Detector) RecommendedIterations() int {
	state := d.State()
	if state.WarmedUp {
		return 0
	}

	n := len(d.execTimes)
	remaining := common.MaxOf(0, d.cfg.MaxWarmupIterations-n)
	minimumRemaining := common.MaxOf(0, d.cfg.MinWarmupIterations-n)

	estimate := float64(common.MaxOf(minimumRemaining, 10))
	if !state.Stable && state.CV > d.cfg.WarmupCVThreshold {
		// The CV sentinel overflows the ratio to +Inf and lands on the cap.
		ratio := state.CV / d.cfg.WarmupCVThreshold
		if byCV := float64(n) * ratio * 0.5; byCV > estimate {
			estimate = byCV
		}
	}
	if estimate > float64(remaining) {
		estimate = float64(remaining)
	}

	return int(estimate)
}

// Statistics exposes the detector's raw counters for metrics maps and logs.
func (d *Detector) Statistics() map[string]float64 {
	stats := map[string]float64{
		"totalOverheadMs": d.probe.CumulativeMs(),
		"probeSupported":  0.0,
		"gcCycles":        gcCycleCount(),
	}
	if d.probe.Supported() {
		stats["probeSupported"] = 1.0
	}

	if len(d.execTimes) > 1 {
		m := meanOf(d.execTimes)
		sd := math.Sqrt(sampleVarianceOf(d.execTimes))
		stats["executionTimeMean"] = m
		stats["executionTimeStdDev"] = sd
		if m > 0.0 {
			stats["executionTimeCV"] = sd / m
		} else {
			stats["executionTimeCV"] = common.UndefinedCV
		}
	}

	if cpuMs, ok := processCPUMs(); ok {
		stats["processCPUMs"] = cpuMs
	}

	return stats
}

// Reset clears all history for a new benchmark run.
func (d *Detector) Reset() {
	d.execTimes = d.execTimes[:0]
	d.overheadDeltas = d.overheadDeltas[:0]
	d.initialOverheadMs = 0.0
	d.initialized = false
}

// overheadPlateaued checks whether the overhead counter has stopped growing:
// the last min(10, n) overhead samples must not have increased by 10% or
// more. Fewer than half a window of samples is inconclusive.
func (d *Detector) overheadPlateaued() bool {
	if len(d.overheadDeltas) < d.cfg.StabilityWindowSize/2 {
		return false
	}

	windowSize := common.MinOf(10, len(d.overheadDeltas))
	recent := d.overheadDeltas[len(d.overheadDeltas)-windowSize:]
	if len(recent) < 2 {
		return false
	}

	first := recent[0]
	last := recent[len(recent)-1]
	if first <= 0.0 {
		return true
	}

	return (last-first)/first < 0.1
}

func (d *Detector) executionTrendStable() bool {
	if len(d.execTimes) < d.cfg.StabilityWindowSize {
		return false
	}

	windowSize := common.MinOf(d.cfg.StabilityWindowSize, len(d.execTimes))
	recent := d.execTimes[len(d.execTimes)-windowSize:]

	slope := trendSlopeOf(recent)

	return math.Abs(slope) < meanOf(recent)*0.01
}

func buildRuntimeReason(overheadStable, executionStable, trendStable, minimumMet bool) string {
	var issues []string
	if !overheadStable {
		issues = append(issues, "runtime overhead growing")
	}
	if !executionStable {
		issues = append(issues, "high execution variance")
	}
	if !trendStable {
		issues = append(issues, "execution trend unstable")
	}
	if !minimumMet {
		issues = append(issues, "minimum warmup not met")
	}

	if len(issues) == 0 {
		return "runtime stabilized"
	}

	return "Issues: " + strings.Join(issues, ", ")
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleVarianceOf(values []float64) float64 {
	if len(values) < 2 {
		return 0.0
	}
	m := meanOf(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return sum / float64(len(values)-1)
}

// trendSlopeOf is the least-squares slope of values against their indices.
func trendSlopeOf(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0.0
	}

	sumX := n * (n - 1.0) / 2.0
	sumXX := (n - 1.0) * n * (2.0*n - 1.0) / 6.0
	sumY := 0.0
	sumXY := 0.0
	for i, v := range values {
		sumY += v
		sumXY += float64(i) * v
	}

	denominator := n*sumXX - sumX*sumX
	if denominator == 0.0 {
		return 0.0
	}

	return (n*sumXY - sumX*sumY) / denominator
}
