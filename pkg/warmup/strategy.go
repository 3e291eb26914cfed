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

package warmup

import (
	"fmt"
	"math"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/eth-easl/bencher/pkg/common"
	"github.com/eth-easl/bencher/pkg/stats"
)

// Phase is the current stage of the warmup state machine.
type Phase int

const (
	PhaseInitialization Phase = iota
	PhaseCompilation
	PhaseStabilization
	PhaseValidation
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialization:
		return "initialization"
	case PhaseCompilation:
		return "compilation"
	case PhaseStabilization:
		return "stabilization"
	case PhaseValidation:
		return "validation"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// SampleFunc runs one warmup iteration and returns its execution time in
// milliseconds.
type SampleFunc func() (float64, error)

// BatchFunc runs a batch of warmup iterations and returns their execution
// times in milliseconds.
type BatchFunc func() ([]float64, error)

// Result summarizes one warmup run.
type Result struct {
	Complete   bool
	Iterations int
	Elapsed    time.Duration
	FinalPhase Phase
	// StabilityScore of the final measurement window; 0 when the run ended
	// before a full window accumulated.
	StabilityScore float64
	// CV over all warmup times; the CV sentinel when not computable.
	CV            float64
	RuntimeStable bool
	Metrics       map[string]float64
	// Reason lists every unmet completion criterion, or states success.
	Reason string
}

func (r Result) String() string {
	return fmt.Sprintf("WarmupResult{complete=%t, iterations=%d, elapsed=%v, cv=%.4f, phase=%s, reason=%q}",
		r.Complete, r.Iterations, r.Elapsed, r.CV, r.FinalPhase, r.Reason)
}

// Status is a mid-run snapshot for progress reporting.
type Status struct {
	Iteration          int
	Phase              Phase
	Complete           bool
	CV                 float64
	TargetCV           float64
	Runtime            RuntimeState
	StabilityScore     float64
	MeasurementsStable bool
	EstimatedRemaining int
}

// Strategy runs the adaptive warmup loop: it samples the benchmark function,
// feeds the detector and the stability analyzer, and steps a phase machine
// until every completion criterion holds or a budget is exhausted. One
// strategy serves one benchmark run at a time; Execute resets it.
type Strategy struct {
	cfg      *common.AdaptiveConfig
	detector *Detector
	analyzer *stats.StabilityAnalyzer

	times     []float64
	metrics   map[string]float64
	start     time.Time
	iteration int
	phase     Phase
}

func NewStrategy(cfg *common.AdaptiveConfig) *Strategy {
	return NewStrategyWithDetector(cfg, NewDetector(cfg))
}

func NewStrategyWithDetector(cfg *common.AdaptiveConfig, detector *Detector) *Strategy {
	return &Strategy{
		cfg:      cfg,
		detector: detector,
		analyzer: stats.NewStabilityAnalyzer(cfg),
		metrics:  make(map[string]float64),
		start:    time.Now(),
	}
}

// Execute warms up with one measurement per call until warmup completes, the
// iteration cap is hit, or the wall-clock timeout expires.
func (s *Strategy) Execute(sample SampleFunc) Result {
	return s.run(func() error {
		ms, err := sample()
		if err != nil {
			return err
		}
		s.observe(ms)
		return nil
	})
}

// ExecuteBatch warms up with batched measurements: every element of a
// returned batch passes through the same bookkeeping as a single sample.
func (s *Strategy) ExecuteBatch(batch BatchFunc) Result {
	return s.run(func() error {
		times, err := batch()
		if err != nil {
			return err
		}
		s.metrics["batchSize"] = float64(len(times))
		for _, ms := range times {
			s.observe(ms)
			if s.iteration >= s.cfg.MaxWarmupIterations {
				break
			}
		}
		return nil
	})
}

// ShouldContinue reports whether another warmup iteration is worthwhile.
func (s *Strategy) ShouldContinue() bool {
	return !s.warmupComplete() &&
		s.iteration < s.cfg.MaxWarmupIterations &&
		time.Since(s.start) <= s.cfg.WarmupTimeout
}

// Status snapshots the current warmup progress.
func (s *Strategy) Status() Status {
	status := Status{
		Iteration:          s.iteration,
		Phase:              s.phase,
		Complete:           s.warmupComplete(),
		CV:                 s.currentCV(),
		TargetCV:           s.cfg.WarmupCVThreshold,
		Runtime:            s.detector.State(),
		EstimatedRemaining: s.EstimateRemainingIterations(),
	}

	if len(s.times) >= s.cfg.StabilityWindowSize {
		analysis := s.analyzer.Analyze(s.times)
		status.StabilityScore = analysis.Score
		status.MeasurementsStable = analysis.Stable
	}

	return status
}

// EstimateRemainingIterations combines the minimum still owed, the
// detector's recommendation, and the stability extrapolation, capped at the
// remaining iteration budget.
func (s *Strategy) EstimateRemainingIterations() int {
	if s.warmupComplete() {
		return 0
	}

	minimumRemaining := common.MaxOf(0, s.cfg.MinWarmupIterations-s.iteration)
	byRuntime := s.detector.RecommendedIterations()

	byStability := 0
	if len(s.times) >= s.cfg.StabilityWindowSize {
		byStability = s.analyzer.EstimateAdditionalMeasurements(s.times)
	}

	estimated := common.MaxOf(minimumRemaining, byRuntime, byStability)

	return common.MaxOf(0, common.MinOf(estimated, s.cfg.MaxWarmupIterations-s.iteration))
}

func (s *Strategy) run(step func() error) Result {
	s.reset()
	s.start = time.Now()

	if err := s.loop(step); err != nil {
		return s.errorResult(err)
	}

	return s.buildResult()
}

func (s *Strategy) loop(step func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("warmup function panicked: %v", r)
		}
	}()

	for !s.warmupComplete() && s.iteration < s.cfg.MaxWarmupIterations {
		if err := step(); err != nil {
			return err
		}
		if time.Since(s.start) > s.cfg.WarmupTimeout {
			break
		}
	}

	return nil
}

func (s *Strategy) observe(ms float64) {
	s.times = append(s.times, ms)
	s.detector.RecordExecution(ms)

	s.updatePhase()

	if s.iteration%10 == 0 || s.iteration < 20 {
		s.updateMetrics()
	}

	s.iteration++
}

func (s *Strategy) updatePhase() {
	if s.phase == PhaseCompleted {
		return
	}

	if s.iteration < s.cfg.MinWarmupIterations {
		switch {
		case s.iteration < 5:
			s.phase = PhaseInitialization
		case !s.detector.Stable():
			s.phase = PhaseCompilation
		default:
			s.phase = PhaseStabilization
		}
		return
	}

	switch {
	case s.warmupComplete():
		s.phase = PhaseCompleted
	case s.detector.Stable():
		s.phase = PhaseValidation
	default:
		s.phase = PhaseStabilization
	}
}

// warmupComplete is the global stop condition: minimum iterations, runtime
// warmed, a full stability window of stable measurements, and a CV under the
// warmup threshold.
func (s *Strategy) warmupComplete() bool {
	if s.iteration < s.cfg.MinWarmupIterations {
		return false
	}
	if !s.detector.WarmupComplete() {
		return false
	}
	if len(s.times) < s.cfg.StabilityWindowSize {
		return false
	}
	if !s.analyzer.Analyze(s.times).Stable {
		return false
	}

	return s.currentCV() <= s.cfg.WarmupCVThreshold
}

func (s *Strategy) currentCV() float64 {
	if len(s.times) < 2 {
		return common.UndefinedCV
	}

	m := meanOf(s.times)
	if m == 0.0 {
		return common.UndefinedCV
	}

	return math.Sqrt(sampleVarianceOf(s.times)) / m
}

func (s *Strategy) updateMetrics() {
	s.metrics["iteration"] = float64(s.iteration)
	s.metrics["elapsedMs"] = float64(time.Since(s.start).Milliseconds())

	if len(s.times) > 0 {
		s.metrics["meanExecutionTime"] = meanOf(s.times)
		s.metrics["coefficientOfVariation"] = s.currentCV()
	}

	for key, value := range s.detector.Statistics() {
		s.metrics[key] = value
	}
}

func (s *Strategy) buildResult() Result {
	elapsed := time.Since(s.start)
	complete := s.warmupComplete()
	if complete {
		// Completion can land exactly on the minimum iteration count,
		// one observation before updatePhase would notice.
		s.phase = PhaseCompleted
	}
	cv := s.currentCV()

	stabilityScore := 0.0
	if len(s.times) >= s.cfg.StabilityWindowSize {
		stabilityScore = s.analyzer.Analyze(s.times).Score
	}

	reason := s.buildCompletionReason(complete, elapsed)

	s.updateMetrics()
	s.metrics["finalStabilityScore"] = stabilityScore
	s.metrics["totalDurationMs"] = float64(elapsed.Milliseconds())

	log.Debugf("Warmup finished after %d iterations in %v: %s", s.iteration, elapsed, reason)

	return Result{
		Complete:       complete,
		Iterations:     s.iteration,
		Elapsed:        elapsed,
		FinalPhase:     s.phase,
		StabilityScore: stabilityScore,
		CV:             cv,
		RuntimeStable:  s.detector.Stable(),
		Metrics:        s.metrics,
		Reason:         reason,
	}
}

func (s *Strategy) buildCompletionReason(complete bool, elapsed time.Duration) string {
	if complete {
		return "warmup completed successfully"
	}

	var reasons []string
	if s.iteration >= s.cfg.MaxWarmupIterations {
		reasons = append(reasons, "maximum iterations reached")
	}
	if elapsed > s.cfg.WarmupTimeout {
		reasons = append(reasons, "timeout exceeded")
	}
	if s.iteration < s.cfg.MinWarmupIterations {
		reasons = append(reasons, "minimum iterations not met")
	}
	if !s.detector.WarmupComplete() {
		reasons = append(reasons, "runtime not stable")
	}
	if len(s.times) >= s.cfg.StabilityWindowSize && !s.analyzer.Analyze(s.times).Stable {
		reasons = append(reasons, "measurements not stable")
	}
	if s.currentCV() > s.cfg.WarmupCVThreshold {
		reasons = append(reasons, "high coefficient of variation")
	}

	if len(reasons) == 0 {
		return "warmup incomplete"
	}

	return strings.Join(reasons, ", ")
}

func (s *Strategy) errorResult(err error) Result {
	s.metrics["warmupError"] = 1.0

	log.Warnf("Warmup aborted after %d iterations: %v", s.iteration, err)

	return Result{
		Complete:   false,
		Iterations: s.iteration,
		Elapsed:    time.Since(s.start),
		FinalPhase: s.phase,
		CV:         common.UndefinedCV,
		Metrics:    s.metrics,
		Reason:     "error during warmup: " + err.Error(),
	}
}

func (s *Strategy) reset() {
	s.times = nil
	s.metrics = make(map[string]float64)
	s.iteration = 0
	s.phase = PhaseInitialization
	s.detector.Reset()
}
