package driver

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/eth-easl/bencher/pkg/common"
	"github.com/eth-easl/bencher/pkg/stats"
)

// StoppingReason identifies which stopping criterion fired.
type StoppingReason int

const (
	ConfidenceAchieved StoppingReason = iota
	StatisticalSignificance
	MeasurementStability
	MinimumSamplesReached
	MaximumSamplesReached
	TimeLimitReached
	ConvergenceDetected
	InsufficientProgress
	UserRequested
	ErrorThresholdExceeded
)

func (r StoppingReason) String() string {
	switch r {
	case ConfidenceAchieved:
		return "confidence-achieved"
	case StatisticalSignificance:
		return "statistical-significance"
	case MeasurementStability:
		return "measurement-stability"
	case MinimumSamplesReached:
		return "minimum-samples-reached"
	case MaximumSamplesReached:
		return "maximum-samples-reached"
	case TimeLimitReached:
		return "time-limit-reached"
	case ConvergenceDetected:
		return "convergence-detected"
	case InsufficientProgress:
		return "insufficient-progress"
	case UserRequested:
		return "user-requested"
	case ErrorThresholdExceeded:
		return "error-threshold-exceeded"
	default:
		return "unknown"
	}
}

// Description is the human-readable sentence used in explanations and
// exported reports.
func (r StoppingReason) Description() string {
	switch r {
	case ConfidenceAchieved:
		return "Desired confidence interval width achieved"
	case StatisticalSignificance:
		return "Statistical significance detected"
	case MeasurementStability:
		return "Measurements have stabilized"
	case MinimumSamplesReached:
		return "Minimum sample size reached with acceptable quality"
	case MaximumSamplesReached:
		return "Maximum sample size limit reached"
	case TimeLimitReached:
		return "Maximum benchmark duration exceeded"
	case ConvergenceDetected:
		return "Measurements have converged to stable value"
	case InsufficientProgress:
		return "Insufficient improvement in recent measurements"
	case UserRequested:
		return "Stop requested by user"
	case ErrorThresholdExceeded:
		return "Error threshold exceeded"
	default:
		return "Unknown stopping reason"
	}
}

// StoppingDecision is the verdict of one stopping-criteria evaluation.
type StoppingDecision struct {
	ShouldStop bool
	// PrimaryReason is meaningful only when ShouldStop is set.
	PrimaryReason    StoppingReason
	SatisfiedReasons []StoppingReason

	ConfidenceQuality float64
	StabilityQuality  float64
	ProgressQuality   float64
	QualityScore      float64

	EstimatedAdditionalSamples int
	EstimatedRemainingTime     time.Duration

	Explanation string
}

// forcedStop builds the decision for hard limits that bypass the quality
// criteria entirely.
func forcedStop(reason StoppingReason) StoppingDecision {
	return StoppingDecision{
		ShouldStop:       true,
		PrimaryReason:    reason,
		SatisfiedReasons: []StoppingReason{reason},
		Explanation:      reason.Description(),
	}
}

// primaryOrder ranks satisfied criteria for reporting; the positive
// precision criteria outrank the give-up ones.
var primaryOrder = []StoppingReason{
	ConfidenceAchieved,
	StatisticalSignificance,
	MeasurementStability,
	ConvergenceDetected,
	MinimumSamplesReached,
	InsufficientProgress,
}

func primaryReason(satisfied []StoppingReason) StoppingReason {
	for _, candidate := range primaryOrder {
		for _, reason := range satisfied {
			if reason == candidate {
				return candidate
			}
		}
	}

	return satisfied[0]
}

// StoppingEvaluator decides after each batch of measurements whether a
// benchmark has collected enough samples. It combines the confidence
// interval width, significance and power, stability, and convergence checks
// into one decision with quality scores and a remaining-work estimate.
type StoppingEvaluator struct {
	cfg       *common.AdaptiveConfig
	intervals *stats.IntervalCalculator
	tests     *stats.SignificanceDetector
	stability *stats.StabilityAnalyzer
	outliers  *stats.OutlierDetector
}

func NewStoppingEvaluator(cfg *common.AdaptiveConfig) *StoppingEvaluator {
	return &StoppingEvaluator{
		cfg:       cfg,
		intervals: stats.NewIntervalCalculator(cfg),
		tests:     stats.NewSignificanceDetector(cfg),
		stability: stats.NewStabilityAnalyzer(cfg),
		outliers:  stats.NewOutlierDetector(cfg),
	}
}

// Evaluate inspects the measurements collected so far. A stop requires the
// minimum sample count plus either two satisfied criteria or one satisfied
// criterion with a near-perfect quality score; the sample and time budgets
// force a stop unconditionally.
func (e *StoppingEvaluator) Evaluate(samples []float64, elapsed time.Duration) StoppingDecision {
	n := len(samples)
	if n == 0 {
		return StoppingDecision{
			SatisfiedReasons:           []StoppingReason{},
			EstimatedAdditionalSamples: e.cfg.MinSamples,
			Explanation:                "No measurements collected yet",
		}
	}
	if n >= e.cfg.MaxSamples {
		return forcedStop(MaximumSamplesReached)
	}
	if elapsed >= e.cfg.MaxBenchmarkDuration {
		return forcedStop(TimeLimitReached)
	}

	interval := e.intervals.TInterval(samples)
	significance := e.tests.OneSampleTTest(samples)
	analysis := e.stability.Analyze(samples)
	outliers := e.outliers.Detect(samples)

	confidenceQuality := e.confidenceQuality(n, interval)
	stabilityQuality := e.stabilityQuality(n, analysis)
	progressQuality := e.progressQuality(n, samples)

	satisfied := []StoppingReason{}
	if n >= e.cfg.MinSamples && interval.RelativeWidth() <= 2.0*e.cfg.MarginOfError {
		satisfied = append(satisfied, ConfidenceAchieved)
	}
	if n >= e.cfg.MinSamples && significance.Significant && significance.Power >= 0.8 {
		satisfied = append(satisfied, StatisticalSignificance)
	}
	if n >= e.cfg.StabilityWindowSize && analysis.Stable && analysis.Score >= 0.8 {
		satisfied = append(satisfied, MeasurementStability)
	}
	if n >= 2*e.cfg.ConvergenceWindow && e.stability.IsConverging(samples) &&
		e.stability.ConvergenceRate(samples) > e.cfg.ConvergenceThreshold {
		satisfied = append(satisfied, ConvergenceDetected)
	}
	if n >= e.cfg.MinSamples && (confidenceQuality+stabilityQuality)/2.0 >= 0.7 {
		satisfied = append(satisfied, MinimumSamplesReached)
	}
	if progressQuality < 0.1 && n > 2*e.cfg.MinSamples {
		satisfied = append(satisfied, InsufficientProgress)
	}
	if n >= e.cfg.MinSamples && outliers.Rate > 0.3 {
		satisfied = append(satisfied, ErrorThresholdExceeded)
	}

	stop := e.shouldStop(n, satisfied, confidenceQuality, stabilityQuality)

	decision := StoppingDecision{
		ShouldStop:        stop,
		SatisfiedReasons:  satisfied,
		ConfidenceQuality: confidenceQuality,
		StabilityQuality:  stabilityQuality,
		ProgressQuality:   progressQuality,
		QualityScore:      (confidenceQuality + stabilityQuality + progressQuality) / 3.0,
	}

	quality := fmt.Sprintf("Quality scores - Confidence: %.1f%%, Stability: %.1f%%, Progress: %.1f%%",
		confidenceQuality*100.0, stabilityQuality*100.0, progressQuality*100.0)

	if stop {
		decision.PrimaryReason = primaryReason(satisfied)
		decision.Explanation = stopExplanation(satisfied, quality)
		return decision
	}

	additional := e.cfg.MinSamples
	if confidenceQuality < 0.5 {
		margin := e.cfg.MarginOfError * math.Abs(interval.Mean)
		additional = common.MaxOf(additional, e.intervals.RequiredSampleSize(samples, margin)-n)
	}
	if stabilityQuality < 0.5 {
		additional = common.MaxOf(additional, e.stability.EstimateAdditionalMeasurements(samples))
	}
	additional = common.MaxOf(0, common.MinOf(additional, e.cfg.MaxSamples-n))

	decision.EstimatedAdditionalSamples = additional
	if additional > 0 {
		// 1.2 leaves headroom for per-sample overhead drifting upward.
		decision.EstimatedRemainingTime = time.Duration(float64(elapsed) / float64(n) * float64(additional) * 1.2)
	}
	decision.Explanation = fmt.Sprintf("Benchmark should continue. Estimated %d additional samples needed. %s",
		additional, quality)

	return decision
}

func (e *StoppingEvaluator) shouldStop(n int, satisfied []StoppingReason, confidenceQuality, stabilityQuality float64) bool {
	if n < e.cfg.MinSamples {
		return false
	}

	for _, reason := range satisfied {
		if reason == InsufficientProgress || reason == ErrorThresholdExceeded {
			return true
		}
	}

	if len(satisfied) >= 2 {
		return true
	}

	return len(satisfied) >= 1 && (confidenceQuality >= 0.9 || stabilityQuality >= 0.9)
}

// confidenceQuality maps the relative interval width onto [0, 1], reaching
// 1 when the width shrinks to zero and 0 at twice the target margin.
func (e *StoppingEvaluator) confidenceQuality(n int, interval stats.ConfidenceInterval) float64 {
	if n < common.MinSamplesForAnalysis {
		return 0.0
	}

	return common.Clamp(1.0-interval.RelativeWidth()/(2.0*e.cfg.MarginOfError), 0.0, 1.0)
}

func (e *StoppingEvaluator) stabilityQuality(n int, analysis stats.StabilityAnalysis) float64 {
	if n < e.cfg.StabilityWindowSize {
		return 0.0
	}

	return analysis.Score
}

// progressQuality measures how fast the sliding-window CV is shrinking
// relative to the convergence threshold. Zero means more samples are not
// tightening the estimate.
func (e *StoppingEvaluator) progressQuality(n int, samples []float64) float64 {
	if n < e.cfg.ConvergenceWindow {
		return 0.0
	}
	if !e.stability.IsConverging(samples) {
		return 0.0
	}

	rate := e.stability.ConvergenceRate(samples)

	return math.Min(1.0, rate/e.cfg.ConvergenceThreshold)
}

func stopExplanation(satisfied []StoppingReason, quality string) string {
	descriptions := make([]string, 0, len(satisfied))
	for _, reason := range satisfied {
		descriptions = append(descriptions, reason.Description())
	}

	return fmt.Sprintf("Benchmark stopping recommended. Satisfied criteria: %s. %s",
		strings.Join(descriptions, "; "), quality)
}
