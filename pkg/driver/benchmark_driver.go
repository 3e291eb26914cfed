package driver

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/eth-easl/bencher/pkg/common"
	"github.com/eth-easl/bencher/pkg/metric"
	"github.com/eth-easl/bencher/pkg/stats"
	"github.com/eth-easl/bencher/pkg/warmup"
)

// Benchmark is one named measurement target. Sample runs a single timed
// execution and returns its latency in milliseconds. Warmup, when set, runs
// during the warmup phase instead of Sample.
type Benchmark struct {
	Name   string
	Sample func() (float64, error)
	Warmup func() (float64, error)
}

// RunResult carries everything one benchmark run produced: the raw and
// outlier-handled samples, every statistical analysis, and the stopping
// decision that ended the run.
type RunResult struct {
	RunID     string
	Benchmark string
	Success   bool

	Warmup  warmup.Result
	Samples []float64
	Cleaned []float64

	Outliers     stats.OutlierAnalysis
	Interval     stats.ConfidenceInterval
	Bootstrap    stats.ConfidenceInterval
	Robust       stats.ConfidenceInterval
	Significance stats.SignificanceResult
	Stability    stats.StabilityAnalysis
	Decision     StoppingDecision
	Summary      metric.Summary

	WarmupDuration  time.Duration
	MeasureDuration time.Duration

	Err error
}

// Report flattens the run into the exportable CSV row.
func (r *RunResult) Report() metric.BenchmarkReport {
	report := metric.BenchmarkReport{
		RunID:     r.RunID,
		Benchmark: r.Benchmark,
		Success:   r.Success,

		WarmupIterations: r.Warmup.Iterations,
		WarmupComplete:   r.Warmup.Complete,
		WarmupReason:     r.Warmup.Reason,

		MeasurementSamples: len(r.Samples),
		CleanedSamples:     len(r.Cleaned),
		TotalIterations:    r.Warmup.Iterations + len(r.Samples),

		OutlierCount:    r.Outliers.Count(),
		OutlierRate:     r.Outliers.Rate,
		OutlierStrategy: r.Outliers.Strategy.String(),

		MeanMs:   r.Summary.Mean,
		MedianMs: r.Summary.Median,
		StdDevMs: r.Summary.StdDev,
		CV:       r.Summary.CV,
		MinMs:    r.Summary.Min,
		MaxMs:    r.Summary.Max,
		P90Ms:    r.Summary.P90,
		P95Ms:    r.Summary.P95,
		P99Ms:    r.Summary.P99,

		CILowerMs:  r.Interval.Lower,
		CIUpperMs:  r.Interval.Upper,
		CIMarginMs: r.Interval.Margin,
		CIMethod:   r.Interval.Method,

		PValue:      r.Significance.PValue,
		Significant: r.Significance.Significant,
		EffectSize:  r.Significance.EffectSize,
		Power:       r.Significance.Power,

		Stable:         r.Stability.Stable,
		StabilityScore: r.Stability.Score,

		StoppingExplanation: r.Decision.Explanation,

		WarmupDurationMs:  float64(r.WarmupDuration) / common.NanosecondsPerMillisecond,
		MeasureDurationMs: float64(r.MeasureDuration) / common.NanosecondsPerMillisecond,
	}

	if r.Decision.ShouldStop {
		report.StoppingReason = r.Decision.PrimaryReason.String()
	}
	if r.Err != nil {
		report.StoppingExplanation = r.Err.Error()
	}

	return report
}

// Driver orchestrates complete benchmark runs: warmup until the runtime
// stabilizes, then adaptive measurement until the stopping evaluator is
// satisfied, then the full statistical post-processing.
type Driver struct {
	cfg       *common.AdaptiveConfig
	exporter  *metric.Exporter
	evaluator *StoppingEvaluator
	intervals *stats.IntervalCalculator
	tests     *stats.SignificanceDetector
	stability *stats.StabilityAnalyzer
	outliers  *stats.OutlierDetector

	stopRequested atomic.Bool
}

// NewDriver builds a driver. A nil exporter disables record collection.
func NewDriver(cfg *common.AdaptiveConfig, exporter *metric.Exporter) *Driver {
	return &Driver{
		cfg:       cfg,
		exporter:  exporter,
		evaluator: NewStoppingEvaluator(cfg),
		intervals: stats.NewIntervalCalculator(cfg),
		tests:     stats.NewSignificanceDetector(cfg),
		stability: stats.NewStabilityAnalyzer(cfg),
		outliers:  stats.NewOutlierDetector(cfg),
	}
}

// RequestStop makes running benchmarks stop after their current sample.
func (d *Driver) RequestStop() {
	d.stopRequested.Store(true)
}

// RunAll executes the benchmarks sequentially and returns one result per
// benchmark. Sequential execution keeps the measurements from contending
// with each other.
func (d *Driver) RunAll(benchmarks []Benchmark) []*RunResult {
	results := make([]*RunResult, 0, len(benchmarks))
	for _, benchmark := range benchmarks {
		results = append(results, d.RunBenchmark(benchmark))
	}

	return results
}

func (d *Driver) RunBenchmark(b Benchmark) *RunResult {
	runID := uuid.New().String()
	result := &RunResult{RunID: runID, Benchmark: b.Name}

	log.Infof("Starting benchmark %s (run %s)", b.Name, runID)

	runStart := time.Now()

	warmupFn := b.Warmup
	if warmupFn == nil {
		warmupFn = b.Sample
	}

	iteration := 0
	strategy := warmup.NewStrategy(d.cfg)
	warmupResult := strategy.Execute(func() (float64, error) {
		ms, err := warmupFn()
		if err != nil {
			return 0.0, err
		}
		iteration++
		d.reportSample(runID, b.Name, common.WarmupPhase, iteration, ms)
		return ms, nil
	})

	result.Warmup = warmupResult
	result.WarmupDuration = warmupResult.Elapsed

	if warmupResult.Metrics["warmupError"] == 1.0 {
		result.Err = errors.New(warmupResult.Reason)
		log.Errorf("Benchmark %s warmup failed: %s", b.Name, warmupResult.Reason)
		d.reportBenchmark(result)
		return result
	}
	if !warmupResult.Complete {
		log.Warnf("Benchmark %s proceeding with incomplete warmup: %s", b.Name, warmupResult.Reason)
	}

	measureStart := time.Now()
	samples := []float64{}
	var decision StoppingDecision

	for {
		if d.stopRequested.Load() {
			decision = forcedStop(UserRequested)
			break
		}

		ms, err := safeSample(b.Sample)
		if err != nil {
			result.Err = fmt.Errorf("measurement failed: %w", err)
			result.Samples = samples
			result.MeasureDuration = time.Since(measureStart)
			log.Errorf("Benchmark %s aborted after %d samples: %v", b.Name, len(samples), err)
			d.reportBenchmark(result)
			return result
		}

		iteration++
		samples = append(samples, ms)
		d.reportSample(runID, b.Name, common.MeasurementPhase, iteration, ms)

		n := len(samples)
		if n >= d.cfg.MaxSamples {
			decision = d.evaluator.Evaluate(samples, time.Since(measureStart))
			break
		}
		if time.Since(runStart) >= d.cfg.MaxBenchmarkDuration || time.Since(measureStart) >= d.cfg.MeasurementTimeout {
			decision = forcedStop(TimeLimitReached)
			break
		}
		if n >= d.cfg.MinSamples && n%common.StopCheckInterval == 0 {
			decision = d.evaluator.Evaluate(samples, time.Since(measureStart))
			if decision.ShouldStop {
				break
			}
		}
	}

	result.MeasureDuration = time.Since(measureStart)
	result.Samples = samples
	result.Decision = decision

	if len(samples) > 0 {
		result.Outliers = d.outliers.Detect(samples)
		result.Cleaned = d.outliers.Handle(samples, result.Outliers)
		result.Interval = d.intervals.TInterval(result.Cleaned)
		result.Bootstrap = d.intervals.BootstrapInterval(result.Cleaned, 0)
		result.Robust = d.intervals.RobustInterval(result.Cleaned)
		result.Significance = d.tests.OneSampleTTest(result.Cleaned)
		result.Stability = d.stability.Analyze(result.Cleaned)
	}
	result.Summary = metric.Summarize(result.Cleaned)

	if decision.ShouldStop {
		switch decision.PrimaryReason {
		case MaximumSamplesReached, TimeLimitReached, UserRequested:
			result.Success = false
		default:
			result.Success = true
		}
	}

	if metric.IsDegrading(samples, d.cfg.StabilityWindowSize) {
		log.Warnf("Benchmark %s latencies degraded over the run", b.Name)
	}

	d.reportBenchmark(result)

	if result.Success {
		log.Infof("Benchmark %s finished (%s): mean %.3fms over %d samples",
			b.Name, decision.PrimaryReason, result.Summary.Mean, result.Summary.Count)
	} else {
		log.Warnf("Benchmark %s finished without meeting its stopping criteria", b.Name)
	}

	return result
}

func (d *Driver) reportSample(runID string, benchmark string, phase common.ExperimentPhase, iteration int, latencyMs float64) {
	if d.exporter == nil {
		return
	}

	d.exporter.ReportSample(metric.SampleRecord{
		RunID:        runID,
		Benchmark:    benchmark,
		Phase:        phase.String(),
		Iteration:    iteration,
		Timestamp:    time.Now().UnixMicro(),
		LatencyMicro: int64(latencyMs * common.MicrosecondsPerMillisecond),
		LatencyMs:    latencyMs,
	})
}

func (d *Driver) reportBenchmark(result *RunResult) {
	if d.exporter == nil {
		return
	}

	d.exporter.ReportBenchmark(result.Report())
}

func safeSample(sample func() (float64, error)) (ms float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("measurement function panicked: %v", r)
		}
	}()

	return sample()
}
