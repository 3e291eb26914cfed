package warmup

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eth-easl/bencher/pkg/common"
)

func newTestStrategy(cfg *common.AdaptiveConfig) *Strategy {
	return NewStrategyWithDetector(cfg, NewDetectorWithProbe(cfg, flatProbe()))
}

func TestWarmupCompletesOnStableWorkload(t *testing.T) {
	cfg := common.QuickConfig()
	strategy := newTestStrategy(cfg)

	calls := 0
	result := strategy.Execute(func() (float64, error) {
		calls++
		return 10.0, nil
	})

	require.True(t, result.Complete)
	assert.Equal(t, 10, result.Iterations)
	assert.Equal(t, 10, calls)
	assert.Equal(t, PhaseCompleted, result.FinalPhase)
	assert.Equal(t, "warmup completed successfully", result.Reason)
	assert.Zero(t, result.CV)
	assert.True(t, result.RuntimeStable)
	assert.InDelta(t, 1.0, result.StabilityScore, 1e-9)

	assert.Equal(t, 10.0, result.Metrics["iteration"])
	assert.Equal(t, 10.0, result.Metrics["meanExecutionTime"])
	assert.Equal(t, result.StabilityScore, result.Metrics["finalStabilityScore"])

	// A second run resets all state and converges the same way.
	rerun := strategy.Execute(func() (float64, error) { return 10.0, nil })
	require.True(t, rerun.Complete)
	assert.Equal(t, 10, rerun.Iterations)
}

func TestWarmupPhaseProgression(t *testing.T) {
	cfg := common.DefaultConfig()
	strategy := newTestStrategy(cfg)

	var phases []Phase
	result := strategy.Execute(func() (float64, error) {
		phases = append(phases, strategy.Status().Phase)
		return 10.0, nil
	})

	require.True(t, result.Complete)
	require.Equal(t, 20, result.Iterations)
	require.Len(t, phases, 20)
	assert.Equal(t, PhaseCompleted, result.FinalPhase)

	// First five iterations initialize, then the detector needs a full
	// window before it can vouch for the runtime, then measurements
	// stabilize.
	for i := 0; i <= 5; i++ {
		assert.Equal(t, PhaseInitialization, phases[i], "iteration %d", i)
	}
	for i := 6; i <= 10; i++ {
		assert.Equal(t, PhaseCompilation, phases[i], "iteration %d", i)
	}
	for i := 11; i <= 19; i++ {
		assert.Equal(t, PhaseStabilization, phases[i], "iteration %d", i)
	}
}

func TestWarmupStopsAtMaxIterations(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.MaxWarmupIterations = 40
	cfg.WarmupCVThreshold = 0.5
	strategy := newTestStrategy(cfg)

	cycle := []float64{10.0, 12.0, 8.0, 11.0, 9.0}
	calls := 0
	result := strategy.Execute(func() (float64, error) {
		value := cycle[calls%len(cycle)]
		calls++
		return value, nil
	})

	require.False(t, result.Complete)
	assert.Equal(t, 40, result.Iterations)
	assert.Equal(t, PhaseValidation, result.FinalPhase)
	assert.Equal(t, "maximum iterations reached, measurements not stable", result.Reason)

	// The runtime itself settles under the loose warmup threshold; the
	// measurements never satisfy the tighter analysis threshold.
	assert.True(t, result.RuntimeStable)
	assert.InDelta(t, 0.1432, result.CV, 1e-3)
	assert.Less(t, result.StabilityScore, 0.1)
}

func TestWarmupTimeout(t *testing.T) {
	cfg := common.QuickConfig()
	cfg.WarmupTimeout = time.Nanosecond
	strategy := newTestStrategy(cfg)

	result := strategy.Execute(func() (float64, error) {
		time.Sleep(time.Millisecond)
		return 10.0, nil
	})

	require.False(t, result.Complete)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, PhaseInitialization, result.FinalPhase)
	assert.Equal(t, common.UndefinedCV, result.CV)
	assert.Equal(t,
		"timeout exceeded, minimum iterations not met, runtime not stable, high coefficient of variation",
		result.Reason)
}

func TestWarmupSampleError(t *testing.T) {
	strategy := newTestStrategy(common.QuickConfig())

	calls := 0
	result := strategy.Execute(func() (float64, error) {
		calls++
		if calls == 3 {
			return 0.0, errors.New("measurement backend offline")
		}
		return 10.0, nil
	})

	require.False(t, result.Complete)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, "error during warmup: measurement backend offline", result.Reason)
	assert.Equal(t, common.UndefinedCV, result.CV)
	assert.Equal(t, 1.0, result.Metrics["warmupError"])
}

func TestWarmupPanicRecovered(t *testing.T) {
	strategy := newTestStrategy(common.QuickConfig())

	calls := 0
	result := strategy.Execute(func() (float64, error) {
		calls++
		if calls == 2 {
			panic("simulated crash")
		}
		return 10.0, nil
	})

	require.False(t, result.Complete)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, "error during warmup: warmup function panicked: simulated crash", result.Reason)
	assert.Equal(t, 1.0, result.Metrics["warmupError"])
}

func TestWarmupExecuteBatch(t *testing.T) {
	strategy := newTestStrategy(common.QuickConfig())

	batches := 0
	result := strategy.ExecuteBatch(func() ([]float64, error) {
		batches++
		return []float64{10.0, 10.0, 10.0, 10.0}, nil
	})

	require.True(t, result.Complete)
	assert.Equal(t, 3, batches)
	assert.Equal(t, 12, result.Iterations)
	assert.Equal(t, PhaseCompleted, result.FinalPhase)
	assert.Equal(t, 4.0, result.Metrics["batchSize"])
}

func TestWarmupEstimates(t *testing.T) {
	fresh := newTestStrategy(common.DefaultConfig())
	assert.True(t, fresh.ShouldContinue())
	assert.Equal(t, 10, fresh.EstimateRemainingIterations())

	done := newTestStrategy(common.QuickConfig())
	result := done.Execute(func() (float64, error) { return 10.0, nil })
	require.True(t, result.Complete)
	assert.False(t, done.ShouldContinue())
	assert.Equal(t, 0, done.EstimateRemainingIterations())
}

func TestWarmupStatusSnapshot(t *testing.T) {
	cfg := common.QuickConfig()
	strategy := newTestStrategy(cfg)

	result := strategy.Execute(func() (float64, error) { return 10.0, nil })
	require.True(t, result.Complete)

	status := strategy.Status()
	assert.Equal(t, 10, status.Iteration)
	assert.Equal(t, PhaseCompleted, status.Phase)
	assert.True(t, status.Complete)
	assert.Zero(t, status.CV)
	assert.Equal(t, cfg.WarmupCVThreshold, status.TargetCV)
	assert.True(t, status.Runtime.Stable)
	assert.True(t, status.MeasurementsStable)
	assert.InDelta(t, 1.0, status.StabilityScore, 1e-9)
	assert.Equal(t, 0, status.EstimatedRemaining)
}
