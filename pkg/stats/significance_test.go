package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eth-easl/bencher/pkg/common"
)

func TestOneSampleTTestDetectsNonZeroMean(t *testing.T) {
	detector := NewSignificanceDetector(testConfig())
	samples := []float64{10, 11, 9, 10, 12, 10, 11, 9, 10, 11}

	result := detector.OneSampleTTest(samples)

	assert.True(t, result.Significant)
	assert.Less(t, result.PValue, 1e-9)
	assert.InDelta(t, 10.8571, result.EffectSize, 1e-3)
	assert.Greater(t, result.Power, 0.99)
	assert.Equal(t, 50, result.RequiredSampleSize)
	assert.Equal(t, "one-sample t-test", result.TestName)
}

func TestOneSampleTTestInsufficientData(t *testing.T) {
	detector := NewSignificanceDetector(testConfig())

	result := detector.OneSampleTTest([]float64{10})

	assert.False(t, result.Significant)
	assert.InDelta(t, 1.0, result.PValue, 1e-12)
	assert.InDelta(t, 0.0, result.EffectSize, 1e-12)
	assert.InDelta(t, 0.0, result.Power, 1e-12)
	assert.Equal(t, 50, result.RequiredSampleSize)
}

func TestIdenticalDistributionsNotSignificant(t *testing.T) {
	detector := NewSignificanceDetector(testConfig())
	a := []float64{10, 11, 9, 10, 12, 10.5, 9.5, 11.5}
	b := []float64{10, 11, 9, 10, 12, 10.5, 9.5, 11.5}

	result := detector.TwoSampleTTest(a, b)

	assert.False(t, result.Significant)
	assert.InDelta(t, 1.0, result.PValue, 1e-12)
	assert.InDelta(t, 0.0, result.EffectSize, 1e-12)
	assert.Equal(t, "Welch two-sample t-test", result.TestName)
}

func TestTwoSampleTTestSeparatedMeans(t *testing.T) {
	detector := NewSignificanceDetector(testConfig())
	a := []float64{10, 10.2, 9.8, 10.1, 9.9}
	b := []float64{20, 20.2, 19.8, 20.1, 19.9}

	result := detector.TwoSampleTTest(a, b)

	assert.True(t, result.Significant)
	assert.Less(t, result.PValue, 1e-9)
	assert.InDelta(t, 63.246, result.EffectSize, 1e-2)
	assert.Greater(t, result.Power, 0.99)
	assert.Equal(t, 50, result.RequiredSampleSize)
}

func TestZeroVarianceOutcomes(t *testing.T) {
	detector := NewSignificanceDetector(testConfig())

	t.Run("constant non-zero mean", func(t *testing.T) {
		result := detector.OneSampleTTest([]float64{5, 5, 5, 5})
		assert.True(t, result.Significant)
		assert.InDelta(t, 0.0, result.PValue, 1e-12)
		assert.Equal(t, common.UndefinedCV, result.EffectSize)
		assert.InDelta(t, 1.0, result.Power, 1e-12)
		assert.Equal(t, 50, result.RequiredSampleSize)
	})

	t.Run("constant zero mean", func(t *testing.T) {
		result := detector.OneSampleTTest([]float64{0, 0, 0})
		assert.False(t, result.Significant)
		assert.InDelta(t, 1.0, result.PValue, 1e-12)
		assert.Equal(t, 10_000, result.RequiredSampleSize)
	})

	t.Run("equal constant groups", func(t *testing.T) {
		result := detector.TwoSampleTTest([]float64{5, 5, 5}, []float64{5, 5, 5})
		assert.False(t, result.Significant)
		assert.InDelta(t, 1.0, result.PValue, 1e-12)
	})

	t.Run("different constant groups", func(t *testing.T) {
		result := detector.TwoSampleTTest([]float64{5, 5, 5}, []float64{7, 7, 7})
		assert.True(t, result.Significant)
		assert.InDelta(t, 0.0, result.PValue, 1e-12)
		assert.Equal(t, common.UndefinedCV, result.EffectSize)
	})
}

func TestHasSufficientPower(t *testing.T) {
	detector := NewSignificanceDetector(common.QuickConfig())

	strong := []float64{10.1, 9.9, 10.2, 9.8, 10.0, 10.1, 9.9, 10.0, 10.2, 9.8, 10.1, 9.9}
	assert.True(t, detector.HasSufficientPower(strong))

	// Below the minimum sample count power is never sufficient.
	assert.False(t, detector.HasSufficientPower(strong[:5]))
}

func TestNormalityScreen(t *testing.T) {
	detector := NewSignificanceDetector(testConfig())

	tests := []struct {
		testName string
		samples  []float64
		expected bool
	}{
		{"roughly symmetric", []float64{9.8, 10.1, 10.0, 9.9, 10.2, 10.05, 9.95, 10.1}, true},
		{"too short to judge", []float64{1, 2}, true},
	}

	for _, test := range tests {
		t.Run(test.testName, func(t *testing.T) {
			if got := detector.TestNormality(test.samples); got != test.expected {
				t.Errorf("TestNormality = %t, expected %t", got, test.expected)
			}
		})
	}

	t.Run("heavy right tail", func(t *testing.T) {
		samples := make([]float64, 20)
		for i := range samples {
			samples[i] = 10.0
		}
		samples[19] = 1000.0
		assert.False(t, detector.TestNormality(samples))
	})

	t.Run("very long sequences pass vacuously", func(t *testing.T) {
		samples := make([]float64, 5001)
		assert.True(t, detector.TestNormality(samples))
	})
}

func TestRequiredSamplesShrinkWithEffect(t *testing.T) {
	detector := NewSignificanceDetector(testConfig())

	// A small effect needs more samples than a large one; both estimates
	// respect the configured bounds.
	weak := []float64{10, 10.4, 9.6, 10.3, 9.7, 10.2, 9.8, 10.35, 9.65, 10.1}
	strong := []float64{100, 100.4, 99.6, 100.3, 99.7, 100.2, 99.8, 100.35, 99.65, 100.1}

	weakResult := detector.OneSampleTTest(weak)
	strongResult := detector.OneSampleTTest(strong)

	require.Greater(t, strongResult.EffectSize, weakResult.EffectSize)
	assert.GreaterOrEqual(t, weakResult.RequiredSampleSize, strongResult.RequiredSampleSize)
	assert.GreaterOrEqual(t, weakResult.RequiredSampleSize, detector.cfg.MinSamples)
	assert.LessOrEqual(t, weakResult.RequiredSampleSize, detector.cfg.MaxSamples)
}
