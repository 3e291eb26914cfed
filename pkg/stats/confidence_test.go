package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eth-easl/bencher/pkg/common"
)

func testConfig() *common.AdaptiveConfig {
	return common.DefaultConfig()
}

func TestTIntervalKnownValues(t *testing.T) {
	calc := NewIntervalCalculator(testConfig())
	samples := []float64{10, 12, 11, 13, 9, 10, 12, 11}

	ci := calc.TInterval(samples)

	require.InDelta(t, 11.0, ci.Mean, 1e-9)
	require.InDelta(t, 0.9397074, ci.Margin, 1e-6)
	assert.InDelta(t, 10.0602926, ci.Lower, 1e-6)
	assert.InDelta(t, 11.9397074, ci.Upper, 1e-6)
	assert.Equal(t, "t-distribution", ci.Method)
	assert.InDelta(t, 0.95, ci.Level, 1e-12)
	assert.True(t, ci.Contains(11.0))
	assert.False(t, ci.Contains(13.0))
}

func TestIntervalOrderingInvariant(t *testing.T) {
	calc := NewIntervalCalculator(testConfig())

	tests := []struct {
		testName string
		samples  []float64
	}{
		{"empty", []float64{}},
		{"single", []float64{42.0}},
		{"uniform", []float64{10, 11, 9, 10, 12, 10, 11, 9}},
		{"skewed", []float64{10, 10.5, 9.5, 10.2, 9.8, 10.1, 250.0}},
		{"constant", []float64{7, 7, 7, 7, 7}},
	}

	for _, test := range tests {
		t.Run(test.testName, func(t *testing.T) {
			intervals := []ConfidenceInterval{
				calc.TInterval(test.samples),
				calc.BootstrapInterval(test.samples, 1000),
				calc.RobustInterval(test.samples),
				calc.VarianceInterval(test.samples),
			}
			for _, ci := range intervals {
				if ci.Lower > ci.Mean || ci.Mean > ci.Upper {
					t.Errorf("method %s violated ordering: [%f, %f] around %f",
						ci.Method, ci.Lower, ci.Upper, ci.Mean)
				}
			}
		})
	}
}

func TestBootstrapIntervalDeterministic(t *testing.T) {
	calc := NewIntervalCalculator(testConfig())
	samples := []float64{10, 11, 9, 10, 12, 10.5, 9.5, 11.5, 10.2, 9.8}

	first := calc.BootstrapInterval(samples, 2000)
	second := calc.BootstrapInterval(samples, 2000)
	require.Equal(t, first, second)

	// A fresh calculator built from the same configuration reproduces it too.
	other := NewIntervalCalculator(testConfig())
	assert.Equal(t, first, other.BootstrapInterval(samples, 2000))
	assert.Equal(t, "bootstrap-percentile", first.Method)
}

func TestBootstrapIntervalDegenerateInputs(t *testing.T) {
	calc := NewIntervalCalculator(testConfig())

	single := calc.BootstrapInterval([]float64{5.0}, 1000)
	assert.InDelta(t, 5.0, single.Lower, 1e-12)
	assert.InDelta(t, 5.0, single.Upper, 1e-12)
	assert.InDelta(t, 0.0, single.Width(), 1e-12)

	// Zero iterations falls back to the default resample count.
	defaulted := calc.BootstrapInterval([]float64{10, 11, 9, 12}, 0)
	assert.LessOrEqual(t, defaulted.Lower, defaulted.Upper)
}

func TestRobustIntervalResistsContamination(t *testing.T) {
	calc := NewIntervalCalculator(testConfig())
	samples := []float64{10, 11, 9, 10, 12, 10, 11, 500}
	contaminatedMean := 71.625

	robust := calc.RobustInterval(samples)
	require.InDelta(t, 10.5, robust.Mean, 1e-9)
	assert.InDelta(t, 0.5320419, robust.Margin, 1e-5)
	assert.False(t, robust.Contains(contaminatedMean))
	assert.Equal(t, "median-mad", robust.Method)

	// The plain t-interval is dragged along by the extreme value.
	plain := calc.TInterval(samples)
	assert.True(t, plain.Contains(contaminatedMean))
}

func TestVarianceIntervalBracketsSampleVariance(t *testing.T) {
	calc := NewIntervalCalculator(testConfig())
	samples := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	ci := calc.VarianceInterval(samples)
	require.InDelta(t, 32.0/7.0, ci.Mean, 1e-9)
	assert.Less(t, ci.Lower, ci.Mean)
	assert.Less(t, ci.Mean, ci.Upper)
	assert.InDelta(t, 1.999, ci.Lower, 0.01)
	assert.InDelta(t, 19.27, ci.Upper, 0.06)
	assert.Equal(t, "variance-chi-square", ci.Method)
}

func TestRequiredSampleSize(t *testing.T) {
	calc := NewIntervalCalculator(testConfig())

	tests := []struct {
		testName      string
		samples       []float64
		desiredMargin float64
		expected      int
	}{
		{"tight margin", []float64{10, 12}, 1.0, 8},
		{"loose margin", []float64{10, 12}, 10.0, 2},
		{"single sample", []float64{5}, 1.0, 100},
		{"zero margin", []float64{10, 12}, 0.0, 100},
	}

	for _, test := range tests {
		t.Run(test.testName, func(t *testing.T) {
			if got := calc.RequiredSampleSize(test.samples, test.desiredMargin); got != test.expected {
				t.Errorf("RequiredSampleSize = %d, expected %d", got, test.expected)
			}
		})
	}
}

func TestMeetsPrecisionTarget(t *testing.T) {
	calc := NewIntervalCalculator(testConfig())

	narrow := ConfidenceInterval{Lower: 9.5, Upper: 10.5, Mean: 10.0}
	assert.True(t, calc.MeetsPrecisionTarget(narrow, 0.1))
	assert.False(t, calc.MeetsPrecisionTarget(narrow, 0.05))

	// A zero mean makes the relative width undefined.
	centered := ConfidenceInterval{Lower: -1.0, Upper: 1.0, Mean: 0.0}
	assert.Equal(t, common.UndefinedCV, centered.RelativeWidth())
	assert.False(t, calc.MeetsPrecisionTarget(centered, 0.1))
}
