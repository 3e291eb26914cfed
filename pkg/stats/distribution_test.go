package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestZCriticalReferenceTable(t *testing.T) {
	tests := []struct {
		alpha    float64
		expected float64
	}{
		{0.001, 3.291},
		{0.005, 2.576},
		{0.01, 2.326},
		{0.025, 1.960},
		{0.05, 1.645},
		{0.1, 1.282},
	}

	for _, test := range tests {
		if got := zCritical(test.alpha); got != test.expected {
			t.Errorf("zCritical(%f) = %f, expected %f", test.alpha, got, test.expected)
		}
	}

	// Beyond the table the Laplace bound takes over.
	assert.InDelta(t, math.Sqrt(-2.0*math.Log(0.2)), zCritical(0.2), 1e-12)
}

func TestNormalQuantileMatchesReference(t *testing.T) {
	tests := []struct {
		p        float64
		expected float64
	}{
		{0.975, 1.959964},
		{0.95, 1.644854},
		{0.9, 1.281552},
		{0.8, 0.841621},
	}

	for _, test := range tests {
		assert.InDelta(t, test.expected, normalQuantile(test.p), 1e-4, "p=%f", test.p)
	}

	// CDF and quantile must invert each other.
	for _, p := range []float64{0.01, 0.1, 0.5, 0.9, 0.99} {
		assert.InDelta(t, p, normalCDF(normalQuantile(p)), 1e-9)
	}
}

func TestTCriticalSmallSampleCorrection(t *testing.T) {
	assert.InDelta(t, 2.03, tCritical(7, 0.025), 1e-9)
	assert.InDelta(t, 1.96, tCritical(30, 0.025), 1e-12)
	assert.InDelta(t, 1.96, tCritical(1000, 0.025), 1e-12)

	// Wider tails for fewer degrees of freedom.
	for df := 2; df < 30; df++ {
		if tCritical(df, 0.025) <= tCritical(df+1, 0.025) {
			t.Errorf("tCritical not decreasing at df=%d", df)
		}
	}
}

func TestChiSquareQuantileAgainstExact(t *testing.T) {
	tests := []struct {
		df        int
		p         float64
		maxRelErr float64
	}{
		{3, 0.975, 0.01},
		{5, 0.975, 0.01},
		{10, 0.975, 0.01},
		{20, 0.975, 0.01},
		{10, 0.025, 0.02},
		{20, 0.025, 0.01},
		{5, 0.025, 0.05},
		// The cube transform is rough in the far lower tail at tiny df.
		{3, 0.025, 0.25},
	}

	for _, test := range tests {
		exact := distuv.ChiSquared{K: float64(test.df)}.Quantile(test.p)
		got := chiSquareQuantile(test.df, test.p)
		relErr := math.Abs(got-exact) / exact
		if relErr > test.maxRelErr {
			t.Errorf("chiSquareQuantile(%d, %f) = %f, exact %f, relative error %f",
				test.df, test.p, got, exact, relErr)
		}
	}
}

func TestTTestPValueApproximation(t *testing.T) {
	// Large df follows the normal distribution directly.
	assert.InDelta(t, 0.0455, tTestPValue(2.0, 40), 1e-3)
	assert.InDelta(t, 1.0, tTestPValue(0.0, 40), 1e-12)
	assert.InDelta(t, 1.0, tTestPValue(5.0, 0), 1e-12)

	// Smaller df means heavier tails, hence a larger p for the same statistic.
	assert.Greater(t, tTestPValue(2.0, 5), tTestPValue(2.0, 40))

	for _, df := range []float64{5, 10, 40} {
		last := 2.0
		for _, tStat := range []float64{0.5, 1.0, 2.0, 4.0} {
			p := tTestPValue(tStat, df)
			if p < 0.0 || p > 1.0 {
				t.Errorf("p-value %f out of range at t=%f df=%f", p, tStat, df)
			}
			if p >= last {
				t.Errorf("p-value not decreasing at t=%f df=%f", tStat, df)
			}
			last = p
		}
	}

	// The sign of the statistic must not matter.
	assert.Equal(t, tTestPValue(2.5, 12), tTestPValue(-2.5, 12))
}
