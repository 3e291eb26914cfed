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

	"github.com/eth-easl/bencher/pkg/common"
)

// targetPower is the conventional 80% detection probability the power
// checks and sample-size estimates aim for.
const targetPower = 0.8

const (
	oneSampleTestName = "one-sample t-test"
	twoSampleTestName = "Welch two-sample t-test"
)

// SignificanceResult is the outcome of one hypothesis test. A result is
// Significant only when the p-value clears the configured level AND the
// effect size clears the configured minimum, so statistically detectable
// but practically irrelevant differences stay non-significant.
type SignificanceResult struct {
	Significant bool
	PValue      float64
	// EffectSize is Cohen's d. It carries the CV sentinel when the spread
	// is zero and the effect therefore unbounded.
	EffectSize float64
	Power      float64
	// RequiredSampleSize estimates the samples (per group for two-sample
	// tests) needed to reach the target power for the observed effect.
	RequiredSampleSize int
	TestName           string
}

func (r SignificanceResult) String() string {
	return fmt.Sprintf("%s: significant=%t p=%.4f d=%.4f power=%.2f",
		r.TestName, r.Significant, r.PValue, r.EffectSize, r.Power)
}

// SignificanceDetector runs the t-tests the stopping rules and comparison
// reports are built on.
type SignificanceDetector struct {
	cfg *common.AdaptiveConfig
}

func NewSignificanceDetector(cfg *common.AdaptiveConfig) *SignificanceDetector {
	return &SignificanceDetector{cfg: cfg}
}

// OneSampleTTest tests whether the sample mean differs from zero. For
// latency sequences that is a liveness check more than a hypothesis: the
// interesting outputs are the p-value, effect size, and power that feed the
// stopping evaluator.
func (d *SignificanceDetector) OneSampleTTest(samples []float64) SignificanceResult {
	n := len(samples)
	if n < common.MinSamplesForAnalysis {
		return d.insufficient(oneSampleTestName)
	}

	m := mean(samples)
	sd := sampleStdDev(samples)
	if sd == 0.0 {
		return d.zeroVariance(m != 0.0, oneSampleTestName)
	}

	t := m / (sd / math.Sqrt(float64(n)))
	p := tTestPValue(t, float64(n-1))
	effect := math.Abs(m) / sd
	power := d.statisticalPower(effect, n)

	return SignificanceResult{
		Significant:        p < d.cfg.SignificanceLevel() && effect >= d.cfg.MinimumEffectSize,
		PValue:             p,
		EffectSize:         effect,
		Power:              power,
		RequiredSampleSize: d.requiredSamplesForPower(effect),
		TestName:           oneSampleTestName,
	}
}

// TwoSampleTTest compares two independent sample sequences with Welch's
// unequal-variance t-test.
func (d *SignificanceDetector) TwoSampleTTest(a, b []float64) SignificanceResult {
	n1, n2 := len(a), len(b)
	if n1 < common.MinSamplesForAnalysis || n2 < common.MinSamplesForAnalysis {
		return d.insufficient(twoSampleTestName)
	}

	m1, m2 := mean(a), mean(b)
	v1, v2 := sampleVariance(a), sampleVariance(b)
	if v1 == 0.0 && v2 == 0.0 {
		return d.zeroVariance(m1 != m2, twoSampleTestName)
	}

	fn1, fn2 := float64(n1), float64(n2)
	se := math.Sqrt(v1/fn1 + v2/fn2)
	t := (m1 - m2) / se

	// Welch-Satterthwaite degrees of freedom.
	num := math.Pow(v1/fn1+v2/fn2, 2.0)
	den := math.Pow(v1/fn1, 2.0)/(fn1-1.0) + math.Pow(v2/fn2, 2.0)/(fn2-1.0)
	df := num / den

	p := tTestPValue(t, df)

	pooledSd := math.Sqrt(((fn1-1.0)*v1 + (fn2-1.0)*v2) / (fn1 + fn2 - 2.0))
	effect := math.Abs(m1-m2) / pooledSd
	power := d.statisticalPower(effect, common.MinOf(n1, n2))

	return SignificanceResult{
		Significant:        p < d.cfg.SignificanceLevel() && effect >= d.cfg.MinimumEffectSize,
		PValue:             p,
		EffectSize:         effect,
		Power:              power,
		RequiredSampleSize: d.requiredSamplesForPower(effect),
		TestName:           twoSampleTestName,
	}
}

// HasSufficientPower reports whether the sequence is long enough AND the
// observed effect detectable enough that a non-significant outcome actually
// means something.
func (d *SignificanceDetector) HasSufficientPower(samples []float64) bool {
	if len(samples) < d.cfg.MinSamples {
		return false
	}

	return d.OneSampleTTest(samples).Power >= targetPower
}

// TestNormality screens for gross non-normality with the moment rule of
// thumb |skewness| < 2 and |excess kurtosis| < 7. Sequences too short to
// judge, or long enough that the t-tests are robust regardless, pass
// vacuously.
func (d *SignificanceDetector) TestNormality(samples []float64) bool {
	n := len(samples)
	if n < 3 || n > 5000 {
		return true
	}

	skew, kurt := populationMoments(samples)

	return math.Abs(skew) < 2.0 && math.Abs(kurt) < 7.0
}

// statisticalPower approximates the probability of detecting an effect of
// size d with n samples, using the normal shift approximation
// 1 - Phi(z_crit - d*sqrt(n)).
func (d *SignificanceDetector) statisticalPower(effect float64, n int) float64 {
	z := normalQuantile(1.0 - d.cfg.SignificanceLevel()/2.0)
	power := 1.0 - normalCDF(z-effect*math.Sqrt(float64(n)))

	return clampUnit(power)
}

// requiredSamplesForPower inverts the power approximation for the target
// power. A non-positive effect cannot be detected at any size, so the
// configured maximum is returned as "keep going until the hard cap".
func (d *SignificanceDetector) requiredSamplesForPower(effect float64) int {
	if effect <= 0.0 {
		return d.cfg.MaxSamples
	}

	zCrit := normalQuantile(1.0 - d.cfg.SignificanceLevel()/2.0)
	zPower := normalQuantile(targetPower)
	required := int(math.Ceil(math.Pow((zCrit+zPower)/effect, 2.0)))

	return common.MaxOf(d.cfg.MinSamples, common.MinOf(required, d.cfg.MaxSamples))
}

func (d *SignificanceDetector) insufficient(testName string) SignificanceResult {
	return SignificanceResult{
		Significant:        false,
		PValue:             1.0,
		RequiredSampleSize: d.cfg.MinSamples,
		TestName:           testName,
	}
}

// zeroVariance resolves the degenerate constant-sequence case without
// dividing by zero: identical constants are maximally non-significant,
// differing constants maximally significant with an unbounded effect.
func (d *SignificanceDetector) zeroVariance(differs bool, testName string) SignificanceResult {
	if !differs {
		return SignificanceResult{
			Significant:        false,
			PValue:             1.0,
			RequiredSampleSize: d.cfg.MaxSamples,
			TestName:           testName,
		}
	}

	return SignificanceResult{
		Significant:        true,
		PValue:             0.0,
		EffectSize:         common.UndefinedCV,
		Power:              1.0,
		RequiredSampleSize: d.cfg.MinSamples,
		TestName:           testName,
	}
}
