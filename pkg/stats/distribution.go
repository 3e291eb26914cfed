package stats

import "math"

// Closed-form approximations for the critical values the analyzers need.
// Package tests cross-check these against gonum's exact distributions.

// normalCDF evaluates the standard normal distribution function. Exact up to
// the accuracy of math.Erf.
func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// normalQuantile is the inverse of normalCDF, valid for p in (0, 1).
func normalQuantile(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2.0*p-1.0)
}

// zCritical returns the upper-tail critical value z with P(Z > z) = alpha.
// Common significance levels come from a fixed table; anything looser falls
// back to the Laplace tail bound, which overestimates slightly.
func zCritical(alpha float64) float64 {
	switch {
	case alpha <= 0.001:
		return 3.291
	case alpha <= 0.005:
		return 2.576
	case alpha <= 0.01:
		return 2.326
	case alpha <= 0.025:
		return 1.960
	case alpha <= 0.05:
		return 1.645
	case alpha <= 0.1:
		return 1.282
	default:
		return math.Sqrt(-2.0 * math.Log(alpha))
	}
}

// tCritical approximates the Student t upper-tail critical value. From 30
// degrees of freedom on, the normal value is close enough; below that a
// first-order correction widens the tail. The correction understates heavy
// tails for df < 5, which makes small-sample intervals slightly narrow; the
// minimum-sample floor in the configuration keeps runs out of that regime.
func tCritical(df int, alpha float64) float64 {
	z := zCritical(alpha)
	if df >= 30 {
		return z
	}

	return z + z/(4.0*float64(df))
}

// tTestPValue approximates the two-tailed p-value of a t statistic. Above 30
// degrees of freedom the normal approximation is used directly; below, the
// statistic is standardized by the t distribution's standard deviation
// sqrt(df/(df-2)) before the normal lookup, which widens the tails. Rough
// below 5 degrees of freedom.
func tTestPValue(t, df float64) float64 {
	if df <= 0 {
		return 1.0
	}

	abs := math.Abs(t)
	if df > 2.0 && df < 30 {
		abs *= math.Sqrt((df - 2.0) / df)
	}

	p := 2.0 * (1.0 - normalCDF(abs))

	return clampUnit(p)
}

// chiSquareQuantile approximates the p-quantile of the chi-square
// distribution with the Wilson-Hilferty cube transform, accurate to about 1%
// for df >= 3. The floor keeps tiny-df lower quantiles positive, where the
// transform can otherwise dip below zero.
func chiSquareQuantile(df int, p float64) float64 {
	z := normalQuantile(p)
	h := 2.0 / (9.0 * float64(df))
	v := 1.0 - h + z*math.Sqrt(h)
	q := float64(df) * v * v * v

	if q < 1e-10 {
		return 1e-10
	}

	return q
}

func clampUnit(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}

	return v
}
