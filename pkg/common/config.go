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

package common

import (
	"fmt"
	"time"
)

// AdaptiveConfig carries every tuning knob of the measurement engine. One
// instance is built per benchmark run and treated as read-only afterwards;
// all analyzers, the warmup machinery, and the driver share the same pointer.
type AdaptiveConfig struct {
	// ConfidenceLevel is the coverage of reported intervals and the
	// complement of the significance threshold. Must lie in (0, 1).
	ConfidenceLevel float64

	// MarginOfError is the target relative precision of the final interval.
	MarginOfError float64

	// MinimumEffectSize is the smallest Cohen's d considered practically
	// meaningful; smaller effects are never reported as significant.
	MinimumEffectSize float64

	MinSamples int
	MaxSamples int

	MinWarmupIterations int
	MaxWarmupIterations int
	WarmupTimeout       time.Duration

	// WarmupCVThreshold is the coefficient-of-variation bound used while
	// deciding whether the runtime has settled. Looser than CVThreshold,
	// which gates the final result.
	WarmupCVThreshold float64

	MeasurementTimeout time.Duration

	// CVThreshold is the dispersion bound for declaring measurements stable.
	CVThreshold float64

	// StabilityWindowSize is how many trailing samples stability decisions
	// look at. Older samples are kept by callers but ignored here.
	StabilityWindowSize int

	// OutlierThreshold is the modified z-score cutoff shared by the outlier
	// detectors that score against the median.
	OutlierThreshold float64

	ConvergenceThreshold float64
	ConvergenceWindow    int

	MaxBenchmarkDuration time.Duration

	// Seed makes every randomized step (bootstrap resampling, payload
	// generation) reproducible across runs.
	Seed int64
}

// DefaultConfig returns the tuning used by ordinary benchmark runs.
func DefaultConfig() *AdaptiveConfig {
	return &AdaptiveConfig{
		ConfidenceLevel:      0.95,
		MarginOfError:        0.05,
		MinimumEffectSize:    0.01,
		MinSamples:           50,
		MaxSamples:           10_000,
		MinWarmupIterations:  10,
		MaxWarmupIterations:  1_000,
		WarmupTimeout:        5 * time.Minute,
		WarmupCVThreshold:    0.05,
		MeasurementTimeout:   30 * time.Minute,
		CVThreshold:          0.02,
		StabilityWindowSize:  20,
		OutlierThreshold:     2.5,
		ConvergenceThreshold: 0.01,
		ConvergenceWindow:    10,
		MaxBenchmarkDuration: time.Hour,
		Seed:                 42,
	}
}

// HighPrecisionConfig trades runtime for tighter intervals. Used for
// publication-quality numbers.
func HighPrecisionConfig() *AdaptiveConfig {
	cfg := DefaultConfig()
	cfg.ConfidenceLevel = 0.99
	cfg.MarginOfError = 0.01
	cfg.MinSamples = 100
	cfg.MaxSamples = 50_000
	cfg.MinWarmupIterations = 50
	cfg.MaxWarmupIterations = 5_000
	cfg.WarmupCVThreshold = 0.02
	cfg.CVThreshold = 0.01
	cfg.StabilityWindowSize = 50

	return cfg
}

// QuickConfig loosens every bound for smoke runs and CI pipelines.
func QuickConfig() *AdaptiveConfig {
	cfg := DefaultConfig()
	cfg.ConfidenceLevel = 0.90
	cfg.MarginOfError = 0.10
	cfg.MinSamples = 10
	cfg.MaxSamples = 1_000
	cfg.MinWarmupIterations = 5
	cfg.MaxWarmupIterations = 100
	cfg.WarmupTimeout = 30 * time.Second
	cfg.WarmupCVThreshold = 0.10
	cfg.CVThreshold = 0.05
	cfg.StabilityWindowSize = 10
	cfg.ConvergenceWindow = 5

	return cfg
}

// ConfigByPreset resolves a preset name from the configuration file.
func ConfigByPreset(name string) (*AdaptiveConfig, error) {
	switch name {
	case "", PresetDefault:
		return DefaultConfig(), nil
	case PresetHighPrecision:
		return HighPrecisionConfig(), nil
	case PresetQuick:
		return QuickConfig(), nil
	default:
		return nil, fmt.Errorf("unknown configuration preset %q", name)
	}
}

// Validate rejects configurations no component can act on. Every entry point
// that accepts caller-supplied tuning calls this before handing the config to
// the engine.
func (c *AdaptiveConfig) Validate() error {
	if c.ConfidenceLevel <= 0.0 || c.ConfidenceLevel >= 1.0 {
		return fmt.Errorf("confidence level must be in (0, 1), got %f", c.ConfidenceLevel)
	}
	if c.MarginOfError <= 0.0 {
		return fmt.Errorf("margin of error must be positive, got %f", c.MarginOfError)
	}
	if c.MinimumEffectSize < 0.0 {
		return fmt.Errorf("minimum effect size must be non-negative, got %f", c.MinimumEffectSize)
	}
	if c.MinSamples < 2 {
		return fmt.Errorf("need at least 2 samples for any analysis, got %d", c.MinSamples)
	}
	if c.MinSamples > c.MaxSamples {
		return fmt.Errorf("minimum sample count %d exceeds maximum %d", c.MinSamples, c.MaxSamples)
	}
	if c.MinWarmupIterations < 0 {
		return fmt.Errorf("minimum warmup iterations must be non-negative, got %d", c.MinWarmupIterations)
	}
	if c.MinWarmupIterations > c.MaxWarmupIterations {
		return fmt.Errorf("minimum warmup iterations %d exceed maximum %d", c.MinWarmupIterations, c.MaxWarmupIterations)
	}
	if c.WarmupTimeout <= 0 || c.MeasurementTimeout <= 0 || c.MaxBenchmarkDuration <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.WarmupCVThreshold <= 0.0 || c.CVThreshold <= 0.0 {
		return fmt.Errorf("coefficient-of-variation thresholds must be positive")
	}
	if c.StabilityWindowSize < 3 {
		return fmt.Errorf("stability window must hold at least 3 samples, got %d", c.StabilityWindowSize)
	}
	if c.StabilityWindowSize > c.MinSamples {
		return fmt.Errorf("stability window %d exceeds minimum sample count %d", c.StabilityWindowSize, c.MinSamples)
	}
	if c.OutlierThreshold <= 0.0 {
		return fmt.Errorf("outlier threshold must be positive, got %f", c.OutlierThreshold)
	}
	if c.ConvergenceThreshold <= 0.0 {
		return fmt.Errorf("convergence threshold must be positive, got %f", c.ConvergenceThreshold)
	}
	if c.ConvergenceWindow < 2 {
		return fmt.Errorf("convergence window must hold at least 2 samples, got %d", c.ConvergenceWindow)
	}
	if c.ConvergenceWindow > c.StabilityWindowSize {
		return fmt.Errorf("convergence window %d exceeds stability window %d", c.ConvergenceWindow, c.StabilityWindowSize)
	}

	return nil
}

// SignificanceLevel is the alpha corresponding to the configured confidence.
func (c *AdaptiveConfig) SignificanceLevel() float64 {
	return 1.0 - c.ConfidenceLevel
}

// ConfigBuilder assembles an AdaptiveConfig from a preset base plus
// overrides, validating the result once at Build time.
type ConfigBuilder struct {
	cfg AdaptiveConfig
}

// NewConfigBuilder starts from DefaultConfig.
func NewConfigBuilder() *ConfigBuilder {
	return NewConfigBuilderFrom(DefaultConfig())
}

// NewConfigBuilderFrom starts from a copy of base; the base is not modified.
func NewConfigBuilderFrom(base *AdaptiveConfig) *ConfigBuilder {
	return &ConfigBuilder{cfg: *base}
}

func (b *ConfigBuilder) ConfidenceLevel(level float64) *ConfigBuilder {
	b.cfg.ConfidenceLevel = level
	return b
}

func (b *ConfigBuilder) MarginOfError(margin float64) *ConfigBuilder {
	b.cfg.MarginOfError = margin
	return b
}

func (b *ConfigBuilder) MinimumEffectSize(effect float64) *ConfigBuilder {
	b.cfg.MinimumEffectSize = effect
	return b
}

func (b *ConfigBuilder) SampleRange(minimum, maximum int) *ConfigBuilder {
	b.cfg.MinSamples = minimum
	b.cfg.MaxSamples = maximum
	return b
}

func (b *ConfigBuilder) WarmupRange(minimum, maximum int) *ConfigBuilder {
	b.cfg.MinWarmupIterations = minimum
	b.cfg.MaxWarmupIterations = maximum
	return b
}

func (b *ConfigBuilder) WarmupTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.WarmupTimeout = d
	return b
}

func (b *ConfigBuilder) WarmupCVThreshold(cv float64) *ConfigBuilder {
	b.cfg.WarmupCVThreshold = cv
	return b
}

func (b *ConfigBuilder) MeasurementTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.MeasurementTimeout = d
	return b
}

func (b *ConfigBuilder) CVThreshold(cv float64) *ConfigBuilder {
	b.cfg.CVThreshold = cv
	return b
}

func (b *ConfigBuilder) StabilityWindowSize(size int) *ConfigBuilder {
	b.cfg.StabilityWindowSize = size
	return b
}

func (b *ConfigBuilder) OutlierThreshold(threshold float64) *ConfigBuilder {
	b.cfg.OutlierThreshold = threshold
	return b
}

func (b *ConfigBuilder) Convergence(threshold float64, window int) *ConfigBuilder {
	b.cfg.ConvergenceThreshold = threshold
	b.cfg.ConvergenceWindow = window
	return b
}

func (b *ConfigBuilder) MaxBenchmarkDuration(d time.Duration) *ConfigBuilder {
	b.cfg.MaxBenchmarkDuration = d
	return b
}

func (b *ConfigBuilder) Seed(seed int64) *ConfigBuilder {
	b.cfg.Seed = seed
	return b
}

// Build validates the assembled configuration and hands out a fresh copy, so
// later builder reuse cannot mutate a config already in use.
func (b *ConfigBuilder) Build() (*AdaptiveConfig, error) {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
