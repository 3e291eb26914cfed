package config

import (
	"fmt"
	"time"

	"github.com/eth-easl/bencher/pkg/common"
)

// DefaultPayloadCount is used when the suite file leaves PayloadCount unset.
const DefaultPayloadCount = 100

// Configuration is the runtime form of a parsed suite file: the raw file
// with defaults applied plus the validated engine configuration.
type Configuration struct {
	File   BenchmarkConfiguration
	Engine *common.AdaptiveConfig
}

func NewConfiguration(file BenchmarkConfiguration) (*Configuration, error) {
	if file.MeasurementMode == "" {
		file.MeasurementMode = common.ModeSerialize
	}
	if file.MeasurementMode != common.ModeSerialize && file.MeasurementMode != common.ModeRoundTrip {
		return nil, fmt.Errorf("unknown measurement mode %q (known: %s, %s)",
			file.MeasurementMode, common.ModeSerialize, common.ModeRoundTrip)
	}
	if file.PayloadCount < 0 {
		return nil, fmt.Errorf("payload count must be non-negative, got %d", file.PayloadCount)
	}
	if file.PayloadCount == 0 {
		file.PayloadCount = DefaultPayloadCount
	}
	if file.OutputPathPrefix == "" {
		file.OutputPathPrefix = "data/out/benchmark"
	}

	engine, err := file.EngineConfig()
	if err != nil {
		return nil, err
	}

	return &Configuration{File: file, Engine: engine}, nil
}

func (c *Configuration) RoundTrip() bool {
	return c.File.MeasurementMode == common.ModeRoundTrip
}

// EngineConfig maps the file onto a validated AdaptiveConfig, starting from
// the preset and applying every non-zero override.
func (f BenchmarkConfiguration) EngineConfig() (*common.AdaptiveConfig, error) {
	preset, err := common.ConfigByPreset(f.Preset)
	if err != nil {
		return nil, err
	}

	builder := common.NewConfigBuilderFrom(preset)

	if f.ConfidenceLevel != 0 {
		builder.ConfidenceLevel(f.ConfidenceLevel)
	}
	if f.MarginOfError != 0 {
		builder.MarginOfError(f.MarginOfError)
	}
	if f.MinimumEffectSize != 0 {
		builder.MinimumEffectSize(f.MinimumEffectSize)
	}
	if f.MinSamples != 0 || f.MaxSamples != 0 {
		minimum, maximum := preset.MinSamples, preset.MaxSamples
		if f.MinSamples != 0 {
			minimum = f.MinSamples
		}
		if f.MaxSamples != 0 {
			maximum = f.MaxSamples
		}
		builder.SampleRange(minimum, maximum)
	}
	if f.MinWarmupIterations != 0 || f.MaxWarmupIterations != 0 {
		minimum, maximum := preset.MinWarmupIterations, preset.MaxWarmupIterations
		if f.MinWarmupIterations != 0 {
			minimum = f.MinWarmupIterations
		}
		if f.MaxWarmupIterations != 0 {
			maximum = f.MaxWarmupIterations
		}
		builder.WarmupRange(minimum, maximum)
	}
	if f.WarmupTimeoutSeconds != 0 {
		builder.WarmupTimeout(time.Duration(f.WarmupTimeoutSeconds) * time.Second)
	}
	if f.WarmupCVThreshold != 0 {
		builder.WarmupCVThreshold(f.WarmupCVThreshold)
	}
	if f.MeasurementTimeoutSeconds != 0 {
		builder.MeasurementTimeout(time.Duration(f.MeasurementTimeoutSeconds) * time.Second)
	}
	if f.CVThreshold != 0 {
		builder.CVThreshold(f.CVThreshold)
	}
	if f.StabilityWindowSize != 0 {
		builder.StabilityWindowSize(f.StabilityWindowSize)
	}
	if f.OutlierThreshold != 0 {
		builder.OutlierThreshold(f.OutlierThreshold)
	}
	if f.ConvergenceThreshold != 0 || f.ConvergenceWindow != 0 {
		threshold, window := preset.ConvergenceThreshold, preset.ConvergenceWindow
		if f.ConvergenceThreshold != 0 {
			threshold = f.ConvergenceThreshold
		}
		if f.ConvergenceWindow != 0 {
			window = f.ConvergenceWindow
		}
		builder.Convergence(threshold, window)
	}
	if f.MaxBenchmarkDurationSeconds != 0 {
		builder.MaxBenchmarkDuration(time.Duration(f.MaxBenchmarkDurationSeconds) * time.Second)
	}
	if f.Seed != 0 {
		builder.Seed(f.Seed)
	}

	return builder.Build()
}
