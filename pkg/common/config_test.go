package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresetsAreValid(t *testing.T) {
	presets := map[string]*AdaptiveConfig{
		"default":        DefaultConfig(),
		"high-precision": HighPrecisionConfig(),
		"quick":          QuickConfig(),
	}

	for name, cfg := range presets {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, cfg.Validate())
		})
	}
}

func TestConfigByPreset(t *testing.T) {
	cfg, err := ConfigByPreset("")
	require.NoError(t, err)
	require.Equal(t, 0.95, cfg.ConfidenceLevel)

	cfg, err = ConfigByPreset(PresetQuick)
	require.NoError(t, err)
	require.Equal(t, 10, cfg.MinSamples)

	_, err = ConfigByPreset("ultra")
	require.Error(t, err)
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	tests := []struct {
		testName string
		mutate   func(*AdaptiveConfig)
	}{
		{
			testName: "confidence_level_zero",
			mutate:   func(c *AdaptiveConfig) { c.ConfidenceLevel = 0.0 },
		},
		{
			testName: "confidence_level_one",
			mutate:   func(c *AdaptiveConfig) { c.ConfidenceLevel = 1.0 },
		},
		{
			testName: "negative_margin",
			mutate:   func(c *AdaptiveConfig) { c.MarginOfError = -0.05 },
		},
		{
			testName: "min_above_max_samples",
			mutate:   func(c *AdaptiveConfig) { c.MinSamples = c.MaxSamples + 1 },
		},
		{
			testName: "min_above_max_warmup",
			mutate:   func(c *AdaptiveConfig) { c.MinWarmupIterations = c.MaxWarmupIterations + 1 },
		},
		{
			testName: "window_above_min_samples",
			mutate:   func(c *AdaptiveConfig) { c.StabilityWindowSize = c.MinSamples + 1 },
		},
		{
			testName: "convergence_window_above_stability_window",
			mutate:   func(c *AdaptiveConfig) { c.ConvergenceWindow = c.StabilityWindowSize + 1 },
		},
		{
			testName: "zero_cv_threshold",
			mutate:   func(c *AdaptiveConfig) { c.CVThreshold = 0.0 },
		},
		{
			testName: "zero_warmup_timeout",
			mutate:   func(c *AdaptiveConfig) { c.WarmupTimeout = 0 },
		},
	}

	for _, test := range tests {
		t.Run(test.testName, func(t *testing.T) {
			cfg := DefaultConfig()
			test.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Error("expected validation to fail")
			}
		})
	}
}

func TestSignificanceLevel(t *testing.T) {
	cfg := DefaultConfig()
	require.InDelta(t, 0.05, cfg.SignificanceLevel(), 1e-9)
}

func TestConfigBuilder(t *testing.T) {
	cfg, err := NewConfigBuilder().
		ConfidenceLevel(0.99).
		MarginOfError(0.02).
		SampleRange(30, 500).
		WarmupRange(20, 200).
		StabilityWindowSize(15).
		Seed(7).
		Build()
	require.NoError(t, err)
	require.Equal(t, 0.99, cfg.ConfidenceLevel)
	require.Equal(t, 0.02, cfg.MarginOfError)
	require.Equal(t, 30, cfg.MinSamples)
	require.Equal(t, 500, cfg.MaxSamples)
	require.Equal(t, 20, cfg.MinWarmupIterations)
	require.Equal(t, 15, cfg.StabilityWindowSize)
	require.Equal(t, int64(7), cfg.Seed)

	// Untouched knobs keep their preset values.
	require.Equal(t, 2.5, cfg.OutlierThreshold)
}

func TestConfigBuilderValidatesOnBuild(t *testing.T) {
	_, err := NewConfigBuilder().SampleRange(100, 10).Build()
	require.Error(t, err)

	_, err = NewConfigBuilderFrom(QuickConfig()).ConfidenceLevel(1.5).Build()
	require.Error(t, err)
}

func TestConfigBuilderDoesNotMutateBase(t *testing.T) {
	base := QuickConfig()
	_, err := NewConfigBuilderFrom(base).SampleRange(20, 2_000).Build()
	require.NoError(t, err)
	require.Equal(t, 10, base.MinSamples)
}

func TestClamp(t *testing.T) {
	if got := Clamp(1.5, 0.0, 1.0); got != 1.0 {
		t.Errorf("expected 1.0, got %f", got)
	}
	if got := Clamp(-0.2, 0.0, 1.0); got != 0.0 {
		t.Errorf("expected 0.0, got %f", got)
	}
	if got := Clamp(0.4, 0.0, 1.0); got != 0.4 {
		t.Errorf("expected 0.4, got %f", got)
	}
}
