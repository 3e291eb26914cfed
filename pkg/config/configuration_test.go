package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eth-easl/bencher/pkg/common"
)

func TestNewConfigurationDefaults(t *testing.T) {
	cfg, err := NewConfiguration(BenchmarkConfiguration{})
	require.NoError(t, err)

	assert.Equal(t, common.ModeSerialize, cfg.File.MeasurementMode)
	assert.Equal(t, DefaultPayloadCount, cfg.File.PayloadCount)
	assert.Equal(t, "data/out/benchmark", cfg.File.OutputPathPrefix)
	assert.False(t, cfg.RoundTrip())

	assert.InDelta(t, 0.95, cfg.Engine.ConfidenceLevel, 1e-9)
	assert.Equal(t, 50, cfg.Engine.MinSamples)
	assert.Equal(t, int64(42), cfg.Engine.Seed)
}

func TestNewConfigurationRejectsBadInputs(t *testing.T) {
	_, err := NewConfiguration(BenchmarkConfiguration{MeasurementMode: "stream"})
	assert.Error(t, err)

	_, err = NewConfiguration(BenchmarkConfiguration{PayloadCount: -1})
	assert.Error(t, err)

	_, err = NewConfiguration(BenchmarkConfiguration{Preset: "turbo"})
	assert.Error(t, err)
}

func TestNewConfigurationRoundTripMode(t *testing.T) {
	cfg, err := NewConfiguration(BenchmarkConfiguration{MeasurementMode: "roundtrip"})
	require.NoError(t, err)

	assert.True(t, cfg.RoundTrip())
}

func TestEngineConfigOverrides(t *testing.T) {
	file := BenchmarkConfiguration{
		Preset:               "quick",
		ConfidenceLevel:      0.99,
		MinSamples:           30,
		WarmupTimeoutSeconds: 60,
		ConvergenceWindow:    8,
	}

	engine, err := file.EngineConfig()
	require.NoError(t, err)

	assert.InDelta(t, 0.99, engine.ConfidenceLevel, 1e-9)
	assert.Equal(t, 30, engine.MinSamples)
	assert.Equal(t, 1000, engine.MaxSamples)
	assert.Equal(t, time.Minute, engine.WarmupTimeout)
	assert.Equal(t, 8, engine.ConvergenceWindow)
	assert.InDelta(t, 0.01, engine.ConvergenceThreshold, 1e-9)
	assert.InDelta(t, 0.05, engine.CVThreshold, 1e-9)
	assert.Equal(t, int64(42), engine.Seed)
}

func TestEngineConfigRejectsInvalidOverride(t *testing.T) {
	file := BenchmarkConfiguration{ConfidenceLevel: 1.5}

	_, err := file.EngineConfig()
	assert.Error(t, err)
}
