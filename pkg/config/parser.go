package config

import (
	"encoding/json"
	"os"

	log "github.com/sirupsen/logrus"
)

// BenchmarkConfiguration is the on-disk suite description. Engine override
// fields left at zero fall back to the selected preset's values.
type BenchmarkConfiguration struct {
	Seed int64 `json:"Seed"`

	OutputPathPrefix string `json:"OutputPathPrefix"`

	Preset string   `json:"Preset"`
	Codecs []string `json:"Codecs"`

	PayloadTier  string `json:"PayloadTier"`
	PayloadCount int    `json:"PayloadCount"`

	MeasurementMode string `json:"MeasurementMode"`

	ConfidenceLevel   float64 `json:"ConfidenceLevel"`
	MarginOfError     float64 `json:"MarginOfError"`
	MinimumEffectSize float64 `json:"MinimumEffectSize"`

	MinSamples int `json:"MinSamples"`
	MaxSamples int `json:"MaxSamples"`

	MinWarmupIterations  int     `json:"MinWarmupIterations"`
	MaxWarmupIterations  int     `json:"MaxWarmupIterations"`
	WarmupTimeoutSeconds int     `json:"WarmupTimeoutSeconds"`
	WarmupCVThreshold    float64 `json:"WarmupCVThreshold"`

	MeasurementTimeoutSeconds int     `json:"MeasurementTimeoutSeconds"`
	CVThreshold               float64 `json:"CVThreshold"`
	StabilityWindowSize       int     `json:"StabilityWindowSize"`
	OutlierThreshold          float64 `json:"OutlierThreshold"`

	ConvergenceThreshold float64 `json:"ConvergenceThreshold"`
	ConvergenceWindow    int     `json:"ConvergenceWindow"`

	MaxBenchmarkDurationSeconds int `json:"MaxBenchmarkDurationSeconds"`
}

func ReadConfigurationFile(path string) BenchmarkConfiguration {
	byteValue, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}

	var config BenchmarkConfiguration
	err = json.Unmarshal(byteValue, &config)
	if err != nil {
		log.Fatal(err)
	}

	return config
}
