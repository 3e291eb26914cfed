package metric

// SampleRecord is one timed execution written to the samples CSV. Latency is
// carried both in microseconds (integer, convenient for spreadsheets) and in
// milliseconds (float, the unit the analyzers consume).
type SampleRecord struct {
	RunID        string  `csv:"run_id"`
	Benchmark    string  `csv:"benchmark"`
	Phase        string  `csv:"phase"`
	Iteration    int     `csv:"iteration"`
	Timestamp    int64   `csv:"timestamp"`
	LatencyMicro int64   `csv:"latency_micro"`
	LatencyMs    float64 `csv:"latency_ms"`
}

// BenchmarkReport is the flattened one-row-per-benchmark outcome written to
// the reports CSV.
type BenchmarkReport struct {
	RunID     string `csv:"run_id"`
	Benchmark string `csv:"benchmark"`
	Success   bool   `csv:"success"`

	WarmupIterations int    `csv:"warmup_iterations"`
	WarmupComplete   bool   `csv:"warmup_complete"`
	WarmupReason     string `csv:"warmup_reason"`

	MeasurementSamples int `csv:"measurement_samples"`
	CleanedSamples     int `csv:"cleaned_samples"`
	TotalIterations    int `csv:"total_iterations"`

	OutlierCount    int     `csv:"outlier_count"`
	OutlierRate     float64 `csv:"outlier_rate"`
	OutlierStrategy string  `csv:"outlier_strategy"`

	MeanMs   float64 `csv:"mean_ms"`
	MedianMs float64 `csv:"median_ms"`
	StdDevMs float64 `csv:"std_dev_ms"`
	CV       float64 `csv:"cv"`
	MinMs    float64 `csv:"min_ms"`
	MaxMs    float64 `csv:"max_ms"`
	P90Ms    float64 `csv:"p90_ms"`
	P95Ms    float64 `csv:"p95_ms"`
	P99Ms    float64 `csv:"p99_ms"`

	CILowerMs  float64 `csv:"ci_lower_ms"`
	CIUpperMs  float64 `csv:"ci_upper_ms"`
	CIMarginMs float64 `csv:"ci_margin_ms"`
	CIMethod   string  `csv:"ci_method"`

	PValue      float64 `csv:"p_value"`
	Significant bool    `csv:"significant"`
	EffectSize  float64 `csv:"effect_size"`
	Power       float64 `csv:"power"`

	Stable         bool    `csv:"stable"`
	StabilityScore float64 `csv:"stability_score"`

	StoppingReason      string `csv:"stopping_reason"`
	StoppingExplanation string `csv:"stopping_explanation"`

	WarmupDurationMs  float64 `csv:"warmup_duration_ms"`
	MeasureDurationMs float64 `csv:"measure_duration_ms"`
}
