package metric

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(benchmark string, phase string, iteration int, latencyMs float64) SampleRecord {
	return SampleRecord{
		RunID:        "run-1",
		Benchmark:    benchmark,
		Phase:        phase,
		Iteration:    iteration,
		Timestamp:    1700000000 + int64(iteration),
		LatencyMicro: int64(latencyMs * 1000.0),
		LatencyMs:    latencyMs,
	}
}

func TestExporterCollectsCopies(t *testing.T) {
	exporter := NewExporter()

	exporter.ReportSample(sampleRecord("json", "warmup", 1, 10.0))
	exporter.ReportSample(sampleRecord("json", "measurement", 2, 11.0))
	exporter.ReportSample(sampleRecord("json", "measurement", 3, 12.0))
	exporter.ReportBenchmark(BenchmarkReport{RunID: "run-1", Benchmark: "json", Success: true})

	records := exporter.SampleRecords()
	require.Len(t, records, 3)
	assert.Equal(t, "warmup", records[0].Phase)

	records[0].Phase = "mutated"
	assert.Equal(t, "warmup", exporter.SampleRecords()[0].Phase)

	reports := exporter.BenchmarkReports()
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Success)
}

func TestExporterLatenciesFilter(t *testing.T) {
	exporter := NewExporter()

	exporter.ReportSample(sampleRecord("json", "warmup", 1, 15.0))
	exporter.ReportSample(sampleRecord("json", "measurement", 2, 10.0))
	exporter.ReportSample(sampleRecord("gob", "measurement", 1, 99.0))
	exporter.ReportSample(sampleRecord("json", "measurement", 3, 11.0))

	assert.Equal(t, []float64{10.0, 11.0}, exporter.Latencies("json", "measurement"))
	assert.Equal(t, []float64{15.0, 10.0, 11.0}, exporter.Latencies("json", ""))
	assert.Equal(t, []float64{99.0}, exporter.Latencies("gob", "measurement"))
	assert.Empty(t, exporter.Latencies("protobuf", ""))
}

func TestExporterWriteAndReadBack(t *testing.T) {
	exporter := NewExporter()
	exporter.ReportSample(sampleRecord("json", "measurement", 1, 10.5))
	exporter.ReportSample(sampleRecord("json", "measurement", 2, 11.25))

	dir := t.TempDir()
	samplesPath := filepath.Join(dir, "samples.csv")
	reportsPath := filepath.Join(dir, "reports.csv")

	require.NoError(t, exporter.WriteSampleRecords(samplesPath))

	records, err := ReadSampleRecords(samplesPath)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run-1", records[0].RunID)
	assert.Equal(t, "json", records[0].Benchmark)
	assert.Equal(t, 2, records[1].Iteration)
	assert.InDelta(t, 11.25, records[1].LatencyMs, 1e-9)
	assert.Equal(t, int64(11250), records[1].LatencyMicro)

	exporter.ReportBenchmark(BenchmarkReport{
		RunID:          "run-1",
		Benchmark:      "json",
		Success:        true,
		MeanMs:         10.875,
		CV:             0.05,
		StoppingReason: "confidence-achieved",
	})
	require.NoError(t, exporter.WriteReports(reportsPath))

	reports, err := ReadReports(reportsPath)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Success)
	assert.InDelta(t, 10.875, reports[0].MeanMs, 1e-9)
	assert.Equal(t, "confidence-achieved", reports[0].StoppingReason)
}

func TestExporterReadMissingFile(t *testing.T) {
	_, err := ReadSampleRecords(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestExporterConcurrentReports(t *testing.T) {
	exporter := NewExporter()

	var wg sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				exporter.ReportSample(sampleRecord("json", "measurement", worker*25+i, 10.0))
			}
		}(worker)
	}
	wg.Wait()

	assert.Len(t, exporter.SampleRecords(), 100)
}
