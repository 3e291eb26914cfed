package metric

import (
	"fmt"
	"os"
	"sync"

	"github.com/gocarina/gocsv"
)

// Exporter collects sample records and benchmark reports from concurrently
// running benchmarks and writes them out as CSV files.
type Exporter struct {
	mutex   sync.Mutex
	samples []SampleRecord
	reports []BenchmarkReport
}

func NewExporter() *Exporter {
	return &Exporter{
		samples: []SampleRecord{},
		reports: []BenchmarkReport{},
	}
}

func (e *Exporter) ReportSample(record SampleRecord) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.samples = append(e.samples, record)
}

func (e *Exporter) ReportBenchmark(report BenchmarkReport) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.reports = append(e.reports, report)
}

// SampleRecords returns a copy of the collected sample records.
func (e *Exporter) SampleRecords() []SampleRecord {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return append([]SampleRecord(nil), e.samples...)
}

// BenchmarkReports returns a copy of the collected benchmark reports.
func (e *Exporter) BenchmarkReports() []BenchmarkReport {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return append([]BenchmarkReport(nil), e.reports...)
}

// Latencies returns the recorded latencies of one benchmark in collection
// order, filtered by phase. An empty phase selects every record.
func (e *Exporter) Latencies(benchmark string, phase string) []float64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	var latencies []float64

	for _, record := range e.samples {
		if record.Benchmark != benchmark {
			continue
		}
		if phase != "" && record.Phase != phase {
			continue
		}

		latencies = append(latencies, record.LatencyMs)
	}

	return latencies
}

// WriteSampleRecords saves the collected sample records as a CSV file.
func (e *Exporter) WriteSampleRecords(path string) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return writeCSV(path, &e.samples)
}

// WriteReports saves the collected benchmark reports as a CSV file.
func (e *Exporter) WriteReports(path string) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return writeCSV(path, &e.reports)
}

func writeCSV(path string, records interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(records, f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// ReadSampleRecords loads a samples CSV written by WriteSampleRecords.
func ReadSampleRecords(path string) ([]SampleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []SampleRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return records, nil
}

// ReadReports loads a reports CSV written by WriteReports.
func ReadReports(path string) ([]BenchmarkReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reports []BenchmarkReport
	if err := gocsv.UnmarshalFile(f, &reports); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return reports, nil
}
