package main

import (
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/eth-easl/bencher/pkg/config"
	"github.com/eth-easl/bencher/pkg/driver"
	"github.com/eth-easl/bencher/pkg/metric"
	"github.com/eth-easl/bencher/pkg/workload"

	log "github.com/sirupsen/logrus"
)

var (
	configPath   = flag.String("config", "cmd/config.json", "Path to benchmark configuration file")
	verbosity    = flag.String("verbosity", "info", "Logging verbosity - choose from [info, debug, trace]")
	outputPrefix = flag.String("outputPrefix", "", "Override the output path prefix from the configuration file")
)

func init() {
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: time.StampMilli,
		FullTimestamp:   true,
	})
	log.SetOutput(os.Stdout)

	switch *verbosity {
	case "debug":
		log.SetLevel(log.DebugLevel)
		log.Debugf("Debug logging is enabled")
	case "trace":
		log.SetLevel(log.TraceLevel)
		log.Tracef("Trace logging is enabled")
	default:
		log.SetLevel(log.InfoLevel)
	}
}

func main() {
	file := config.ReadConfigurationFile(*configPath)
	if *outputPrefix != "" {
		file.OutputPathPrefix = *outputPrefix
	}

	cfg, err := config.NewConfiguration(file)
	if err != nil {
		log.Fatalf("Invalid configuration: %s", err.Error())
	}

	runSuite(cfg)
}

func runSuite(cfg *config.Configuration) {
	tier, err := workload.TierByName(cfg.File.PayloadTier)
	if err != nil {
		log.Fatalf("Invalid payload tier: %s", err.Error())
	}

	codecNames := cfg.File.Codecs
	if len(codecNames) == 0 {
		codecNames = workload.CodecNames()
	}

	generator := workload.NewGenerator(cfg.Engine.Seed)
	payloads := generator.Payloads(tier, cfg.File.PayloadCount)

	var benchmarks []driver.Benchmark
	for _, name := range codecNames {
		codec, err := workload.CodecByName(name)
		if err != nil {
			log.Fatalf("Invalid codec: %s", err.Error())
		}

		sample := workload.SerializeSample(codec, payloads)
		if cfg.RoundTrip() {
			sample = workload.RoundTripSample(codec, payloads)
		}

		benchmarks = append(benchmarks, driver.Benchmark{
			Name:   codec.Name(),
			Sample: sample,
		})
	}

	log.Infof("Benchmarking %d codec(s) with %d %s payload(s) in %s mode",
		len(benchmarks), len(payloads), tier.String(), cfg.File.MeasurementMode)

	exporter := metric.NewExporter()
	benchDriver := driver.NewDriver(cfg.Engine, exporter)
	results := benchDriver.RunAll(benchmarks)

	writeOutputs(cfg, exporter)
	logSummary(results)
}

func writeOutputs(cfg *config.Configuration, exporter *metric.Exporter) {
	prefix := cfg.File.OutputPathPrefix
	if dir := filepath.Dir(prefix); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %s", err.Error())
		}
	}

	samplesPath := prefix + "_samples.csv"
	reportsPath := prefix + "_reports.csv"

	if err := exporter.WriteSampleRecords(samplesPath); err != nil {
		log.Fatalf("Failed to write sample records: %s", err.Error())
	}
	if err := exporter.WriteReports(reportsPath); err != nil {
		log.Fatalf("Failed to write reports: %s", err.Error())
	}

	log.Infof("Wrote %s and %s", samplesPath, reportsPath)
}

func logSummary(results []*driver.RunResult) {
	log.Infof("%-12s %10s  %10s  %6s  %7s  %s", "benchmark", "mean_ms", "p95_ms", "cv", "samples", "stopped")

	for _, result := range results {
		reason := "-"
		if result.Decision.ShouldStop {
			reason = result.Decision.PrimaryReason.String()
		}
		if result.Err != nil {
			reason = "error"
		}

		log.Infof("%-12s %10.4f  %10.4f  %6.4f  %7d  %s",
			result.Benchmark, result.Summary.Mean, result.Summary.P95,
			result.Summary.CV, result.Summary.Count, reason)
	}
}
