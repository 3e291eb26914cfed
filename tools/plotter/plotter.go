package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/eth-easl/bencher/pkg/common"
	"github.com/eth-easl/bencher/pkg/metric"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var (
	samplesPattern = regexp.MustCompile(`^.+_samples\.csv$`)
	reportsPattern = regexp.MustCompile(`^.+_reports\.csv$`)
)

func main() {
	var (
		inputDir    = flag.String("i", "data/out", "Path to the directory with benchmark CSV files")
		outputDir   = flag.String("o", "figs", "Path to the directory for output figures")
		window      = flag.Int("window", 20, "Window size for the rolling coefficient of variation")
		cvThreshold = flag.Float64("cvThreshold", 0.02, "Coefficient of variation threshold drawn on CV figures")
		debugLevel  = flag.String("d", "info", "Debug level: info, debug")
	)
	flag.Parse()
	log.SetOutput(os.Stdout)

	switch *debugLevel {
	case "info":
		log.SetLevel(log.InfoLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
		log.Debug("Debug mode is enabled")
	}

	samples, reports := parseFiles(*inputDir)
	log.Infof("Loaded %d sample record(s) and %d report(s)", len(samples), len(reports))

	makeOutputDir(*outputDir)

	groups := groupByBenchmark(samples)
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		plotLatencyFig(*outputDir, name, groups[name])
		plotStabilityFig(*outputDir, name, groups[name], *window, *cvThreshold)
	}

	plotComparisonFig(*outputDir, reports)
}

func parseFiles(inputDir string) ([]metric.SampleRecord, []metric.BenchmarkReport) {
	files, err := os.ReadDir(inputDir)
	if err != nil {
		log.Fatal("Cannot open the input directory:", err)
	}

	var samples []metric.SampleRecord
	var reports []metric.BenchmarkReport
	for _, file := range files {
		name := file.Name()
		path := filepath.Join(inputDir, name)

		switch {
		case samplesPattern.MatchString(name):
			log.Debug("Open file ", name)
			recs, err := metric.ReadSampleRecords(path)
			if err != nil {
				log.Fatal("Cannot read sample records: ", err)
			}
			samples = append(samples, recs...)
		case reportsPattern.MatchString(name):
			log.Debug("Open file ", name)
			recs, err := metric.ReadReports(path)
			if err != nil {
				log.Fatal("Cannot read reports: ", err)
			}
			reports = append(reports, recs...)
		}
	}

	return samples, reports
}

func groupByBenchmark(samples []metric.SampleRecord) map[string][]metric.SampleRecord {
	groups := make(map[string][]metric.SampleRecord)
	for _, rec := range samples {
		groups[rec.Benchmark] = append(groups[rec.Benchmark], rec)
	}
	for _, records := range groups {
		sort.Slice(records, func(i, j int) bool {
			return records[i].Iteration < records[j].Iteration
		})
	}
	return groups
}

func makeOutputDir(outputDir string) {
	if _, err := os.Stat(outputDir); errors.Is(err, os.ErrNotExist) {
		log.Info("Creating the output directory")
		if err := os.Mkdir(outputDir, os.ModePerm); err != nil {
			log.Fatal(err)
		}
	}
}

func plotLatencyFig(outputDir, benchmark string, records []metric.SampleRecord) {
	p := plot.New()

	p.Title.Text = fmt.Sprintf("%s latency", benchmark)
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Latency (ms)"

	warm, meas := splitPhases(records)
	err := plotutil.AddLinePoints(p,
		"warmup", warm,
		"measurement", meas,
	)
	if err != nil {
		log.Fatal(err)
	}

	save(p, outputDir, benchmark+"_latency.png")
}

func plotStabilityFig(outputDir, benchmark string, records []metric.SampleRecord, window int, cvThreshold float64) {
	var latencies []float64
	for _, rec := range records {
		if rec.Phase == common.MeasurementPhase.String() {
			latencies = append(latencies, rec.LatencyMs)
		}
	}

	pts := rollingCV(latencies, window)
	if len(pts) == 0 {
		log.Warnf("Not enough measurement samples for %s, skipping the CV figure", benchmark)
		return
	}

	rule := plotter.XYs{
		{X: pts[0].X, Y: cvThreshold},
		{X: pts[len(pts)-1].X, Y: cvThreshold},
	}

	p := plot.New()

	p.Title.Text = fmt.Sprintf("%s rolling CV (window %d)", benchmark, window)
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Coefficient of variation"
	p.Y.Min = 0

	err := plotutil.AddLines(p,
		"cv", pts,
		"threshold", rule,
	)
	if err != nil {
		log.Fatal(err)
	}

	save(p, outputDir, benchmark+"_cv.png")
}

func plotComparisonFig(outputDir string, reports []metric.BenchmarkReport) {
	if len(reports) == 0 {
		log.Warn("No reports found, skipping the comparison figure")
		return
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Benchmark < reports[j].Benchmark
	})

	names := make([]string, 0, len(reports))
	means := make(plotter.Values, 0, len(reports))
	points := make(plotter.XYs, 0, len(reports))
	margins := make(plotter.YErrors, 0, len(reports))
	for i, rep := range reports {
		names = append(names, rep.Benchmark)
		means = append(means, rep.MeanMs)
		points = append(points, plotter.XY{X: float64(i), Y: rep.MeanMs})
		margins = append(margins, struct{ Low, High float64 }{Low: rep.CIMarginMs, High: rep.CIMarginMs})
	}

	p := plot.New()

	p.Title.Text = "Mean latency with confidence intervals"
	p.Y.Label.Text = "Latency (ms)"

	bars, err := plotter.NewBarChart(means, vg.Points(24))
	if err != nil {
		log.Fatal(err)
	}
	bars.Color = plotutil.Color(0)
	p.Add(bars)

	ci, err := plotter.NewYErrorBars(meansWithError{XYs: points, YErrors: margins})
	if err != nil {
		log.Fatal(err)
	}
	p.Add(ci)
	p.NominalX(names...)

	save(p, outputDir, "comparison.png")
}

type meansWithError struct {
	plotter.XYs
	plotter.YErrors
}

func splitPhases(records []metric.SampleRecord) (plotter.XYs, plotter.XYs) {
	var warm, meas plotter.XYs
	for _, rec := range records {
		pt := plotter.XY{X: float64(rec.Iteration), Y: rec.LatencyMs}
		if rec.Phase == common.WarmupPhase.String() {
			warm = append(warm, pt)
		} else {
			meas = append(meas, pt)
		}
	}
	return warm, meas
}

func rollingCV(latencies []float64, window int) plotter.XYs {
	if window <= 0 {
		return nil
	}

	var pts plotter.XYs
	for i := window; i <= len(latencies); i++ {
		win := latencies[i-window : i]
		mean := stat.Mean(win, nil)
		if mean <= 0 {
			continue
		}
		cv := stat.StdDev(win, nil) / mean
		pts = append(pts, plotter.XY{X: float64(i), Y: cv})
	}
	return pts
}

func save(p *plot.Plot, outputDir, name string) {
	path := filepath.Join(outputDir, name)
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		log.Fatal(err)
	}
	log.Info("Wrote ", path)
}
