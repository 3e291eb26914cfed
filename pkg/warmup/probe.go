package warmup

import (
	"runtime/metrics"
)

const (
	gcCPUMetric    = "/cpu/classes/gc/total:cpu-seconds"
	gcCyclesMetric = "/gc/cycles/total:gc-cycles"
)

// OverheadProbe reads a cumulative runtime-overhead counter. The counter
// must be monotonically non-decreasing; an unsupported probe reports 0,
// which removes the overhead signal from stability decisions.
type OverheadProbe interface {
	Name() string
	Supported() bool
	CumulativeMs() float64
}

// GCOverheadProbe reports the cumulative CPU time the runtime has spent in
// garbage collection.
type GCOverheadProbe struct {
	samples   []metrics.Sample
	supported bool
}

func NewGCOverheadProbe() *GCOverheadProbe {
	p := &GCOverheadProbe{samples: []metrics.Sample{{Name: gcCPUMetric}}}
	metrics.Read(p.samples)
	p.supported = p.samples[0].Value.Kind() == metrics.KindFloat64
	return p
}

func (p *GCOverheadProbe) Name() string { return "gc-cpu" }

func (p *GCOverheadProbe) Supported() bool { return p.supported }

func (p *GCOverheadProbe) CumulativeMs() float64 {
	if !p.supported {
		return 0.0
	}
	metrics.Read(p.samples)
	return p.samples[0].Value.Float64() * 1000.0
}

// ProcessCPUProbe reports the cumulative user+system CPU time of the whole
// process. Coarser than the GC probe but meaningful on runtimes where GC
// accounting is unavailable.
type ProcessCPUProbe struct {
	supported bool
}

func NewProcessCPUProbe() *ProcessCPUProbe {
	_, ok := processCPUMs()
	return &ProcessCPUProbe{supported: ok}
}

func (p *ProcessCPUProbe) Name() string { return "process-cpu" }

func (p *ProcessCPUProbe) Supported() bool { return p.supported }

func (p *ProcessCPUProbe) CumulativeMs() float64 {
	ms, _ := processCPUMs()
	return ms
}

// ProbeByName resolves the configured probe choice.
func ProbeByName(name string) OverheadProbe {
	switch name {
	case "process-cpu":
		return NewProcessCPUProbe()
	default:
		return NewGCOverheadProbe()
	}
}

func gcCycleCount() float64 {
	samples := []metrics.Sample{{Name: gcCyclesMetric}}
	metrics.Read(samples)
	if samples[0].Value.Kind() != metrics.KindUint64 {
		return 0.0
	}
	return float64(samples[0].Value.Uint64())
}
