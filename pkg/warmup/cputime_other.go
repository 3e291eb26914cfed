//go:build !unix

package warmup

// processCPUMs is unavailable off unix platforms; callers treat the probe
// as unsupported.
func processCPUMs() (float64, bool) {
	return 0.0, false
}
