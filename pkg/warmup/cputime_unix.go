//go:build unix

package warmup

import (
	"golang.org/x/sys/unix"
)

// processCPUMs returns the cumulative user+system CPU time of this process
// in milliseconds.
func processCPUMs() (float64, bool) {
	var usage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &usage); err != nil {
		return 0.0, false
	}

	user := float64(usage.Utime.Sec)*1000.0 + float64(usage.Utime.Usec)/1000.0
	system := float64(usage.Stime.Sec)*1000.0 + float64(usage.Stime.Usec)/1000.0

	return user + system, true
}
