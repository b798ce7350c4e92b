//go:build !unix

package natives

import "time"

var processStart = time.Now()

// processCPUSeconds falls back to wall-clock time since process start
// on platforms without getrusage (see clock_unix.go); the test corpus
// and every pack example run on Linux, so this branch exists for
// portability only and is not what DESIGN.md's Open Question decision
// is grounded on.
func processCPUSeconds() float64 {
	return time.Since(processStart).Seconds()
}
