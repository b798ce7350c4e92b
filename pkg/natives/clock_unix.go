//go:build unix

package natives

import "syscall"

// processCPUSeconds reads user+system CPU time consumed by this process
// via getrusage(RUSAGE_SELF, ...), the same quantity vm.c's
// `clock()/CLOCKS_PER_SEC` reports on the platforms clox targets.
func processCPUSeconds() float64 {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	user := float64(ru.Utime.Sec) + float64(ru.Utime.Usec)/1e6
	sys := float64(ru.Stime.Sec) + float64(ru.Stime.Usec)/1e6
	return user + sys
}
