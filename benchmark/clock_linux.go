//go:build linux

package benchmark

import (
	"time"

	"golang.org/x/sys/unix"
)

const threadCPUTimeSupported = true

func threadCPUTime() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_THREAD_CPUTIME_ID, &ts); err != nil {
		return 0
	}
	return time.Duration(ts.Nano())
}
