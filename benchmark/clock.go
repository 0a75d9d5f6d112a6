package benchmark

import (
	"runtime"
	"time"
)

// Clock provides the time readings used to measure operations.
type Clock interface {
	// Now returns monotonic wall clock time.
	Now() time.Duration

	// ThreadNow returns the CPU time consumed by the calling OS thread. The
	// value is meaningless unless ThreadTimeSupported returns true.
	ThreadNow() time.Duration

	ThreadTimeSupported() bool
}

type SystemClock struct {
	origin time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

func (c *SystemClock) Now() time.Duration {
	return time.Since(c.origin)
}

func (c *SystemClock) ThreadNow() time.Duration {
	return threadCPUTime()
}

func (c *SystemClock) ThreadTimeSupported() bool {
	return threadCPUTimeSupported
}

// SettleGC returns a function which gives the garbage collector some time to
// settle down before a measurement is started.
func SettleGC(cycles int, pause time.Duration) func() {
	return func() {
		for i := 0; i < cycles; i++ {
			runtime.GC()
			time.Sleep(pause)
		}
	}
}
