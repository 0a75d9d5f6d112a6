//go:build !linux

package benchmark

import "time"

const threadCPUTimeSupported = false

func threadCPUTime() time.Duration {
	return 0
}
